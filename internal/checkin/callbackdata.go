package checkin

import (
	"errors"
	"strings"
)

const (
	PayloadPrefix = "contact_"
	PayloadNone   = PayloadPrefix + "none"
)

var ErrMalformedPayload = errors.New("malformed callback payload")

// EncodeContact builds the button payload for a contact name. Spaces become
// underscores; no other escaping is applied, so names that differ only by
// "_" versus " " produce the same payload.
func EncodeContact(name string) string {
	return PayloadPrefix + strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

// Payload is a decoded button payload.
type Payload struct {
	// None is set for the "none recently" button.
	None bool
	// Name is the candidate contact name; empty when None is set.
	Name string
}

// DecodePayload parses a button payload.
func DecodePayload(data string) (Payload, error) {
	if data == PayloadNone {
		return Payload{None: true}, nil
	}
	rest, ok := strings.CutPrefix(data, PayloadPrefix)
	if !ok || strings.TrimSpace(rest) == "" {
		return Payload{}, ErrMalformedPayload
	}
	return Payload{Name: strings.ReplaceAll(rest, "_", " ")}, nil
}
