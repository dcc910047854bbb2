package checkin

import (
	"errors"
	"fmt"
)

// Kind classifies failures seen by the reminder and callback paths.
type Kind string

const (
	KindNone            Kind = ""
	KindTransportAck    Kind = "transport_ack"
	KindControlAck      Kind = "control_ack"
	KindMalformedEvent  Kind = "malformed_event"
	KindContactNotFound Kind = "contact_not_found"
	KindStoreRead       Kind = "store_read"
	KindStoreWrite      Kind = "store_write"
	KindSend            Kind = "send"
	KindInternal        Kind = "internal"
)

// Error attaches a Kind and the failing operation to a cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or
// KindInternal for any other non-nil error.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ErrContactNotFound is wrapped by not-found failures.
var ErrContactNotFound = errors.New("contact not found")
