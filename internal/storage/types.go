package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one roster mutation made on behalf of a chat user.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At         time.Time `json:"at"`
	ActorID    int64     `json:"actor_id"`
	ChatID     int64     `json:"chat_id"`
	CallbackID string    `json:"callback_id,omitempty"`
	Action     string    `json:"action"`
	Contact    string    `json:"contact"`
	Row        int       `json:"row"`
	Value      string    `json:"value,omitempty"`
	Error      string    `json:"error,omitempty"`
	TookMS     int64     `json:"took_ms"`
}
