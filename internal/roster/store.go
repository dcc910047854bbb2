// Package roster provides Contact Store drivers: Google Sheets, SQLite and
// an in-memory store. Rows are returned raw; parsing and validation belong
// to the caller.
package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "checkinbot/pkg/logx"
)

// ErrRowNotFound is returned by UpdateLastContactDate for a handle outside the roster.
var ErrRowNotFound = errors.New("roster: row not found")

// Handle locates a row in the backing store (the 1-based sheet row number for
// Sheets, the row key for SQLite). Callers pass it back untouched.
type Handle int

func (h Handle) String() string { return fmt.Sprintf("row %d", int(h)) }

// Row is one raw roster entry.
type Row struct {
	Handle         Handle
	Name           string
	Type           string
	LastContactRaw string
	FrequencyRaw   string
}

// Window is an inclusive range of row numbers to read.
// Rows outside the window are not considered at all.
type Window struct {
	Start int
	End   int
}

func (w Window) Contains(row int) bool { return row >= w.Start && row <= w.End }

func (w Window) String() string { return fmt.Sprintf("%d..%d", w.Start, w.End) }

type Store interface {
	// ListContacts returns rows inside w in roster order.
	ListContacts(ctx context.Context, w Window) ([]Row, error)
	// UpdateLastContactDate writes date verbatim into the row's last-contact cell.
	UpdateLastContactDate(ctx context.Context, h Handle, date string) error
	Close() error
}

// Config selects and configures a driver.
//
// Driver values:
//   - "sheets": Google Sheets spreadsheet (columns A..D = name, type, last contact, frequency)
//   - "sqlite": local SQLite database
//   - "memory": in-process rows, lost on exit
type Config struct {
	Driver string

	SpreadsheetID   string
	Sheet           string
	CredentialsFile string

	Path        string
	BusyTimeout time.Duration
}

// Open initializes the configured store.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "sheets":
		return openSheets(ctx, cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "memory", "":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown roster driver: " + driver)
	}
}

// cell renders a spreadsheet-ish cell value as trimmed text.
func cell(row []any, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	switch v := row[i].(type) {
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
