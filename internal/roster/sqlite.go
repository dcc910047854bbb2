package roster

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	logx "checkinbot/pkg/logx"
)

//go:embed schema.sql
var sqliteSchema string

// SQLite keeps the roster in a local table. Values are stored as text so a
// hand-edited row behaves like a loosely edited spreadsheet cell.
type SQLite struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	return OpenSQLite(ctx, cfg.Path, cfg, log)
}

// OpenSQLite opens (and migrates) the roster database at path.
func OpenSQLite(ctx context.Context, path string, cfg Config, log logx.Logger) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("roster sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("roster sqlite migrate: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &SQLite{db: db, log: log}, nil
}

func (s *SQLite) ListContacts(ctx context.Context, w Window) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT row_num, name, type, last_contact, frequency
		   FROM contacts
		  WHERE row_num BETWEEN ? AND ?
		  ORDER BY row_num`, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r      Row
			handle int64
		)
		if err := rows.Scan(&handle, &r.Name, &r.Type, &r.LastContactRaw, &r.FrequencyRaw); err != nil {
			return nil, err
		}
		r.Handle = Handle(handle)
		r.Name = strings.TrimSpace(r.Name)
		r.Type = strings.TrimSpace(r.Type)
		r.LastContactRaw = strings.TrimSpace(r.LastContactRaw)
		r.FrequencyRaw = strings.TrimSpace(r.FrequencyRaw)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateLastContactDate(ctx context.Context, h Handle, date string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE contacts SET last_contact = ? WHERE row_num = ?`, date, int64(h))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRowNotFound
	}
	return nil
}

// Put inserts or replaces a row. It exists for seeding and tests; the bot
// itself never creates contacts.
func (s *SQLite) Put(ctx context.Context, r Row) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts(row_num, name, type, last_contact, frequency) VALUES(?,?,?,?,?)
		 ON CONFLICT(row_num) DO UPDATE SET name=excluded.name, type=excluded.type,
		   last_contact=excluded.last_contact, frequency=excluded.frequency`,
		int64(r.Handle), r.Name, r.Type, r.LastContactRaw, r.FrequencyRaw)
	return err
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
