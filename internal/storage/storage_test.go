package storage

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "checkinbot/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("driver %q: unexpected error: %v", driver, err)
		}
		if st != nil {
			t.Fatalf("driver %q: expected nil store", driver)
		}
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for file driver without path")
	}
}

func openBoth(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	out := map[string]Store{}
	for driver, path := range map[string]string{
		"file":   filepath.Join(dir, "state.json"),
		"sqlite": filepath.Join(dir, "state.db"),
	} {
		st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
		if err != nil {
			t.Fatalf("open %s: %v", driver, err)
		}
		t.Cleanup(func() { _ = st.Close() })
		out[driver] = st
	}
	return out
}

func TestDedupClaimAndRelease(t *testing.T) {
	ctx := context.Background()
	for driver, st := range openBoth(t) {
		t.Run(driver, func(t *testing.T) {
			if _, ok, err := st.GetDedup(ctx, "cb:1"); err != nil || ok {
				t.Fatalf("fresh key: ok=%v err=%v", ok, err)
			}

			until := time.Now().Add(time.Hour).Truncate(time.Millisecond)
			if err := st.PutDedup(ctx, "cb:1", until); err != nil {
				t.Fatalf("put: %v", err)
			}
			got, ok, err := st.GetDedup(ctx, "cb:1")
			if err != nil || !ok {
				t.Fatalf("get after put: ok=%v err=%v", ok, err)
			}
			if !got.Equal(until) {
				t.Fatalf("until: got %v want %v", got, until)
			}

			released := time.Now()
			if err := st.PutDedup(ctx, "cb:1", released); err != nil {
				t.Fatalf("release: %v", err)
			}
			got, _, _ = st.GetDedup(ctx, "cb:1")
			if got.After(time.Now()) {
				t.Fatalf("released key still active until %v", got)
			}

			if err := st.PutDedup(ctx, "", until); err != nil {
				t.Fatalf("empty key should be a no-op, got %v", err)
			}
		})
	}
}

func TestFileDedupSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	until := time.Now().Add(time.Hour)
	if err := st.PutDedup(ctx, "cb:keep", until); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.PutDedup(ctx, "cb:gone", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	if _, ok, _ := st.GetDedup(ctx, "cb:keep"); !ok {
		t.Fatalf("expected cb:keep to survive reopen")
	}
	if _, ok, _ := st.GetDedup(ctx, "cb:gone"); ok {
		t.Fatalf("expected expired cb:gone to be pruned on reopen")
	}
}

func TestFileCompaction(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := openFile(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	fs := s.(*fileStore)
	fs.compactEvery = 2
	defer fs.Close()

	until := time.Now().Add(time.Hour)
	for _, k := range []string{"a", "b"} {
		if err := fs.PutDedup(ctx, k, until); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	if _, err := os.Stat(fs.snapshotPath); err != nil {
		t.Fatalf("expected snapshot after compaction: %v", err)
	}
	info, err := fs.journal.Stat()
	if err != nil {
		t.Fatalf("stat journal: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("journal not truncated, size=%d", info.Size())
	}
}

func TestFileAudit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "state.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	entry := AuditEntry{ActorID: 7, ChatID: -100, CallbackID: "q1", Action: "contact_updated", Contact: "Jane Doe", Row: 2, Value: "2024-03-01", TookMS: 12}
	if err := st.AppendAudit(ctx, entry); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = st.Close()

	f, err := os.Open(filepath.Join(dir, "state.audit.jsonl"))
	if err != nil {
		t.Fatalf("open audit: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatalf("audit file empty")
	}
	var got AuditEntry
	if err := json.Unmarshal(sc.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.At.IsZero() {
		t.Fatalf("expected At to be stamped")
	}
	got.At = time.Time{}
	if got != entry {
		t.Fatalf("got %+v want %+v", got, entry)
	}
}

func TestSQLiteAudit(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st.AppendAudit(ctx, AuditEntry{Action: "contact_not_found", Contact: "Nobody", Error: "not in roster"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = st.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	var (
		action, contact string
		errText         sql.NullString
		value           sql.NullString
	)
	if err := db.QueryRowContext(ctx, `SELECT action, contact, err, value FROM audit`).Scan(&action, &contact, &errText, &value); err != nil {
		t.Fatalf("query: %v", err)
	}
	if action != "contact_not_found" || contact != "Nobody" {
		t.Fatalf("unexpected row: %s %s", action, contact)
	}
	if !errText.Valid || errText.String != "not in roster" {
		t.Fatalf("err column: %+v", errText)
	}
	if value.Valid {
		t.Fatalf("empty value should be stored as NULL")
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("/tmp/x.db", 0)
	want := "file:/tmp/x.db?_pragma=busy_timeout%285000%29&_pragma=journal_mode%28WAL%29&_pragma=synchronous%28NORMAL%29"
	if dsn != want {
		t.Fatalf("dsn:\n got %s\nwant %s", dsn, want)
	}
}
