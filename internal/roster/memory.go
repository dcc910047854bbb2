package roster

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Row handles start at DefaultFirstRow so a
// memory roster lines up with the default sheet window.
type Memory struct {
	mu   sync.Mutex
	rows []Row

	// Writes records every UpdateLastContactDate call, in order.
	writes []Write
	// FailWrites makes UpdateLastContactDate return this error when non-nil.
	FailWrites error
	// FailReads makes ListContacts return this error when non-nil.
	FailReads error
}

// Write is one recorded UpdateLastContactDate call.
type Write struct {
	Handle Handle
	Date   string
}

// DefaultFirstRow is the first data row of a sheet with a header row.
const DefaultFirstRow = 2

func NewMemory(rows ...Row) *Memory {
	m := &Memory{}
	for _, r := range rows {
		m.Append(r)
	}
	return m
}

// Append adds a row, assigning the next handle when r.Handle is zero.
func (m *Memory) Append(r Row) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Handle == 0 {
		r.Handle = Handle(DefaultFirstRow + len(m.rows))
	}
	m.rows = append(m.rows, r)
	return r.Handle
}

func (m *Memory) ListContacts(ctx context.Context, w Window) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads != nil {
		return nil, m.FailReads
	}
	out := make([]Row, 0, len(m.rows))
	for _, r := range m.rows {
		if w.Contains(int(r.Handle)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) UpdateLastContactDate(ctx context.Context, h Handle, date string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	for i := range m.rows {
		if m.rows[i].Handle == h {
			m.rows[i].LastContactRaw = date
			m.writes = append(m.writes, Write{Handle: h, Date: date})
			return nil
		}
	}
	return ErrRowNotFound
}

// Writes returns a copy of the recorded writes.
func (m *Memory) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Write(nil), m.writes...)
}

// Rows returns a copy of the current rows.
func (m *Memory) Rows() []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Row(nil), m.rows...)
}

func (m *Memory) Close() error { return nil }
