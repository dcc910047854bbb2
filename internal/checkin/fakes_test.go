package checkin

import (
	"context"
	"sync"
	"time"

	"checkinbot/internal/storage"
	kit "checkinbot/internal/transport"
)

type sentMessage struct {
	To   kit.ChatTarget
	Text string
	Opt  *kit.SendOptions
}

// fakeGateway records every outbound call in order, alongside acks recorded
// through its ack method.
type fakeGateway struct {
	mu      sync.Mutex
	events  []string
	sent    []sentMessage
	answers []string

	sendErr   error
	answerErr error
	panicSend bool
}

func (g *fakeGateway) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.panicSend {
		panic("gateway exploded")
	}
	g.events = append(g.events, "send")
	if g.sendErr != nil {
		return kit.MessageRef{}, g.sendErr
	}
	g.sent = append(g.sent, sentMessage{To: to, Text: text, Opt: opt})
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: len(g.sent)}, nil
}

func (g *fakeGateway) AnswerCallback(_ context.Context, id, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, "answer")
	g.answers = append(g.answers, id+"|"+text)
	return g.answerErr
}

func (g *fakeGateway) ack() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, "ack")
	return nil
}

func (g *fakeGateway) Events() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.events...)
}

func (g *fakeGateway) Texts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.sent))
	for _, m := range g.sent {
		out = append(out, m.Text)
	}
	return out
}

// memLedger is an in-memory Ledger.
type memLedger struct {
	mu     sync.Mutex
	dedup  map[string]time.Time
	audits []auditRecord

	getErr error
}

type auditRecord struct {
	Action  string
	Contact string
	Row     int
	Value   string
	Error   string
}

func newMemLedger() *memLedger { return &memLedger{dedup: map[string]time.Time{}} }

func (l *memLedger) AppendAudit(_ context.Context, e storage.AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.audits = append(l.audits, auditRecord{Action: e.Action, Contact: e.Contact, Row: e.Row, Value: e.Value, Error: e.Error})
	return nil
}

func (l *memLedger) PutDedup(_ context.Context, key string, until time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dedup[key] = until
	return nil
}

func (l *memLedger) GetDedup(_ context.Context, key string) (time.Time, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.getErr != nil {
		return time.Time{}, false, l.getErr
	}
	until, ok := l.dedup[key]
	return until, ok, nil
}

func (l *memLedger) Audits() []auditRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]auditRecord(nil), l.audits...)
}
