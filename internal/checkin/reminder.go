// Package checkin implements the reminder run and the button-click handler.
//
// A Reminder reads the roster, picks the contacts that are due and sends one
// message with a button per due contact. Callbacks handles the clicks: it
// acknowledges the transport first, then updates the clicked contact's last
// contact date and confirms in chat.
package checkin

import (
	"context"
	"errors"
	"strings"
	"time"

	"checkinbot/internal/roster"
	kit "checkinbot/internal/transport"
	logx "checkinbot/pkg/logx"
	"checkinbot/pkg/tgui"
)

// ContactStore is the roster access both components need.
type ContactStore interface {
	ListContacts(ctx context.Context, w roster.Window) ([]roster.Row, error)
	UpdateLastContactDate(ctx context.Context, h roster.Handle, date string) error
}

// Deps are the collaborators shared by Reminder and Callbacks.
type Deps struct {
	Store   ContactStore
	Gateway kit.Gateway
	Log     logx.Logger
	Clock   Clock
}

func (d Deps) withDefaults(comp string) Deps {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	d.Log = d.Log.With(logx.String("comp", comp))
	if d.Clock == nil {
		d.Clock = RealClock
	}
	return d
}

// DefaultWindow matches a sheet with one header row and up to 99 contacts.
var DefaultWindow = roster.Window{Start: 2, End: 100}

// DefaultLocation is the reference timezone used when none is configured.
func DefaultLocation() *time.Location {
	if loc, err := time.LoadLocation("America/New_York"); err == nil {
		return loc
	}
	return time.UTC
}

type ReminderConfig struct {
	Chat       kit.ChatTarget
	Window     roster.Window
	BufferDays int
	Location   *time.Location
	// Header is HTML; empty uses DefaultHeader.
	Header string
}

func (c ReminderConfig) normalized() ReminderConfig {
	if c.Window.Start <= 0 || c.Window.End < c.Window.Start {
		c.Window = DefaultWindow
	}
	if c.BufferDays < 0 {
		c.BufferDays = DefaultBufferDays
	}
	if c.Location == nil {
		c.Location = DefaultLocation()
	}
	return c
}

// RunResult summarizes one reminder run.
type RunResult struct {
	ContactsProcessed int
	ContactsDue       int
	MessageSent       bool
	Message           kit.MessageRef
	Due               []Assessment
	Skipped           []Skipped
}

type Reminder struct {
	cfg  ReminderConfig
	deps Deps
}

func NewReminder(cfg ReminderConfig, deps Deps) *Reminder {
	return &Reminder{cfg: cfg.normalized(), deps: deps.withDefaults("checkin.reminder")}
}

func (r *Reminder) Config() ReminderConfig { return r.cfg }

// Today is the current civil date in the reference timezone.
func (r *Reminder) Today() time.Time {
	return civilDate(r.deps.Clock.Now(), r.cfg.Location)
}

// Preview reads and classifies the roster without sending anything.
func (r *Reminder) Preview(ctx context.Context) (Classification, int, error) {
	if r.deps.Store == nil {
		return Classification{}, 0, wrap(KindStoreRead, "list contacts", errors.New("no contact store"))
	}
	rows, err := r.deps.Store.ListContacts(ctx, r.cfg.Window)
	if err != nil {
		return Classification{}, 0, wrap(KindStoreRead, "list contacts", err)
	}
	return ClassifyAll(rows, r.Today(), r.cfg.BufferDays), len(rows), nil
}

// Run sends one reminder. It never writes to the roster. Read and send
// failures are returned with KindStoreRead and KindSend.
func (r *Reminder) Run(ctx context.Context) (RunResult, error) {
	start := r.deps.Clock.Now()
	log := r.deps.Log

	cls, n, err := r.Preview(ctx)
	if err != nil {
		log.Error("roster read failed", logx.Err(err))
		return RunResult{}, err
	}
	res := RunResult{
		ContactsProcessed: n,
		ContactsDue:       len(cls.Due),
		Due:               cls.Due,
		Skipped:           cls.Skipped,
	}
	log.Info("roster classified",
		logx.Int("rows", n),
		logx.Int("due", len(cls.Due)),
		logx.Int("skipped", len(cls.Skipped)),
		logx.String("window", r.cfg.Window.String()),
	)
	for _, s := range cls.Skipped {
		log.Debug("row skipped", logx.Int("row", int(s.Row.Handle)), logx.String("reason", string(s.Reason)))
	}
	for _, a := range cls.Due {
		if strings.Contains(a.Name, "_") {
			log.Warn("contact name contains '_'; its button payload is ambiguous", logx.String("contact", a.Name))
		}
	}

	msg := Compose(r.cfg.Header, cls.Due)
	for _, name := range msg.NoButton {
		log.Warn("contact listed without button", logx.String("contact", name), logx.Int("limit", tgui.MaxCallbackDataLen))
	}

	if r.deps.Gateway == nil {
		return res, wrap(KindSend, "send reminder", errors.New("no messaging gateway"))
	}
	if r.cfg.Chat.ChatID == 0 {
		return res, wrap(KindSend, "send reminder", errors.New("no destination chat"))
	}
	ref, err := r.deps.Gateway.SendText(ctx, r.cfg.Chat, msg.Text, &kit.SendOptions{
		ParseMode:      tgui.ParseModeHTML,
		DisablePreview: true,
		Keyboard:       msg.Keyboard,
	})
	if err != nil {
		log.Error("reminder send failed", logx.Err(err))
		return res, wrap(KindSend, "send reminder", err)
	}
	res.MessageSent = true
	res.Message = ref

	log.Info("reminder sent",
		logx.Int("due", res.ContactsDue),
		logx.Int("message_id", ref.MessageID),
		logx.Duration("took", r.deps.Clock.Now().Sub(start)),
	)
	return res, nil
}
