package checkin

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"checkinbot/internal/roster"
	"checkinbot/internal/storage"
	kit "checkinbot/internal/transport"
	logx "checkinbot/pkg/logx"
)

// State is a step of the callback state machine.
type State string

const (
	StateReceived  State = "received"
	StateAcked     State = "acked"
	StateValidated State = "validated"
	StateResolved  State = "resolved"
	StateUpdated   State = "updated"
	StateConfirmed State = "confirmed"
	StateIgnored   State = "ignored"
	StateFailed    State = "failed"
)

const (
	ActionNone   = "none"
	ActionUpdate = "update"
)

// CallbackResult is the outcome of one handled callback. Handle never
// returns an error; failures are reported here.
type CallbackResult struct {
	State     State
	Processed bool
	Success   bool
	Action    string

	ContactName string
	Row         roster.Handle
	DateSet     string
	CallbackID  string

	Detail string
	Kind   Kind
	Err    error
}

// Ledger is the optional dedup and audit backend. storage.Store satisfies it.
type Ledger interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (time.Time, bool, error)
}

const DefaultDedupTTL = 24 * time.Hour

type CallbackConfig struct {
	Window   roster.Window
	Location *time.Location
	// DedupTTL is how long a handled callback id is remembered.
	DedupTTL time.Duration
}

func (c CallbackConfig) normalized() CallbackConfig {
	if c.Window.Start <= 0 || c.Window.End < c.Window.Start {
		c.Window = DefaultWindow
	}
	if c.Location == nil {
		c.Location = DefaultLocation()
	}
	if c.DedupTTL <= 0 {
		c.DedupTTL = DefaultDedupTTL
	}
	return c
}

type Callbacks struct {
	cfg    CallbackConfig
	deps   Deps
	ledger Ledger

	claimMu sync.Mutex
}

// NewCallbacks builds a handler. ledger may be nil, which disables dedup
// and auditing.
func NewCallbacks(cfg CallbackConfig, deps Deps, ledger Ledger) *Callbacks {
	return &Callbacks{cfg: cfg.normalized(), deps: deps.withDefaults("checkin.callbacks"), ledger: ledger}
}

// Func adapts Handle to a transport callback.
func (h *Callbacks) Func() kit.CallbackFunc {
	return func(ctx context.Context, cb kit.Callback, ack func() error) {
		h.Handle(ctx, cb, ack)
	}
}

// Handle runs one inbound callback through the state machine. ack is the
// transport response and is always invoked first, before any other call.
func (h *Callbacks) Handle(ctx context.Context, ev kit.Callback, ack func() error) (res CallbackResult) {
	start := h.deps.Clock.Now()
	log := h.deps.Log.With(logx.String("callback_id", ev.ID), logx.Int64("chat_id", ev.ChatID), logx.Int64("from_id", ev.FromID))
	res = CallbackResult{State: StateReceived, CallbackID: ev.ID}

	var (
		to      = ev.ReplyTarget()
		key     string
		claimed bool
	)
	defer func() {
		if rec := recover(); rec != nil {
			err := wrap(KindInternal, "handle callback", fmt.Errorf("panic: %v", rec))
			log.Error("callback panic", logx.Err(err), logx.Stack(string(debug.Stack())))
			res = h.fail(ctx, log, res, to, err, to.ChatID != 0)
		}
		if res.State == StateIgnored {
			return
		}
		if claimed && !res.Success {
			h.release(ctx, log, key)
		}
		if res.Action == ActionUpdate {
			h.audit(ctx, log, ev, res, start)
		}
		log.Info("callback handled",
			logx.String("state", string(res.State)),
			logx.Bool("processed", res.Processed),
			logx.Bool("success", res.Success),
			logx.String("kind", string(res.Kind)),
			logx.Duration("took", h.deps.Clock.Now().Sub(start)),
		)
	}()

	if ack != nil {
		if err := ack(); err != nil {
			log.Warn("transport ack failed", logx.String("kind", string(KindTransportAck)), logx.Err(err))
		}
	}
	res.State = StateAcked

	if ev.ID != "" && h.deps.Gateway != nil {
		if err := h.deps.Gateway.AnswerCallback(ctx, ev.ID, textProcessing); err != nil {
			log.Warn("callback answer failed", logx.String("kind", string(KindControlAck)), logx.Err(err))
		}
	}

	payload, perr := DecodePayload(ev.Data)
	switch {
	case ev.Empty():
		return h.ignore(log, res, "empty event")
	case perr != nil:
		return h.ignore(log, res, "malformed payload")
	case to.ChatID == 0:
		return h.ignore(log, res, "missing chat id")
	}
	res.State = StateValidated

	var dup bool
	key, claimed, dup = h.claim(ctx, log, ev.ID)
	if dup {
		res.State = StateIgnored
		res.Success = true
		res.Detail = "duplicate"
		log.Info("duplicate callback ignored")
		return res
	}

	if payload.None {
		res.Action = ActionNone
		if _, err := h.send(ctx, to, textNoneReply); err != nil {
			return h.fail(ctx, log, res, to, wrap(KindSend, "send reply", err), false)
		}
		res.State = StateConfirmed
		res.Processed = true
		res.Success = true
		return res
	}

	res.Action = ActionUpdate
	res.ContactName = payload.Name

	row, found, err := h.resolve(ctx, payload.Name)
	if err != nil {
		return h.fail(ctx, log, res, to, wrap(KindStoreRead, "list contacts", err), true)
	}
	if !found {
		err := wrap(KindContactNotFound, "resolve contact", fmt.Errorf("%w: %q", ErrContactNotFound, payload.Name))
		if _, serr := h.send(ctx, to, textNotFound(payload.Name)); serr != nil {
			log.Warn("not-found reply failed", logx.Err(serr))
		}
		return h.fail(ctx, log, res, to, err, false)
	}
	res.State = StateResolved
	res.ContactName = row.Name
	res.Row = row.Handle

	date := h.newDate(row)
	if err := h.deps.Store.UpdateLastContactDate(ctx, row.Handle, date); err != nil {
		return h.fail(ctx, log, res, to, wrap(KindStoreWrite, "update last contact", err), true)
	}
	res.State = StateUpdated
	res.Processed = true
	res.DateSet = date

	if _, err := h.send(ctx, to, textUpdated(row.Name)); err != nil {
		return h.fail(ctx, log, res, to, wrap(KindSend, "send confirmation", err), false)
	}
	res.State = StateConfirmed
	res.Success = true
	return res
}

func (h *Callbacks) ignore(log logx.Logger, res CallbackResult, detail string) CallbackResult {
	res.State = StateIgnored
	res.Processed = false
	res.Success = true
	res.Kind = KindMalformedEvent
	res.Detail = detail
	log.Debug("callback ignored", logx.String("detail", detail))
	return res
}

// fail records err on res. With notify set, the user gets a generic error reply.
func (h *Callbacks) fail(ctx context.Context, log logx.Logger, res CallbackResult, to kit.ChatTarget, err error, notify bool) CallbackResult {
	res.State = StateFailed
	res.Success = false
	res.Kind = KindOf(err)
	res.Err = err
	res.Detail = err.Error()
	log.Error("callback failed", logx.String("kind", string(res.Kind)), logx.Err(err))

	if notify {
		cause := err
		var ce *Error
		if errors.As(err, &ce) && ce.Err != nil {
			cause = ce.Err
		}
		if _, serr := h.send(ctx, to, textError(cause)); serr != nil {
			log.Warn("error reply failed", logx.Err(serr))
		}
	}
	return res
}

// send delivers a plain-text reply. Gateway panics surface as errors.
func (h *Callbacks) send(ctx context.Context, to kit.ChatTarget, text string) (ref kit.MessageRef, err error) {
	if h.deps.Gateway == nil {
		return kit.MessageRef{}, errors.New("no messaging gateway")
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("send panic: %v", rec)
		}
	}()
	return h.deps.Gateway.SendText(ctx, to, text, nil)
}

// resolve returns the first roster row whose name has the same match key.
func (h *Callbacks) resolve(ctx context.Context, name string) (roster.Row, bool, error) {
	if h.deps.Store == nil {
		return roster.Row{}, false, errors.New("no contact store")
	}
	rows, err := h.deps.Store.ListContacts(ctx, h.cfg.Window)
	if err != nil {
		return roster.Row{}, false, err
	}
	want := MatchKey(name)
	for _, r := range rows {
		if r.Name == "" {
			continue
		}
		if MatchKey(r.Name) == want {
			r.Name = NormalizeName(r.Name)
			return r, true, nil
		}
	}
	return roster.Row{}, false, nil
}

// newDate is today in the reference timezone, or the stored date when that
// is later, so the last contact date never moves backward.
func (h *Callbacks) newDate(r roster.Row) string {
	today := civilDate(h.deps.Clock.Now(), h.cfg.Location)
	if cur, ok := ParseDate(r.LastContactRaw); ok && cur.After(today) {
		return cur.Format(DateLayout)
	}
	return today.Format(DateLayout)
}

func dedupKey(id string) string { return "cb:" + id }

// claim marks a callback id as in progress. dup is true when another
// delivery of the same id already holds an unexpired claim.
func (h *Callbacks) claim(ctx context.Context, log logx.Logger, id string) (key string, claimed, dup bool) {
	if h.ledger == nil || id == "" {
		return "", false, false
	}
	key = dedupKey(id)
	now := h.deps.Clock.Now()

	h.claimMu.Lock()
	defer h.claimMu.Unlock()

	until, ok, err := h.ledger.GetDedup(ctx, key)
	if err != nil {
		log.Warn("dedup lookup failed; handling without dedup", logx.Err(err))
		return key, false, false
	}
	if ok && until.After(now) {
		return key, false, true
	}
	if err := h.ledger.PutDedup(ctx, key, now.Add(h.cfg.DedupTTL)); err != nil {
		log.Warn("dedup claim failed; handling without dedup", logx.Err(err))
		return key, false, false
	}
	return key, true, false
}

// release lets a redelivery of a failed callback run again.
func (h *Callbacks) release(ctx context.Context, log logx.Logger, key string) {
	if err := h.ledger.PutDedup(context.WithoutCancel(ctx), key, h.deps.Clock.Now()); err != nil {
		log.Warn("dedup release failed", logx.Err(err))
	}
}

func (h *Callbacks) audit(ctx context.Context, log logx.Logger, ev kit.Callback, res CallbackResult, start time.Time) {
	if h.ledger == nil {
		return
	}
	e := storage.AuditEntry{
		At:         h.deps.Clock.Now(),
		ActorID:    ev.FromID,
		ChatID:     ev.ReplyTarget().ChatID,
		CallbackID: ev.ID,
		Action:     "contact_" + string(res.State),
		Contact:    res.ContactName,
		Row:        int(res.Row),
		Value:      res.DateSet,
		TookMS:     h.deps.Clock.Now().Sub(start).Milliseconds(),
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	if err := h.ledger.AppendAudit(context.WithoutCancel(ctx), e); err != nil {
		log.Warn("audit append failed", logx.Err(err))
	}
}
