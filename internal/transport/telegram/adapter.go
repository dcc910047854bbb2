// Package telegram implements the messaging gateway on top of telebot:
// outbound messages with inline keyboards, callback answers, the long-poll
// receive loop and webhook registration.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"checkinbot/internal/runtime/supervisor"
	kit "checkinbot/internal/transport"
	logx "checkinbot/pkg/logx"
)

const DefaultPollTimeout = 10 * time.Second

type Config struct {
	Token string
	// APIURL overrides https://api.telegram.org (local Bot API server, tests).
	APIURL      string
	PollTimeout time.Duration
	// Offline skips the getMe handshake in NewBot.
	Offline bool
	Client  *http.Client
}

// Adapter is a kit.Gateway backed by the Telegram Bot API.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	runMu   sync.Mutex
	sup     *supervisor.Supervisor
	handler kit.CallbackFunc
	baseCtx context.Context
}

var _ kit.Gateway = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	settings := tele.Settings{
		Token:   cfg.Token,
		URL:     strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
		Poller:  &tele.LongPoller{Timeout: cfg.PollTimeout, AllowedUpdates: []string{"callback_query"}},
		Offline: cfg.Offline,
		Client:  cfg.Client,
	}
	if settings.Client == nil {
		// Long polling holds the request open for PollTimeout.
		settings.Client = &http.Client{Timeout: cfg.PollTimeout + 10*time.Second}
	}
	b, err := tele.NewBot(settings)
	if err != nil {
		return nil, err
	}
	a := &Adapter{cfg: cfg, log: log.With(logx.String("comp", "telegram")), bot: b}
	a.bot.Handle(tele.OnCallback, a.onCallback)
	return a, nil
}

func (a *Adapter) onCallback(c tele.Context) error {
	a.runMu.Lock()
	h, ctx := a.handler, a.baseCtx
	a.runMu.Unlock()
	if h == nil || ctx == nil {
		return nil
	}
	// Long polling has no per-update response to write.
	h(ctx, FromTele(c.Callback()), func() error { return nil })
	return nil
}

// Start runs the long-poll loop until ctx is canceled or Stop is called,
// dispatching every callback_query to h.
func (a *Adapter) Start(ctx context.Context, h kit.CallbackFunc) error {
	if h == nil {
		return errors.New("telegram: callback handler required")
	}
	a.runMu.Lock()
	if a.sup != nil {
		a.runMu.Unlock()
		return nil
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))
	a.handler = h
	a.baseCtx = a.sup.Context()
	sup := a.sup
	a.runMu.Unlock()

	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})
	// bot.Start can return early on some failures; keep it running until
	// the context ends.
	sup.GoRestart("telebot.poll", func(c context.Context) error {
		a.log.Info("polling started", logx.Duration("timeout", a.cfg.PollTimeout))
		a.bot.Start()
		a.log.Info("polling stopped")
		if c.Err() != nil {
			return nil
		}
		return errors.New("poller exited")
	}, supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	return nil
}

// Stop ends polling. It never blocks longer than ctx or a short grace window.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	a.handler = nil
	a.runMu.Unlock()
	if sup == nil {
		return nil
	}

	sup.Cancel()
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		a.log.Warn("telegram stop", logx.Err(err))
	}
	return nil
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	chat := &tele.Chat{ID: to.ChatID}

	var first kit.MessageRef
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		sendOpt := &tele.SendOptions{
			ParseMode:             tele.ParseMode(opt.ParseMode),
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		}
		// Markup goes on the first chunk only.
		if i == 0 {
			sendOpt.ReplyMarkup = inlineMarkup(opt.Keyboard)
		}
		msg, err := a.bot.Send(chat, chunk, sendOpt)
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	return first, nil
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if callbackID == "" {
		return errors.New("telegram: empty callback id")
	}
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

// WebhookConfig describes the setWebhook registration.
type WebhookConfig struct {
	PublicURL   string
	SecretToken string
	DropPending bool
}

// SetWebhook registers the public endpoint with Telegram. Only callback
// queries are requested.
func (a *Adapter) SetWebhook(ctx context.Context, wh WebhookConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(wh.PublicURL) == "" {
		return errors.New("telegram: webhook public url is empty")
	}
	err := a.bot.SetWebhook(&tele.Webhook{
		SecretToken:    wh.SecretToken,
		AllowedUpdates: []string{"callback_query"},
		DropUpdates:    wh.DropPending,
		Endpoint:       &tele.WebhookEndpoint{PublicURL: wh.PublicURL},
	})
	if err != nil {
		return err
	}
	a.log.Info("webhook registered", logx.String("url", wh.PublicURL))
	return nil
}

// RemoveWebhook deletes the registration so long polling can take over.
func (a *Adapter) RemoveWebhook(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.bot.RemoveWebhook()
}

func inlineMarkup(rows [][]kit.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			r = append(r, tele.InlineButton{Text: b.Text, Data: b.Payload})
		}
		if len(r) > 0 {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return &tele.ReplyMarkup{InlineKeyboard: out}
}
