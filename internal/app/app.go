// Package app wires configuration, logging, the messaging gateway, the
// roster and ledger stores, the trigger scheduler and the inbound
// transport into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"checkinbot/internal/checkin"
	"checkinbot/internal/config"
	"checkinbot/internal/roster"
	"checkinbot/internal/runtime/supervisor"
	"checkinbot/internal/storage"
	"checkinbot/internal/task/scheduler"
	kit "checkinbot/internal/transport"
	"checkinbot/internal/transport/telegram"
	"checkinbot/internal/transport/webhook"
	logx "checkinbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	opts options

	log  logx.Logger
	logs *logx.Service

	tg      *telegram.Adapter // nil when a gateway is injected
	gateway kit.Gateway
	roster  roster.Store
	store   storage.Store

	sched *scheduler.Service
	hook  *webhook.Server

	reminder  atomic.Pointer[checkin.Reminder]
	callbacks atomic.Pointer[checkin.Callbacks]

	sup *supervisor.Supervisor
}

type Option func(*options)

type options struct {
	gateway kit.Gateway
	roster  roster.Store
	clock   checkin.Clock
	offline bool
	noLog   bool
}

// WithGateway replaces the Telegram adapter.
func WithGateway(g kit.Gateway) Option { return func(o *options) { o.gateway = g } }

// WithRoster replaces the configured roster driver.
func WithRoster(s roster.Store) Option { return func(o *options) { o.roster = s } }

func WithClock(c checkin.Clock) Option { return func(o *options) { o.clock = c } }

// WithOffline skips the Bot API handshake at construction time.
func WithOffline() Option { return func(o *options) { o.offline = true } }

// WithoutLogging silences all log output.
func WithoutLogging() Option { return func(o *options) { o.noLog = true } }

// New loads and validates the config at cfgPath and builds every component.
// Nothing is started.
func New(ctx context.Context, cfgPath string, opts ...Option) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	a := &App{cfgm: cfgm}
	for _, o := range opts {
		o(&a.opts)
	}

	if a.opts.noLog {
		a.log = logx.Nop()
	} else {
		a.logs, a.log = logx.New(mapLogConfig(cfg), nil)
	}
	cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	if err := a.build(ctx, cfg); err != nil {
		_ = a.closeStores()
		if a.logs != nil {
			_ = a.logs.Close()
		}
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config) error {
	a.gateway = a.opts.gateway
	if a.gateway == nil {
		tc, err := mapTelegramConfig(cfg, a.opts.offline)
		if err != nil {
			return err
		}
		ad, err := telegram.New(tc, a.log)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		a.tg, a.gateway = ad, ad
	}
	if a.logs != nil {
		a.logs.SetSender(a.gateway)
	}

	a.roster = a.opts.roster
	if a.roster == nil {
		rc, err := mapRosterConfig(cfg)
		if err != nil {
			return err
		}
		st, err := roster.Open(ctx, rc, a.log.With(logx.String("comp", "roster")))
		if err != nil {
			return fmt.Errorf("roster: %w", err)
		}
		a.roster = st
	}

	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		return err
	}
	if enabled {
		st, err := storage.Open(sc, a.log.With(logx.String("comp", "storage")))
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	if err := a.applyCheckin(cfg); err != nil {
		return err
	}

	a.sched = scheduler.New(mapSchedulerConfig(cfg), a.log)
	if err := a.registerReminder(cfg); err != nil {
		return err
	}

	if cfg.Telegram.ModeOrDefault() == "webhook" {
		wc, err := mapWebhookConfig(cfg)
		if err != nil {
			return err
		}
		a.hook = webhook.New(wc, a.dispatch, a.log)
	}
	return nil
}

// applyCheckin swaps in Reminder and Callbacks built from cfg. In-flight
// callbacks finish on the instance they started with.
func (a *App) applyCheckin(cfg *config.Config) error {
	cc, err := mapCallbackConfig(cfg, a.log)
	if err != nil {
		return err
	}
	deps := checkin.Deps{Store: a.roster, Gateway: a.gateway, Log: a.log, Clock: a.opts.clock}
	var ledger checkin.Ledger
	if a.store != nil {
		ledger = a.store
	}
	a.reminder.Store(checkin.NewReminder(mapReminderConfig(cfg, a.log), deps))
	a.callbacks.Store(checkin.NewCallbacks(cc, deps, ledger))
	return nil
}

func (a *App) registerReminder(cfg *config.Config) error {
	timeout, err := runTimeout(cfg)
	if err != nil {
		return err
	}
	return a.sched.AddSchedule(reminderJob, cfg.Checkin.ScheduleOrDefault(), timeout, func(ctx context.Context) error {
		_, err := a.Remind(ctx)
		return err
	})
}

func (a *App) dispatch(ctx context.Context, cb kit.Callback, ack func() error) {
	a.callbacks.Load().Handle(ctx, cb, ack)
}

func (a *App) Log() logx.Logger { return a.log }

func (a *App) Config() *config.Config { return a.cfgm.Get() }

func (a *App) Reminder() *checkin.Reminder { return a.reminder.Load() }

func (a *App) Callbacks() *checkin.Callbacks { return a.callbacks.Load() }

// Webhook is nil in poll mode.
func (a *App) Webhook() *webhook.Server { return a.hook }

// Remind runs one reminder now, bounded by checkin.run_timeout.
func (a *App) Remind(ctx context.Context) (checkin.RunResult, error) {
	timeout, err := runTimeout(a.cfgm.Get())
	if err != nil {
		return checkin.RunResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	res, err := a.reminder.Load().Run(ctx)
	if err != nil {
		a.log.Error("reminder run failed", logx.String("kind", string(checkin.KindOf(err))), logx.Err(err))
		return res, err
	}
	a.log.Info("reminder run", logx.Int("processed", res.ContactsProcessed), logx.Int("due", res.ContactsDue), logx.Bool("sent", res.MessageSent))
	return res, nil
}

// NextRuns lists the next n reminder fire times.
func (a *App) NextRuns(n int) ([]time.Time, error) {
	cfg := a.cfgm.Get()
	return a.sched.NextRuns(cfg.Checkin.ScheduleOrDefault(), time.Now(), location(cfg, a.log), n)
}

// Done is closed once the app context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err is the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start launches the scheduler, the inbound transport and config hot reload.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	cfg := a.cfgm.Get()
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))), supervisor.WithCancelOnError(true))
	runCtx := a.sup.Context()

	a.sched.Start(runCtx)

	switch {
	case a.hook != nil:
		a.sup.Go("webhook.server", a.hook.Run)
		if cfg.Webhook.PublicURL != "" && a.tg != nil {
			if err := a.tg.SetWebhook(ctx, telegram.WebhookConfig{PublicURL: cfg.Webhook.PublicURL, SecretToken: cfg.Webhook.SecretToken}); err != nil {
				a.sup.Cancel()
				return fmt.Errorf("set webhook: %w", err)
			}
		}
	case a.tg != nil:
		if err := a.tg.RemoveWebhook(ctx); err != nil {
			a.log.Warn("remove webhook failed; polling may conflict", logx.Err(err))
		}
		if err := a.tg.Start(runCtx, a.dispatch); err != nil {
			a.sup.Cancel()
			return err
		}
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) { a.reloadLoop(c, sub) })
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.startSystemd()

	a.log.Info("app started",
		logx.String("mode", cfg.Telegram.ModeOrDefault()),
		logx.String("schedule", cfg.Checkin.ScheduleOrDefault()),
		logx.String("roster", cfg.Roster.Driver),
	)
	return nil
}

// Stop shuts components down in dependency order. Each step is bounded so
// a stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context) error {
	defer func() {
		if a.logs != nil {
			_ = a.logs.Close()
		}
	}()
	if a.sup == nil {
		return a.closeStores()
	}
	notifySystemd(a.log, sdStopping)
	a.log.Info("stopping")
	a.sup.Cancel()

	a.step(ctx, "scheduler", 3*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "telegram", 2*time.Second, func(c context.Context) error {
		if a.tg != nil {
			return a.tg.Stop(c)
		}
		return nil
	})
	a.step(ctx, "supervisor", 12*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	a.step(ctx, "stores", time.Second, func(context.Context) error { return a.closeStores() })

	a.log.Info("stopped")
	return nil
}

// Close releases stores without starting or stopping anything.
func (a *App) Close() error {
	err := a.closeStores()
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}

func (a *App) closeStores() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.roster != nil && a.opts.roster == nil {
		errs = append(errs, a.roster.Close())
		a.roster = nil
	}
	return errors.Join(errs...)
}

func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		limit = min(limit, time.Until(dl))
	}
	if limit <= 0 {
		a.log.Warn("stop step skipped; deadline reached", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
