// Package webhook serves the inbound Telegram webhook. Every delivery is
// acknowledged with a 200 before any business logic runs; processing then
// continues on a context detached from the request.
package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	kit "checkinbot/internal/transport"
	"checkinbot/internal/transport/telegram"
	logx "checkinbot/pkg/logx"
)

const (
	DefaultListen         = ":8080"
	DefaultPath           = "/telegram/webhook"
	DefaultProcessTimeout = 30 * time.Second
	DefaultMaxBodyBytes   = 1 << 20
	DefaultShutdownGrace  = 10 * time.Second

	// SecretHeader carries the secret_token given to setWebhook.
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

var ackBody = []byte(`{"ok":true}`)

type Config struct {
	Listen         string
	Path           string
	SecretToken    string
	ProcessTimeout time.Duration
	MaxBodyBytes   int64
	ShutdownGrace  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.ProcessTimeout <= 0 {
		c.ProcessTimeout = DefaultProcessTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	return c
}

// Server is a chi router plus stdlib http.Server.
type Server struct {
	cfg     Config
	log     logx.Logger
	handle  kit.CallbackFunc
	mux     *chi.Mux
	srv     *http.Server
	addr    atomic.Value // string
	ready   chan struct{}
	readyMu sync.Once
}

// New builds the router. handle receives every delivery, including empty
// events for bodies that are not callback queries.
func New(cfg Config, handle kit.CallbackFunc, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:    cfg,
		log:    log.With(logx.String("comp", "webhook")),
		handle: handle,
		mux:    chi.NewRouter(),
		ready:  make(chan struct{}),
	}
	s.mux.Use(chimw.RequestID, chimw.RealIP, AccessLog(s.log, AccessLogOptions{Slow: 5 * time.Second}), chimw.Recoverer)
	s.mux.Get("/healthz", s.handleHealth)
	s.mux.Post(cfg.Path, s.handleUpdate)

	s.srv = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Addr is the bound listen address once Run has started listening.
func (s *Server) Addr() string {
	v, _ := s.addr.Load().(string)
	return v
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Run listens until ctx is canceled, then drains in-flight requests for up
// to ShutdownGrace.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	s.addr.Store(ln.Addr().String())
	s.readyMu.Do(func() { close(s.ready) })
	s.log.Info("webhook listening", logx.String("addr", ln.Addr().String()), logx.String("path", s.cfg.Path))

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownGrace)
	defer cancel()
	err = s.srv.Shutdown(sctx)
	<-errCh
	s.log.Info("webhook stopped")
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(ackBody)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if s.cfg.SecretToken != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.SecretToken)) != 1 {
			s.log.Warn("webhook secret mismatch", logx.String("remote", r.RemoteAddr))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	cb := s.decode(w, r)

	var (
		once   sync.Once
		ackErr error
	)
	ack := func() error {
		once.Do(func() { ackErr = writeAck(w) })
		return ackErr
	}
	// The request context ends with the response; processing must not.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.ProcessTimeout)
	defer cancel()

	if s.handle != nil {
		s.handle(ctx, cb, ack)
	}
	if err := ack(); err != nil {
		s.log.Debug("webhook ack write failed", logx.Err(err))
	}
}

// decode never fails the request: anything unreadable becomes an empty event.
func (s *Server) decode(w http.ResponseWriter, r *http.Request) kit.Callback {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		s.log.Warn("webhook body unreadable", logx.Err(err))
		return kit.Callback{}
	}
	cb, err := telegram.DecodeUpdate(body)
	switch {
	case errors.Is(err, telegram.ErrNotCallback):
		s.log.Debug("webhook update without callback")
		return kit.Callback{}
	case err != nil:
		s.log.Warn("webhook body malformed", logx.Err(err), logx.Int("bytes", len(body)))
		return kit.Callback{}
	}
	return cb
}

func writeAck(w http.ResponseWriter) error {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Content-Length", strconv.Itoa(len(ackBody)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(ackBody); err != nil {
		return err
	}
	if err := http.NewResponseController(w).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
