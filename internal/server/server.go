package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"smsblast/internal/config"
	"smsblast/internal/contacts"
	"smsblast/internal/device"
	"smsblast/internal/dispatch"
	"smsblast/internal/eventstream"
	"smsblast/internal/quota"
	"smsblast/internal/storage"
	"smsblast/pkg/logx"
)

// Service owns the HTTP listener. Start/Stop are idempotent; Apply restarts
// the server when the listen settings change.
type Service struct {
	handlers *Handlers
	log      logx.Logger

	mu  sync.Mutex
	cfg config.ServerConfig
	ln  net.Listener
	srv *http.Server
}

// Handlers bundles the collaborators the endpoints need.
type Handlers struct {
	Manager  *config.Manager
	Contacts *contacts.Store
	Dispatch *dispatch.Service
	Ledger   *quota.Ledger
	Archive  storage.Store
	Device   *device.ADB
	Stream   *eventstream.Stream
	Log      logx.Logger
}

func New(cfg config.ServerConfig, h *Handlers, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if h.Log.IsZero() {
		h.Log = log
	}
	return &Service{handlers: h, log: log, cfg: cfg}
}

// Start binds the listener and serves in the background.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	readTmo, _ := config.ParseDurationField("server.read_timeout", s.cfg.ReadTimeout)
	writeTmo, _ := config.ParseDurationField("server.write_timeout", s.cfg.WriteTimeout)
	idleTmo, _ := config.ParseDurationOrDefault("server.idle_timeout", s.cfg.IdleTimeout, 60*time.Second)

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:     s.handlers.mux(),
		ReadTimeout: readTmo,
		// WriteTimeout stays 0 unless configured: the SSE stream holds its
		// response open indefinitely.
		WriteTimeout: writeTmo,
		IdleTimeout:  idleTmo,
	}
	s.ln = ln
	s.srv = srv

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", logx.Err(err))
		}
	}()

	s.log.Info("http server listening", logx.String("addr", ln.Addr().String()))
	return nil
}

// Stop gracefully shuts the server down, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()

	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
	}
}

// Apply restarts the server if the listen settings changed.
func (s *Service) Apply(ctx context.Context, cfg config.ServerConfig) error {
	s.mu.Lock()
	changed := s.cfg != cfg
	s.cfg = cfg
	running := s.srv != nil
	s.mu.Unlock()

	if !changed || !running {
		return nil
	}
	s.Stop(ctx)
	return s.Start(ctx)
}

// Addr reports the bound address (useful with ":0" in tests).
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}
