// Package schedule starts a campaign automatically at a configured daily
// time (e.g. "09:00"). A start that collides with an active run or an
// exhausted quota is logged and skipped.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"smsblast/internal/config"
	"smsblast/internal/contacts"
	"smsblast/internal/dispatch"
	"smsblast/pkg/logx"
)

type Service struct {
	mgr   *config.Manager
	store *contacts.Store
	disp  *dispatch.Service
	log   logx.Logger

	mu sync.Mutex
	c  *cron.Cron
}

func New(mgr *config.Manager, store *contacts.Store, disp *dispatch.Service, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{mgr: mgr, store: store, disp: disp, log: log}
}

// Apply restarts the cron entry for the given settings. Called on startup
// and on every config reload.
func (s *Service) Apply(cfg config.ScheduleConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.c != nil {
		s.c.Stop()
		s.c = nil
	}
	if !cfg.Enabled {
		return
	}

	hour, minute, err := config.ParseClock(cfg.Time)
	if err != nil {
		// Validate rejects this earlier; guard anyway.
		s.log.Warn("schedule disabled: bad time", logx.String("time", cfg.Time), logx.Err(err))
		return
	}

	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			s.log.Warn("schedule disabled: bad timezone", logx.String("timezone", tz), logx.Err(err))
			return
		}
		loc = l
	}

	c := cron.New(cron.WithLocation(loc))
	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	if _, err := c.AddFunc(spec, s.fire); err != nil {
		s.log.Warn("schedule disabled: bad cron spec", logx.String("spec", spec), logx.Err(err))
		return
	}
	c.Start()
	s.c = c
	s.log.Info("daily campaign scheduled", logx.String("time", cfg.Time), logx.String("timezone", loc.String()))
}

func (s *Service) fire() {
	cfg := s.mgr.Get()
	if cfg == nil {
		return
	}
	list, err := s.store.List()
	if err != nil {
		s.log.Error("scheduled run aborted: contacts unreadable", logx.Err(err))
		return
	}

	err = s.disp.Start(context.Background(), list, cfg.RuntimePolicy())
	switch {
	case errors.Is(err, dispatch.ErrAlreadyRunning):
		s.log.Warn("scheduled run skipped: already running")
	case errors.Is(err, dispatch.ErrQuotaExceeded):
		s.log.Warn("scheduled run skipped: daily quota exhausted")
	case err != nil:
		s.log.Error("scheduled run failed to start", logx.Err(err))
	default:
		s.log.Info("scheduled run started")
	}
}

// Stop halts the cron scheduler, waiting for a firing entry to return.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
}
