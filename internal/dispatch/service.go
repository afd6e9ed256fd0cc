package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"smsblast/internal/config"
	"smsblast/internal/contacts"
	"smsblast/internal/device"
	"smsblast/internal/eventstream"
	"smsblast/internal/quota"
	"smsblast/internal/storage"
	"smsblast/pkg/logx"
)

const runIDLayout = "20060102_150405"

// Service owns the single run slot.
type Service struct {
	driver device.Driver
	ledger *quota.Ledger
	stream *eventstream.Stream
	store  storage.Store
	log    logx.Logger

	// now is swappable for tests.
	now func() time.Time

	// onFinish, when set, is invoked with a snapshot after a run reaches a
	// terminal state. It runs on the worker goroutine and must not block.
	onFinish func(RunRecord)

	mu        sync.Mutex
	rec       *RunRecord
	cancelled bool
	stopCh    chan struct{}
	workerWG  sync.WaitGroup
}

func New(driver device.Driver, ledger *quota.Ledger, stream *eventstream.Stream, store storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		driver: driver,
		ledger: ledger,
		stream: stream,
		store:  store,
		log:    log,
		now:    time.Now,
	}
}

// SetFinishHook installs a terminal-state callback (e.g. the notifier).
func (s *Service) SetFinishHook(fn func(RunRecord)) { s.onFinish = fn }

// Start claims the run slot, reserves quota headroom, and launches the
// worker. It returns without waiting for any send.
//
// The contact list is filtered to enabled contacts, then truncated to the
// quota reservation. ErrAlreadyRunning and ErrQuotaExceeded are the two
// rejection cases; only the latter leaves a (terminal) record behind.
func (s *Service) Start(ctx context.Context, list []contacts.Contact, pol config.Policy) error {
	enabled := make([]contacts.Contact, 0, len(list))
	for _, c := range list {
		if c.Enabled {
			enabled = append(enabled, c)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec != nil && s.rec.Status == StatusRunning {
		return ErrAlreadyRunning
	}

	now := s.now()
	res, err := s.ledger.TryReserve(ctx, pol.DailyQuota, len(enabled), now)
	if err != nil {
		return fmt.Errorf("dispatch: quota reserve: %w", err)
	}

	if !res.Unlimited && res.RemainingBefore <= 0 {
		// Terminal without side effects: no worker, no results, no commit.
		s.rec = &RunRecord{
			ID:             now.UTC().Format(runIDLayout),
			Status:         StatusQuotaExceeded,
			StartTime:      now,
			DryRun:         pol.DryRun,
			QuotaRemaining: 0,
			Error:          fmt.Sprintf("daily limit reached (%d messages), resets tomorrow", pol.DailyQuota),
		}
		return ErrQuotaExceeded
	}

	eligible := enabled[:res.Eligible]
	remaining := UnlimitedQuota
	if !res.Unlimited {
		remaining = res.RemainingBefore
	}

	s.rec = &RunRecord{
		ID:             now.UTC().Format(runIDLayout),
		Status:         StatusRunning,
		Total:          len(eligible),
		StartTime:      now,
		DryRun:         pol.DryRun,
		QuotaRemaining: remaining,
	}
	s.cancelled = false
	s.stopCh = make(chan struct{})

	s.log.Info("run started",
		logx.String("run", s.rec.ID),
		logx.Int("total", len(eligible)),
		logx.Bool("dry_run", pol.DryRun),
		logx.Int("quota_remaining", remaining))

	s.workerWG.Add(1)
	go s.worker(eligible, pol, res)
	return nil
}

// Stop requests cancellation of the active run. It is idempotent; the
// returned bool reports whether a run was actually running.
func (s *Service) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil || s.rec.Status != StatusRunning {
		return false
	}
	if !s.cancelled {
		s.cancelled = true
		close(s.stopCh)
		s.log.Info("run stop requested", logx.String("run", s.rec.ID))
	}
	return true
}

// Status returns a read-consistent snapshot of the current run record. It
// never blocks on the worker.
func (s *Service) Status() RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return RunRecord{Status: StatusIdle, QuotaRemaining: UnlimitedQuota}
	}
	return s.rec.clone()
}

// Running reports whether a run is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec != nil && s.rec.Status == StatusRunning
}

// Drain waits for the worker to finish, bounded by ctx. Used on shutdown
// (after Stop) and in tests.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}
