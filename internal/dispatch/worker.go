package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"smsblast/internal/config"
	"smsblast/internal/contacts"
	"smsblast/internal/quota"
	"smsblast/internal/storage"
	"smsblast/pkg/logx"
)

// worker executes one run to completion or cancellation. It is the only
// writer of the run record while the record is Running.
func (s *Service) worker(list []contacts.Contact, pol config.Policy, res quota.Reservation) {
	defer s.workerWG.Done()

	ctx := context.Background()
	log := s.log.With(logx.String("run", s.currentID()))

	for i, c := range list {
		// Cancellation is observed here and after pacing, never mid-send.
		if s.isCancelled() {
			break
		}

		msg := c.Message
		if msg == "" {
			msg = pol.DefaultMessage
		}

		ok, detail := s.driver.Send(ctx, c.Phone, msg, pol.DryRun)

		entry := ResultEntry{
			Index:     i + 1,
			Phone:     c.Phone,
			Name:      c.Name,
			Timestamp: s.now(),
			Success:   ok,
			Detail:    detail,
		}

		s.mu.Lock()
		s.rec.Results = append(s.rec.Results, entry)
		s.rec.Current = len(s.rec.Results)
		s.mu.Unlock()

		s.stream.Publish(entry)
		log.Debug("send recorded",
			logx.Int("index", entry.Index),
			logx.String("phone", entry.Phone),
			logx.Bool("success", ok))

		if i < len(list)-1 && !s.isCancelled() {
			s.pace(pol.Delay)
		}
	}

	s.finish(ctx, pol, res, log)
}

// pace waits the configured delay between sends, waking early on stop.
func (s *Service) pace(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	stopCh := s.stopCh
	s.mu.Unlock()

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-stopCh:
	}
}

// finish commits quota, archives the record, and only then exposes the
// terminal status. Persistence failures are recorded on the run's Error
// field; the in-memory record stays readable either way.
func (s *Service) finish(ctx context.Context, pol config.Policy, res quota.Reservation, log logx.Logger) {
	s.mu.Lock()
	final := StatusCompleted
	if s.cancelled {
		final = StatusCancelled
	}
	snap := s.rec.clone()
	s.mu.Unlock()

	snap.Status = final

	var persistErr error
	if !pol.DryRun {
		if err := s.ledger.Commit(ctx, res.Date, snap.SuccessCount()); err != nil {
			persistErr = err
			log.Error("quota commit failed", logx.Err(err))
		}
	}

	if persistErr == nil {
		if err := s.archive(ctx, snap); err != nil {
			persistErr = err
			log.Error("run archive failed", logx.Err(err))
		}
	}

	s.mu.Lock()
	s.rec.Status = final
	if persistErr != nil {
		s.rec.Error = persistErr.Error()
	}
	s.cancelled = false
	snap = s.rec.clone()
	s.mu.Unlock()

	log.Info("run finished",
		logx.String("status", string(final)),
		logx.Int("total", snap.Total),
		logx.Int("success", snap.SuccessCount()),
		logx.Int("failed", snap.FailedCount()))

	if s.onFinish != nil {
		s.onFinish(snap)
	}
}

func (s *Service) archive(ctx context.Context, snap RunRecord) error {
	rec, err := json.Marshal(&snap)
	if err != nil {
		return err
	}
	return s.store.SaveRun(ctx, storage.ArchivedRun{
		ID:        snap.ID,
		StartedAt: snap.StartTime,
		Status:    string(snap.Status),
		Total:     snap.Total,
		Success:   snap.SuccessCount(),
		Failed:    snap.FailedCount(),
		Record:    rec,
	})
}

func (s *Service) currentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return ""
	}
	return s.rec.ID
}
