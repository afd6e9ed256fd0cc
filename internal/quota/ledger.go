package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"smsblast/internal/storage"
	"smsblast/pkg/logx"
)

const dateLayout = "2006-01-02"

// Reservation is the outcome of TryReserve.
//
// Eligible is how many of the candidate contacts may be dispatched.
// RemainingBefore is the headroom before the run started; it is meaningless
// when Unlimited is true.
type Reservation struct {
	Date            string
	Eligible        int
	RemainingBefore int
	Unlimited       bool
}

// Ledger serializes all quota reads and writes against the persisted state.
// At most one run is active at a time by construction, so the mutex only has
// to order TryReserve/Commit against concurrent status reads.
type Ledger struct {
	mu    sync.Mutex
	store storage.Store
	log   logx.Logger
}

func NewLedger(store storage.Store, log logx.Logger) *Ledger {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Ledger{store: store, log: log}
}

// TryReserve rolls the counter over if now is a new date (persisting the
// reset), then computes how many of the candidates fit under dailyQuota.
// dailyQuota <= 0 means unlimited.
func (l *Ledger) TryReserve(ctx context.Context, dailyQuota, candidates int, now time.Time) (Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.rolledOver(ctx, now, true)
	if err != nil {
		return Reservation{}, err
	}

	res := Reservation{Date: st.Date}
	if dailyQuota <= 0 {
		res.Unlimited = true
		res.Eligible = candidates
		return res, nil
	}

	// RemainingBefore may go negative when the operator lowers the quota
	// below what was already sent today.
	res.RemainingBefore = dailyQuota - st.Sent
	if res.RemainingBefore <= 0 {
		res.Eligible = 0
		return res, nil
	}
	res.Eligible = candidates
	if res.Eligible > res.RemainingBefore {
		res.Eligible = res.RemainingBefore
	}
	return res, nil
}

// Commit adds sent successful sends to the counter for the reservation's
// date. Dry runs never call Commit.
func (l *Ledger) Commit(ctx context.Context, date string, sent int) error {
	if sent < 0 {
		return fmt.Errorf("quota: negative commit %d", sent)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	st, _, err := l.store.QuotaState(ctx)
	if err != nil {
		return fmt.Errorf("quota: load state: %w", err)
	}
	if st.Date != date {
		// The run's date is authoritative for its own sends.
		st = storage.QuotaState{Date: date}
	}
	st.Sent += sent
	if err := l.store.SaveQuotaState(ctx, st); err != nil {
		return fmt.Errorf("quota: save state: %w", err)
	}
	l.log.Debug("quota committed", logx.String("date", date), logx.Int("sent", sent), logx.Int("total", st.Sent))
	return nil
}

// Projection returns the state as of now without persisting a rollover.
// Intended for status queries.
func (l *Ledger) Projection(ctx context.Context, now time.Time) (storage.QuotaState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rolledOver(ctx, now, false)
}

// Reset zeroes today's counter and persists immediately.
func (l *Ledger) Reset(ctx context.Context, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := storage.QuotaState{Date: now.Format(dateLayout), Sent: 0}
	if err := l.store.SaveQuotaState(ctx, st); err != nil {
		return fmt.Errorf("quota: save state: %w", err)
	}
	return nil
}

// rolledOver loads the state and applies a date rollover when needed.
// With persist set, the reset is written through before returning.
// Call with l.mu held.
func (l *Ledger) rolledOver(ctx context.Context, now time.Time, persist bool) (storage.QuotaState, error) {
	st, ok, err := l.store.QuotaState(ctx)
	if err != nil {
		return storage.QuotaState{}, fmt.Errorf("quota: load state: %w", err)
	}
	today := now.Format(dateLayout)
	if ok && st.Date == today {
		return st, nil
	}

	st = storage.QuotaState{Date: today, Sent: 0}
	if persist {
		if err := l.store.SaveQuotaState(ctx, st); err != nil {
			return storage.QuotaState{}, fmt.Errorf("quota: persist rollover: %w", err)
		}
		l.log.Info("daily quota rolled over", logx.String("date", today))
	}
	return st, nil
}
