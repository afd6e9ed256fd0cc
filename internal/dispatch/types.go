package dispatch

import (
	"errors"
	"time"
)

var (
	ErrAlreadyRunning = errors.New("dispatch: a run is already active")
	ErrQuotaExceeded  = errors.New("dispatch: daily quota exhausted")
)

type Status string

const (
	StatusIdle          Status = "idle"
	StatusRunning       Status = "running"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
	StatusQuotaExceeded Status = "quota_exceeded"
)

// Terminal reports whether no further mutation of the run record is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusQuotaExceeded:
		return true
	}
	return false
}

// ResultEntry is one per-contact outcome. Index is the 1-based dispatch
// position and always matches input contact order.
type ResultEntry struct {
	Index     int       `json:"index"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail"`
}

// UnlimitedQuota is the QuotaRemaining value when no daily cap applies.
const UnlimitedQuota = -1

// RunRecord is the state of one campaign run. It is mutated only by the
// worker while Status is Running and is immutable once terminal. Readers
// always get a deep copy.
type RunRecord struct {
	ID             string        `json:"id"`
	Status         Status        `json:"status"`
	Current        int           `json:"current"`
	Total          int           `json:"total"`
	Results        []ResultEntry `json:"results"`
	StartTime      time.Time     `json:"start_time"`
	DryRun         bool          `json:"dry_run"`
	QuotaRemaining int           `json:"quota_remaining_at_start"`
	Error          string        `json:"error,omitempty"`
}

// SuccessCount derives the number of successful sends; it is never stored
// redundantly.
func (r *RunRecord) SuccessCount() int {
	n := 0
	for _, e := range r.Results {
		if e.Success {
			n++
		}
	}
	return n
}

func (r *RunRecord) FailedCount() int {
	return len(r.Results) - r.SuccessCount()
}

// clone returns a deep copy safe to hand to readers.
func (r *RunRecord) clone() RunRecord {
	cp := *r
	if r.Results != nil {
		cp.Results = append([]ResultEntry(nil), r.Results...)
	}
	return cp
}
