package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("storage: not found")

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// QuotaState is the persisted daily-quota row.
//
// Date is a calendar date in "2006-01-02" form. Sent counts successful,
// non-dry-run sends committed on that date.
type QuotaState struct {
	Date string
	Sent int
}

// ArchivedRun is a completed campaign run as persisted. Record holds the full
// run record JSON; the remaining columns are denormalized for cheap listing.
// Rows are never updated after insert.
type ArchivedRun struct {
	ID        string
	StartedAt time.Time
	Status    string
	Total     int
	Success   int
	Failed    int
	Record    []byte
}

// RunSummary is the listing projection of an archived run.
type RunSummary struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"start_time"`
	Status    string    `json:"status"`
	Total     int       `json:"total"`
	Success   int       `json:"success"`
	Failed    int       `json:"failed"`
}

// Store is the persistence API used by the quota ledger and the dispatcher.
type Store interface {
	QuotaState(ctx context.Context) (QuotaState, bool, error)
	SaveQuotaState(ctx context.Context, st QuotaState) error

	SaveRun(ctx context.Context, run ArchivedRun) error
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	GetRun(ctx context.Context, id string) (ArchivedRun, error)
	DeleteRun(ctx context.Context, id string) error
	PurgeRuns(ctx context.Context) (int, error)

	Close() error
}
