package quota

import (
	"context"
	"testing"
	"time"

	"smsblast/internal/storage"
	"smsblast/pkg/logx"
)

// fakeStore implements the quota half of storage.Store; the run-archive
// methods are never reached from the ledger.
type fakeStore struct {
	st  storage.QuotaState
	has bool
}

func (f *fakeStore) QuotaState(context.Context) (storage.QuotaState, bool, error) {
	return f.st, f.has, nil
}

func (f *fakeStore) SaveQuotaState(_ context.Context, st storage.QuotaState) error {
	f.st, f.has = st, true
	return nil
}

func (f *fakeStore) SaveRun(context.Context, storage.ArchivedRun) error { return nil }
func (f *fakeStore) ListRuns(context.Context, int) ([]storage.RunSummary, error) {
	return nil, nil
}
func (f *fakeStore) GetRun(context.Context, string) (storage.ArchivedRun, error) {
	return storage.ArchivedRun{}, storage.ErrNotFound
}
func (f *fakeStore) DeleteRun(context.Context, string) error { return storage.ErrNotFound }
func (f *fakeStore) PurgeRuns(context.Context) (int, error)  { return 0, nil }
func (f *fakeStore) Close() error                            { return nil }

var day1 = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func TestTryReserveCapsEligible(t *testing.T) {
	tests := []struct {
		name       string
		quota      int
		sent       int
		candidates int
		eligible   int
		remaining  int
	}{
		{"under quota", 10, 3, 5, 5, 7},
		{"exact fit", 10, 5, 5, 5, 5},
		{"truncated", 10, 8, 5, 2, 2},
		{"exhausted", 10, 10, 5, 0, 0},
		{"over after lowering", 5, 8, 5, 0, -3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{
				st:  storage.QuotaState{Date: day1.Format(dateLayout), Sent: tc.sent},
				has: true,
			}
			l := NewLedger(store, logx.Nop())

			res, err := l.TryReserve(context.Background(), tc.quota, tc.candidates, day1)
			if err != nil {
				t.Fatalf("TryReserve: %v", err)
			}
			if res.Unlimited {
				t.Fatal("unexpected unlimited reservation")
			}
			if res.Eligible != tc.eligible {
				t.Fatalf("eligible = %d, want %d", res.Eligible, tc.eligible)
			}
			if res.RemainingBefore != tc.remaining {
				t.Fatalf("remaining = %d, want %d", res.RemainingBefore, tc.remaining)
			}
		})
	}
}

func TestTryReserveUnlimited(t *testing.T) {
	l := NewLedger(&fakeStore{}, logx.Nop())
	res, err := l.TryReserve(context.Background(), 0, 100, day1)
	if err != nil {
		t.Fatalf("TryReserve: %v", err)
	}
	if !res.Unlimited || res.Eligible != 100 {
		t.Fatalf("res = %+v, want unlimited with 100 eligible", res)
	}
}

func TestTryReserveRollsOverAndPersists(t *testing.T) {
	store := &fakeStore{
		st:  storage.QuotaState{Date: "2024-03-09", Sent: 42},
		has: true,
	}
	l := NewLedger(store, logx.Nop())

	res, err := l.TryReserve(context.Background(), 10, 3, day1)
	if err != nil {
		t.Fatalf("TryReserve: %v", err)
	}
	if res.Eligible != 3 || res.RemainingBefore != 10 {
		t.Fatalf("res = %+v, want fresh counter", res)
	}
	if store.st.Date != "2024-03-10" || store.st.Sent != 0 {
		t.Fatalf("persisted state = %+v, want rolled-over", store.st)
	}
}

func TestProjectionDoesNotPersist(t *testing.T) {
	store := &fakeStore{
		st:  storage.QuotaState{Date: "2024-03-09", Sent: 42},
		has: true,
	}
	l := NewLedger(store, logx.Nop())

	st, err := l.Projection(context.Background(), day1)
	if err != nil {
		t.Fatalf("Projection: %v", err)
	}
	if st.Date != "2024-03-10" || st.Sent != 0 {
		t.Fatalf("projection = %+v, want today/0", st)
	}
	if store.st.Date != "2024-03-09" || store.st.Sent != 42 {
		t.Fatalf("projection persisted: %+v", store.st)
	}
}

func TestCommitUsesReservationDate(t *testing.T) {
	store := &fakeStore{}
	l := NewLedger(store, logx.Nop())

	res, err := l.TryReserve(context.Background(), 10, 2, day1)
	if err != nil {
		t.Fatalf("TryReserve: %v", err)
	}

	// The counter rolls over (a midnight crossing) before the run finishes;
	// the commit still lands on the run's own date.
	if _, err := l.TryReserve(context.Background(), 10, 1, day1.Add(24*time.Hour)); err != nil {
		t.Fatalf("TryReserve next day: %v", err)
	}

	if err := l.Commit(context.Background(), res.Date, 2); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if store.st.Date != res.Date || store.st.Sent != 2 {
		t.Fatalf("state = %+v, want %s/2", store.st, res.Date)
	}
}

func TestCommitAccumulates(t *testing.T) {
	store := &fakeStore{}
	l := NewLedger(store, logx.Nop())
	date := day1.Format(dateLayout)

	for i := 0; i < 3; i++ {
		if err := l.Commit(context.Background(), date, 2); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}
	if store.st.Sent != 6 {
		t.Fatalf("sent = %d, want 6", store.st.Sent)
	}

	if err := l.Commit(context.Background(), date, -1); err == nil {
		t.Fatal("negative commit accepted")
	}
}

func TestReset(t *testing.T) {
	store := &fakeStore{
		st:  storage.QuotaState{Date: day1.Format(dateLayout), Sent: 9},
		has: true,
	}
	l := NewLedger(store, logx.Nop())

	if err := l.Reset(context.Background(), day1); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if store.st.Sent != 0 || store.st.Date != day1.Format(dateLayout) {
		t.Fatalf("state = %+v, want today/0", store.st)
	}
}
