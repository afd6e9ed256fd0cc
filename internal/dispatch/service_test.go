package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"smsblast/internal/config"
	"smsblast/internal/contacts"
	"smsblast/internal/device"
	"smsblast/internal/eventstream"
	"smsblast/internal/quota"
	"smsblast/internal/storage"
	"smsblast/pkg/logx"
)

// memStore is an in-memory storage.Store for tests.
type memStore struct {
	mu       sync.Mutex
	quota    storage.QuotaState
	hasQuota bool
	runs     map[string]storage.ArchivedRun
}

func newMemStore() *memStore {
	return &memStore{runs: map[string]storage.ArchivedRun{}}
}

func (m *memStore) QuotaState(context.Context) (storage.QuotaState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quota, m.hasQuota, nil
}

func (m *memStore) SaveQuotaState(_ context.Context, st storage.QuotaState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quota, m.hasQuota = st, true
	return nil
}

func (m *memStore) SaveRun(_ context.Context, run storage.ArchivedRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *memStore) ListRuns(context.Context, int) ([]storage.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]storage.RunSummary, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, storage.RunSummary{ID: r.ID, Status: r.Status, Total: r.Total})
	}
	return out, nil
}

func (m *memStore) GetRun(_ context.Context, id string) (storage.ArchivedRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return storage.ArchivedRun{}, storage.ErrNotFound
	}
	return r, nil
}

func (m *memStore) DeleteRun(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.runs, id)
	return nil
}

func (m *memStore) PurgeRuns(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.runs)
	m.runs = map[string]storage.ArchivedRun{}
	return n, nil
}

func (m *memStore) Close() error { return nil }

func newTestService(driver device.Driver, store storage.Store) *Service {
	ledger := quota.NewLedger(store, logx.Nop())
	return New(driver, ledger, eventstream.New(), store, logx.Nop())
}

func testContacts(n int) []contacts.Contact {
	out := make([]contacts.Contact, n)
	for i := range out {
		out[i] = contacts.Contact{
			ID:      i,
			Phone:   "+100000000" + string(rune('0'+i)),
			Name:    "c" + string(rune('0'+i)),
			Enabled: true,
		}
	}
	return out
}

func drain(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func TestRunCompletesInOrder(t *testing.T) {
	fake := &device.Fake{}
	s := newTestService(fake, newMemStore())

	list := testContacts(3)
	if err := s.Start(context.Background(), list, config.Policy{DefaultMessage: "hi"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, s)

	rec := s.Status()
	if rec.Status != StatusCompleted {
		t.Fatalf("status = %q, want %q", rec.Status, StatusCompleted)
	}
	if rec.Current != 3 || rec.Total != 3 {
		t.Fatalf("current/total = %d/%d, want 3/3", rec.Current, rec.Total)
	}
	if len(rec.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(rec.Results))
	}
	for i, e := range rec.Results {
		if e.Index != i+1 {
			t.Fatalf("results[%d].Index = %d, want %d", i, e.Index, i+1)
		}
		if e.Phone != list[i].Phone {
			t.Fatalf("results[%d].Phone = %q, want %q", i, e.Phone, list[i].Phone)
		}
	}

	calls := fake.Calls()
	if len(calls) != 3 {
		t.Fatalf("driver calls = %d, want 3", len(calls))
	}
	for _, c := range calls {
		if c.Message != "hi" {
			t.Fatalf("message = %q, want default", c.Message)
		}
	}
}

func TestPerContactMessageOverride(t *testing.T) {
	fake := &device.Fake{}
	s := newTestService(fake, newMemStore())

	list := testContacts(2)
	list[1].Message = "custom"
	if err := s.Start(context.Background(), list, config.Policy{DefaultMessage: "hi"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, s)

	calls := fake.Calls()
	if calls[0].Message != "hi" || calls[1].Message != "custom" {
		t.Fatalf("messages = %q, %q", calls[0].Message, calls[1].Message)
	}
}

func TestDisabledContactsSkipped(t *testing.T) {
	fake := &device.Fake{}
	s := newTestService(fake, newMemStore())

	list := testContacts(3)
	list[1].Enabled = false
	if err := s.Start(context.Background(), list, config.Policy{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, s)

	rec := s.Status()
	if rec.Total != 2 || len(rec.Results) != 2 {
		t.Fatalf("total/results = %d/%d, want 2/2", rec.Total, len(rec.Results))
	}
	for _, c := range fake.Calls() {
		if c.Phone == list[1].Phone {
			t.Fatalf("disabled contact was dispatched")
		}
	}
}

func TestStartWhileRunningRejected(t *testing.T) {
	fake := &device.Fake{Latency: 50 * time.Millisecond}
	s := newTestService(fake, newMemStore())

	if err := s.Start(context.Background(), testContacts(3), config.Policy{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background(), testContacts(3), config.Policy{}); err != ErrAlreadyRunning {
		t.Fatalf("second Start = %v, want ErrAlreadyRunning", err)
	}
	s.Stop()
	drain(t, s)
}

func TestStopCancelsRun(t *testing.T) {
	fake := &device.Fake{Latency: 20 * time.Millisecond}
	s := newTestService(fake, newMemStore())

	if err := s.Start(context.Background(), testContacts(9), config.Policy{Delay: time.Hour}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Let the first send land, then cancel while the worker is pacing.
	deadline := time.Now().Add(2 * time.Second)
	for s.Status().Current == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no result recorded before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !s.Stop() {
		t.Fatal("Stop reported no active run")
	}
	drain(t, s)

	rec := s.Status()
	if rec.Status != StatusCancelled {
		t.Fatalf("status = %q, want %q", rec.Status, StatusCancelled)
	}
	if len(rec.Results) == 0 || len(rec.Results) >= 9 {
		t.Fatalf("results = %d, want partial", len(rec.Results))
	}
}

func TestStopWhileIdle(t *testing.T) {
	s := newTestService(&device.Fake{}, newMemStore())
	if s.Stop() {
		t.Fatal("Stop reported an active run while idle")
	}
	if got := s.Status().Status; got != StatusIdle {
		t.Fatalf("status = %q, want %q", got, StatusIdle)
	}
}

func TestQuotaTruncatesAndBlocks(t *testing.T) {
	store := newMemStore()
	s := newTestService(&device.Fake{}, store)
	pol := config.Policy{DailyQuota: 2}

	if err := s.Start(context.Background(), testContacts(3), pol); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, s)

	rec := s.Status()
	if rec.Status != StatusCompleted || rec.Total != 2 {
		t.Fatalf("status/total = %q/%d, want completed/2", rec.Status, rec.Total)
	}
	if rec.QuotaRemaining != 2 {
		t.Fatalf("quota remaining at start = %d, want 2", rec.QuotaRemaining)
	}

	st, _, _ := store.QuotaState(context.Background())
	if st.Sent != 2 {
		t.Fatalf("committed sent = %d, want 2", st.Sent)
	}

	// The quota is spent; the next start must be rejected with a terminal
	// record and no dispatched sends.
	if err := s.Start(context.Background(), testContacts(3), pol); err != ErrQuotaExceeded {
		t.Fatalf("Start = %v, want ErrQuotaExceeded", err)
	}
	rec = s.Status()
	if rec.Status != StatusQuotaExceeded {
		t.Fatalf("status = %q, want %q", rec.Status, StatusQuotaExceeded)
	}
	if rec.Error == "" {
		t.Fatal("quota-exceeded record has no error message")
	}
	if st, _, _ := store.QuotaState(context.Background()); st.Sent != 2 {
		t.Fatalf("sent changed to %d after rejected start", st.Sent)
	}
}

func TestDryRunSkipsCommit(t *testing.T) {
	store := newMemStore()
	s := newTestService(&device.Fake{}, store)

	if err := s.Start(context.Background(), testContacts(3), config.Policy{DryRun: true, DailyQuota: 5}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, s)

	if got := s.Status().Status; got != StatusCompleted {
		t.Fatalf("status = %q, want %q", got, StatusCompleted)
	}
	st, _, _ := store.QuotaState(context.Background())
	if st.Sent != 0 {
		t.Fatalf("dry run committed %d sends", st.Sent)
	}
}

func TestFailuresCountedNotCommitted(t *testing.T) {
	store := newMemStore()
	fake := &device.Fake{FailPhones: map[string]string{"+1000000001": "no signal"}}
	s := newTestService(fake, store)

	list := testContacts(3)
	if err := s.Start(context.Background(), list, config.Policy{DailyQuota: 10}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, s)

	rec := s.Status()
	if rec.SuccessCount() != 2 || rec.FailedCount() != 1 {
		t.Fatalf("success/failed = %d/%d, want 2/1", rec.SuccessCount(), rec.FailedCount())
	}

	// Only successes consume quota.
	st, _, _ := store.QuotaState(context.Background())
	if st.Sent != 2 {
		t.Fatalf("committed sent = %d, want 2", st.Sent)
	}
}

func TestRunArchived(t *testing.T) {
	store := newMemStore()
	s := newTestService(&device.Fake{}, store)

	if err := s.Start(context.Background(), testContacts(2), config.Policy{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, s)

	rec := s.Status()
	got, err := store.GetRun(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != string(StatusCompleted) || got.Total != 2 || got.Success != 2 {
		t.Fatalf("archived = %+v", got)
	}

	var replay RunRecord
	if err := json.Unmarshal(got.Record, &replay); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if replay.ID != rec.ID || len(replay.Results) != 2 {
		t.Fatalf("replayed record = %+v", replay)
	}
}

func TestFinishHookGetsTerminalSnapshot(t *testing.T) {
	s := newTestService(&device.Fake{}, newMemStore())

	done := make(chan RunRecord, 1)
	s.SetFinishHook(func(rec RunRecord) { done <- rec })

	if err := s.Start(context.Background(), testContacts(1), config.Policy{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, s)

	select {
	case rec := <-done:
		if !rec.Status.Terminal() {
			t.Fatalf("hook saw non-terminal status %q", rec.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("finish hook not called")
	}
}

func TestStatusSnapshotIsolated(t *testing.T) {
	s := newTestService(&device.Fake{}, newMemStore())

	if err := s.Start(context.Background(), testContacts(2), config.Policy{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, s)

	a := s.Status()
	a.Results[0].Phone = "mutated"
	b := s.Status()
	if b.Results[0].Phone == "mutated" {
		t.Fatal("Status returned a shared Results slice")
	}
}
