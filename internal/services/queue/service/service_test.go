package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"gridintake/internal/modkit/repokit"
	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/store"
	"gridintake/internal/services/queue/domain"
)

type fakeDB struct{ store.RowQuerier }

func (f fakeDB) Tx(ctx context.Context, fn func(q store.RowQuerier) error) error { return fn(f) }

// memRepo mirrors the SQL state machine closely enough to test the service rules
type memRepo struct {
	mu       sync.Mutex
	now      time.Time
	nextID   int64
	jobs     map[int64]*domain.Job
	claimErr error
}

func newMem() *memRepo {
	return &memRepo{now: time.Unix(1_700_000_000, 0).UTC(), jobs: map[int64]*domain.Job{}}
}

func (m *memRepo) Insert(_ context.Context, payload []byte, prio, retries int, at *time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var p domain.Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, err
	}
	m.nextID++
	avail := m.now
	if at != nil {
		avail = *at
	}
	m.jobs[m.nextID] = &domain.Job{ID: m.nextID, Payload: p, Priority: prio, MaxRetries: retries,
		Status: domain.StatusQueued, AvailableAt: avail, CreatedAt: m.now}
	return m.nextID, nil
}

func (m *memRepo) Claim(_ context.Context, worker string) (domain.Job, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return domain.Job{}, false, m.claimErr
	}
	var cands []*domain.Job
	for _, j := range m.jobs {
		if j.Status == domain.StatusQueued && !j.AvailableAt.After(m.now) {
			cands = append(cands, j)
		}
	}
	if len(cands) == 0 {
		return domain.Job{}, false, nil
	}
	sort.Slice(cands, func(a, b int) bool {
		x, y := cands[a], cands[b]
		if x.Priority != y.Priority {
			return x.Priority < y.Priority
		}
		if !x.AvailableAt.Equal(y.AvailableAt) {
			return x.AvailableAt.Before(y.AvailableAt)
		}
		return x.ID < y.ID
	})
	j := cands[0]
	j.Status, j.WorkerID, j.Tries = domain.StatusRunning, worker, j.Tries+1
	return *j, true, nil
}

func (m *memRepo) MarkDone(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != domain.StatusRunning {
		return false, nil
	}
	j.Status = domain.StatusDone
	return true, nil
}

func (m *memRepo) MarkFailed(_ context.Context, id int64, delay time.Duration, e string) (domain.Status, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != domain.StatusRunning {
		return "", false, nil
	}
	j.LastError = e
	if j.Tries <= j.MaxRetries {
		j.Status, j.WorkerID, j.AvailableAt = domain.StatusQueued, "", m.now.Add(delay)
	} else {
		j.Status = domain.StatusFailed
	}
	return j.Status, true, nil
}

func (m *memRepo) MarkBuried(_ context.Context, id int64, e string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != domain.StatusRunning {
		return false, nil
	}
	j.Status, j.LastError = domain.StatusFailed, e
	return true, nil
}

func (m *memRepo) Reset(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != domain.StatusFailed {
		return false, nil
	}
	j.Status, j.Tries, j.AvailableAt = domain.StatusQueued, 0, m.now
	return true, nil
}

func (m *memRepo) ReapRunning(context.Context, time.Duration, string) (int, error) { return 0, nil }

func (m *memRepo) Get(_ context.Context, id int64) (domain.Job, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, false, nil
	}
	return *j, true, nil
}

func newSvc(m *memRepo) *Service {
	b := repokit.BindFunc[domain.StorageRepo](func(repokit.Queryer) domain.StorageRepo { return m })
	return New(fakeDB{}, b, Config{DefaultPriority: 5, DefaultMaxRetries: 3}, nil)
}

var importOnly = domain.Payload{Import: &domain.ImportSpec{Script: "gridintake-import"}}

func ptr[T any](v T) *T { return &v }

func TestEnqueue_DefaultsAndValidation(t *testing.T) {
	m := newMem()
	s := newSvc(m)
	ctx := context.Background()

	id, err := s.Enqueue(ctx, importOnly, domain.EnqueueOptions{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	j, _ := s.Get(ctx, id)
	if j.Priority != 5 || j.MaxRetries != 3 || j.Status != domain.StatusQueued {
		t.Fatalf("job = %+v", j)
	}

	if _, err := s.Enqueue(ctx, domain.Payload{}, domain.EnqueueOptions{}); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("empty payload: %v", err)
	}
	if _, err := s.Enqueue(ctx, importOnly, domain.EnqueueOptions{MaxRetries: ptr(-1)}); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("negative retries: %v", err)
	}
}

func TestLease_PriorityOrder(t *testing.T) {
	m := newMem()
	s := newSvc(m)
	ctx := context.Background()
	for _, p := range []int{5, 1, 3} {
		if _, err := s.Enqueue(ctx, importOnly, domain.EnqueueOptions{Priority: ptr(p)}); err != nil {
			t.Fatal(err)
		}
	}
	var got []int
	for {
		j, ok, err := s.Lease(ctx, "w1")
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		got = append(got, j.Priority)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 5 {
		t.Fatalf("order = %v", got)
	}
}

func TestFail_RetryThenExhaust(t *testing.T) {
	m := newMem()
	s := newSvc(m)
	ctx := context.Background()
	id, _ := s.Enqueue(ctx, importOnly, domain.EnqueueOptions{MaxRetries: ptr(2)})

	want := []domain.Status{domain.StatusQueued, domain.StatusQueued, domain.StatusFailed}
	for i, w := range want {
		j, ok, err := s.Lease(ctx, "w1")
		if err != nil || !ok || j.ID != id || j.Tries != i+1 {
			t.Fatalf("lease %d: job=%+v ok=%v err=%v", i, j, ok, err)
		}
		st, err := s.Fail(ctx, id, 0, "boom")
		if err != nil || st != w {
			t.Fatalf("fail %d: %s, %v", i, st, err)
		}
	}
	if _, ok, _ := s.Lease(ctx, "w1"); ok {
		t.Fatal("failed job must never be leased again")
	}
	j, _ := s.Get(ctx, id)
	if j.LastError != "boom" || j.Tries != 3 {
		t.Fatalf("final job = %+v", j)
	}
}

func TestFail_DelayHoldsJob(t *testing.T) {
	m := newMem()
	s := newSvc(m)
	ctx := context.Background()
	id, _ := s.Enqueue(ctx, importOnly, domain.EnqueueOptions{})
	_, _, _ = s.Lease(ctx, "w1")
	if _, err := s.Fail(ctx, id, time.Minute, "later"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Lease(ctx, "w1"); ok {
		t.Fatal("job must wait for available_at")
	}
	m.now = m.now.Add(time.Minute)
	if _, ok, _ := s.Lease(ctx, "w1"); !ok {
		t.Fatal("job should be eligible after the delay")
	}
}

func TestComplete_IdempotentAndConflicts(t *testing.T) {
	m := newMem()
	s := newSvc(m)
	ctx := context.Background()
	id, _ := s.Enqueue(ctx, importOnly, domain.EnqueueOptions{})

	if err := s.Complete(ctx, id); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("complete queued: %v", err)
	}
	_, _, _ = s.Lease(ctx, "w1")
	if err := s.Complete(ctx, id); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := s.Complete(ctx, id); err != nil {
		t.Fatalf("second complete should be a no-op: %v", err)
	}
	if err := s.Complete(ctx, 999); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("complete missing: %v", err)
	}
	if _, err := s.Fail(ctx, id, 0, "late"); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("fail done job: %v", err)
	}
}

func TestBuryAndRequeue(t *testing.T) {
	m := newMem()
	s := newSvc(m)
	ctx := context.Background()
	id, _ := s.Enqueue(ctx, importOnly, domain.EnqueueOptions{})
	_, _, _ = s.Lease(ctx, "w1")

	if err := s.Requeue(ctx, id); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("requeue running: %v", err)
	}
	if err := s.Bury(ctx, id, "no catalog entry"); err != nil {
		t.Fatalf("Bury: %v", err)
	}
	j, _ := s.Get(ctx, id)
	if j.Status != domain.StatusFailed || j.Tries != 1 || j.LastError != "no catalog entry" {
		t.Fatalf("buried = %+v", j)
	}
	if err := s.Requeue(ctx, id); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	j, _ = s.Get(ctx, id)
	if j.Status != domain.StatusQueued || j.Tries != 0 {
		t.Fatalf("requeued = %+v", j)
	}
	if err := s.Requeue(ctx, 404); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("requeue missing: %v", err)
	}
}

func TestLease_Errors(t *testing.T) {
	m := newMem()
	s := newSvc(m)
	if _, _, err := s.Lease(context.Background(), ""); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("empty worker: %v", err)
	}
	m.claimErr = errors.New("dial tcp: connection refused")
	if _, _, err := s.Lease(context.Background(), "w1"); !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("transient claim error: %v", err)
	}
}

func TestReapExpired_RejectsZero(t *testing.T) {
	s := newSvc(newMem())
	if _, err := s.ReapExpired(context.Background(), 0); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("err = %v", err)
	}
}

func TestFailAndBury_StoreValidUTF8AtTheLimit(t *testing.T) {
	m := newMem()
	s := newSvc(m)
	ctx := context.Background()
	msg := strings.Repeat("a", maxErrText-1) + "ção de importação"

	id, _ := s.Enqueue(ctx, importOnly, domain.EnqueueOptions{MaxRetries: ptr(1)})
	_, _, _ = s.Lease(ctx, "w1")
	if _, err := s.Fail(ctx, id, 0, msg); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	j, _ := s.Get(ctx, id)
	if !utf8.ValidString(j.LastError) || len(j.LastError) != maxErrText-1 {
		t.Fatalf("fail text len=%d valid=%v", len(j.LastError), utf8.ValidString(j.LastError))
	}

	_, _, _ = s.Lease(ctx, "w1")
	if err := s.Bury(ctx, id, msg); err != nil {
		t.Fatalf("Bury: %v", err)
	}
	j, _ = s.Get(ctx, id)
	if j.Status != domain.StatusFailed || !utf8.ValidString(j.LastError) || len(j.LastError) > maxErrText {
		t.Fatalf("buried = status %s len %d", j.Status, len(j.LastError))
	}
}
