package service

import (
	"context"
	"sync"
	"time"

	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/sched"
	ddomain "gridintake/internal/services/download/domain"
	qdomain "gridintake/internal/services/queue/domain"
)

type failCall struct {
	id    int64
	delay time.Duration
	text  string
}

// memQueue hands out pending jobs in order and records the reports
type memQueue struct {
	mu        sync.Mutex
	pending   []qdomain.Job
	leaseErr  error
	completed []int64
	failed    []failCall
	buried    []failCall
	reaps     int
}

func (q *memQueue) Enqueue(context.Context, qdomain.Payload, qdomain.EnqueueOptions) (int64, error) {
	return 0, perr.Internalf("not used")
}

func (q *memQueue) Lease(_ context.Context, workerID string) (qdomain.Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.leaseErr != nil {
		return qdomain.Job{}, false, q.leaseErr
	}
	if len(q.pending) == 0 {
		return qdomain.Job{}, false, nil
	}
	j := q.pending[0]
	q.pending = q.pending[1:]
	j.Status, j.WorkerID = qdomain.StatusRunning, workerID
	j.Tries++
	return j, true, nil
}

func (q *memQueue) Complete(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, id)
	return nil
}

func (q *memQueue) Fail(_ context.Context, id int64, delay time.Duration, text string) (qdomain.Status, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, failCall{id, delay, text})
	return qdomain.StatusQueued, nil
}

func (q *memQueue) Bury(_ context.Context, id int64, text string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buried = append(q.buried, failCall{id: id, text: text})
	return nil
}

func (q *memQueue) Get(context.Context, int64) (qdomain.Job, error) {
	return qdomain.Job{}, perr.ErrNotFound
}

func (q *memQueue) Requeue(context.Context, int64) error { return nil }

func (q *memQueue) ReapExpired(context.Context, time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reaps++
	return 0, nil
}

type fakeFetcher struct {
	path string
	err  error
	got  []ddomain.Request
}

func (f *fakeFetcher) Fetch(_ context.Context, r ddomain.Request) (string, error) {
	f.got = append(f.got, r)
	return f.path, f.err
}

type lowerCall struct {
	pid int
	p   sched.Priority
}

type recLowerer struct {
	mu    sync.Mutex
	calls []lowerCall
}

func (l *recLowerer) Lower(pid int, p sched.Priority) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, lowerCall{pid, p})
	return nil
}
