package domain

import (
	"context"
	"time"
)

// QueuePort is the public port of the work queue
type QueuePort interface {
	Enqueue(ctx context.Context, p Payload, opt EnqueueOptions) (int64, error)

	// Lease claims the most urgent eligible job; ok=false when none is eligible
	Lease(ctx context.Context, workerID string) (job Job, ok bool, err error)

	// Complete is a no-op on terminal jobs
	Complete(ctx context.Context, id int64) error

	// Fail requeues after delay while retries remain, otherwise fails the job; returns the new status
	Fail(ctx context.Context, id int64, delay time.Duration, errText string) (Status, error)

	// Bury fails a running job regardless of remaining retries
	Bury(ctx context.Context, id int64, errText string) error

	Get(ctx context.Context, id int64) (Job, error)

	// Requeue puts a failed job back with its tries reset
	Requeue(ctx context.Context, id int64) error

	// ReapExpired treats jobs running longer than olderThan as failed attempts
	ReapExpired(ctx context.Context, olderThan time.Duration) (int, error)
}

// StorageRepo is the import_queue storage contract
type StorageRepo interface {
	Insert(ctx context.Context, payload []byte, priority, maxRetries int, availableAt *time.Time) (int64, error)
	Claim(ctx context.Context, workerID string) (Job, bool, error)
	MarkDone(ctx context.Context, id int64) (bool, error)
	MarkFailed(ctx context.Context, id int64, delay time.Duration, errText string) (Status, bool, error)
	MarkBuried(ctx context.Context, id int64, errText string) (bool, error)
	Reset(ctx context.Context, id int64) (bool, error)
	ReapRunning(ctx context.Context, olderThan time.Duration, errText string) (int, error)
	Get(ctx context.Context, id int64) (Job, bool, error)
}
