// Package repo provides the import_queue repository
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gridintake/internal/modkit/repokit"
	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/store"
	pstrings "gridintake/internal/platform/strings"
	"gridintake/internal/services/queue/domain"
)

type (
	// PG is a Postgres queue repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres queue repository
func NewPG() repokit.Binder[domain.StorageRepo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of StorageRepo
func (PG) Bind(q repokit.Queryer) domain.StorageRepo { return &queries{q: q} }

const jobColumns = `
	q.id, q.payload, q.priority, q.status, q.tries, q.max_retries,
	COALESCE(q.worker_id, ''), COALESCE(q.last_error, ''),
	q.created_at, q.started_at, q.finished_at, q.available_at
`

// Insert adds a queued job; a nil availableAt means now
func (r *queries) Insert(ctx context.Context, payload []byte, priority, maxRetries int, availableAt *time.Time) (int64, error) {
	const sql = `
		INSERT INTO import_queue (payload, priority, max_retries, status, available_at)
		VALUES ($1::jsonb, $2, $3, 'queued', COALESCE($4, NOW()))
		RETURNING id
	`
	id, err := store.Scalar[int64](ctx, r.q, sql, string(payload), priority, maxRetries, availableAt)
	return id, perr.FromPostgres(err, "insert job")
}

// Claim leases the most urgent eligible job, skipping rows other leasers hold
func (r *queries) Claim(ctx context.Context, workerID string) (domain.Job, bool, error) {
	const sql = `
		WITH next AS (
			SELECT id
			FROM import_queue
			WHERE status = 'queued'
			  AND available_at <= NOW()
			ORDER BY priority ASC, available_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE import_queue q
		SET status     = 'running',
		    worker_id  = $1,
		    started_at = NOW(),
		    tries      = q.tries + 1
		FROM next
		WHERE q.id = next.id
		RETURNING ` + jobColumns
	job, err := store.One(ctx, r.q, scanJob, sql, workerID)
	if errors.Is(err, perr.ErrNotFound) {
		return domain.Job{}, false, nil
	}
	if err != nil {
		return domain.Job{}, false, perr.FromPostgres(err, "claim job")
	}
	return job, true, nil
}

// MarkDone completes a running job
func (r *queries) MarkDone(ctx context.Context, id int64) (bool, error) {
	const sql = `
		UPDATE import_queue
		SET status = 'done', finished_at = NOW(), last_error = NULL
		WHERE id = $1 AND status = 'running'
	`
	return affected(store.ExecOne(ctx, r.q, sql, id), "complete job")
}

// MarkFailed requeues a running job while tries <= max_retries, otherwise fails it
func (r *queries) MarkFailed(ctx context.Context, id int64, delay time.Duration, errText string) (domain.Status, bool, error) {
	const sql = `
		UPDATE import_queue
		SET status       = CASE WHEN tries <= max_retries THEN 'queued' ELSE 'failed' END,
		    available_at = CASE WHEN tries <= max_retries
		                        THEN NOW() + ($2::bigint * INTERVAL '1 millisecond')
		                        ELSE available_at END,
		    worker_id    = CASE WHEN tries <= max_retries THEN NULL ELSE worker_id END,
		    started_at   = CASE WHEN tries <= max_retries THEN NULL ELSE started_at END,
		    finished_at  = CASE WHEN tries <= max_retries THEN NULL ELSE NOW() END,
		    last_error   = $3
		WHERE id = $1 AND status = 'running'
		RETURNING status
	`
	st, err := store.Scalar[string](ctx, r.q, sql, id, delay.Milliseconds(), pstrings.SQLNull(errText))
	if store.IsNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, perr.FromPostgres(err, "fail job")
	}
	return domain.Status(st), true, nil
}

// MarkBuried fails a running job permanently
func (r *queries) MarkBuried(ctx context.Context, id int64, errText string) (bool, error) {
	const sql = `
		UPDATE import_queue
		SET status = 'failed', finished_at = NOW(), last_error = $2
		WHERE id = $1 AND status = 'running'
	`
	return affected(store.ExecOne(ctx, r.q, sql, id, pstrings.SQLNull(errText)), "bury job")
}

// Reset returns a failed job to the queue with tries cleared
func (r *queries) Reset(ctx context.Context, id int64) (bool, error) {
	const sql = `
		UPDATE import_queue
		SET status       = 'queued',
		    tries        = 0,
		    worker_id    = NULL,
		    started_at   = NULL,
		    finished_at  = NULL,
		    available_at = NOW()
		WHERE id = $1 AND status = 'failed'
	`
	return affected(store.ExecOne(ctx, r.q, sql, id), "requeue job")
}

// ReapRunning counts jobs running past olderThan as failed attempts
func (r *queries) ReapRunning(ctx context.Context, olderThan time.Duration, errText string) (int, error) {
	const sql = `
		WITH stale AS (
			SELECT id
			FROM import_queue
			WHERE status = 'running'
			  AND started_at < NOW() - ($1::bigint * INTERVAL '1 millisecond')
			FOR UPDATE SKIP LOCKED
		)
		UPDATE import_queue q
		SET status       = CASE WHEN q.tries <= q.max_retries THEN 'queued' ELSE 'failed' END,
		    available_at = NOW(),
		    worker_id    = CASE WHEN q.tries <= q.max_retries THEN NULL ELSE q.worker_id END,
		    started_at   = CASE WHEN q.tries <= q.max_retries THEN NULL ELSE q.started_at END,
		    finished_at  = CASE WHEN q.tries <= q.max_retries THEN NULL ELSE NOW() END,
		    last_error   = $2
		FROM stale
		WHERE q.id = stale.id
	`
	tag, err := r.q.Exec(ctx, sql, olderThan.Milliseconds(), errText)
	if err != nil {
		return 0, perr.FromPostgres(err, "reap running jobs")
	}
	return int(tag.RowsAffected()), nil
}

// Get loads one job
func (r *queries) Get(ctx context.Context, id int64) (domain.Job, bool, error) {
	sql := `SELECT ` + jobColumns + ` FROM import_queue q WHERE q.id = $1`
	job, err := store.One(ctx, r.q, scanJob, sql, id)
	if errors.Is(err, perr.ErrNotFound) {
		return domain.Job{}, false, nil
	}
	if err != nil {
		return domain.Job{}, false, perr.FromPostgres(err, "get job")
	}
	return job, true, nil
}

func scanJob(row store.Row) (domain.Job, error) {
	var (
		j       domain.Job
		payload []byte
		status  string
	)
	if err := row.Scan(&j.ID, &payload, &j.Priority, &status, &j.Tries, &j.MaxRetries,
		&j.WorkerID, &j.LastError, &j.CreatedAt, &j.StartedAt, &j.FinishedAt, &j.AvailableAt); err != nil {
		return j, err
	}
	j.Status = domain.Status(status)
	// rows were validated at enqueue; a broken payload surfaces when the worker runs it
	if err := json.Unmarshal(payload, &j.Payload); err != nil {
		return j, perr.Wrapf(err, perr.ErrorCodeJSON, "job %d payload", j.ID)
	}
	return j, nil
}

func affected(err error, op string) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, perr.ErrNotFound):
		return false, nil
	default:
		return false, perr.FromPostgres(err, op)
	}
}
