// Package service implements the durable priority work queue
package service

import (
	"context"
	"encoding/json"
	"time"

	"gridintake/internal/modkit/repokit"
	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/logger"
	"gridintake/internal/platform/metrics"
	pstrings "gridintake/internal/platform/strings"
	"gridintake/internal/services/queue/domain"
)

// maxErrText bounds the error text persisted on a job
const maxErrText = 4000

// Config holds queue defaults
type Config struct {
	DefaultPriority   int // lower is more urgent
	DefaultMaxRetries int // retries after the first attempt
}

// Service implements domain.QueuePort
type Service struct {
	DB      repokit.TxRunner
	Binder  repokit.Binder[domain.StorageRepo]
	Cfg     Config
	Metrics *metrics.Metrics
}

// New constructs the queue service
func New(db repokit.TxRunner, binder repokit.Binder[domain.StorageRepo], cfg Config, m *metrics.Metrics) *Service {
	if db == nil {
		panic("queue.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("queue.Service requires a non nil Repo binder")
	}
	if cfg.DefaultMaxRetries < 0 {
		cfg.DefaultMaxRetries = 0
	}
	return &Service{DB: db, Binder: binder, Cfg: cfg, Metrics: m}
}

// Enqueue validates p and inserts a queued job
func (s *Service) Enqueue(ctx context.Context, p domain.Payload, opt domain.EnqueueOptions) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	prio := s.Cfg.DefaultPriority
	if opt.Priority != nil {
		prio = *opt.Priority
	}
	retries := s.Cfg.DefaultMaxRetries
	if opt.MaxRetries != nil {
		if *opt.MaxRetries < 0 {
			return 0, perr.WithField(perr.Validationf("max_retries must be at least 0"), "max_retries")
		}
		retries = *opt.MaxRetries
	}
	var at *time.Time
	if !opt.AvailableAt.IsZero() {
		t := opt.AvailableAt.UTC()
		at = &t
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeJSON, "encode payload")
	}
	id, err := s.Binder.Bind(s.DB).Insert(ctx, raw, prio, retries, at)
	if err != nil {
		return 0, err
	}
	logger.C(ctx).Info().
		Int64("job_id", id).
		Str("kind", p.Kind()).
		Int("priority", prio).
		Msg("job enqueued")
	return id, nil
}

// Lease claims the next eligible job for workerID
func (s *Service) Lease(ctx context.Context, workerID string) (domain.Job, bool, error) {
	if workerID == "" {
		return domain.Job{}, false, perr.InvalidArgf("worker id required")
	}
	job, ok, err := s.Binder.Bind(s.DB).Claim(ctx, workerID)
	if err != nil {
		s.Metrics.LeaseFailed()
		if perr.Retryable(err) {
			return domain.Job{}, false, perr.Wrap(err, perr.ErrorCodeUnavailable, "lease")
		}
		return domain.Job{}, false, err
	}
	if ok {
		s.Metrics.JobLeased(job.Payload.Kind())
	}
	return job, ok, nil
}

// Complete marks a running job done; terminal jobs are left untouched
func (s *Service) Complete(ctx context.Context, id int64) error {
	return s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.Binder.Bind(q)
		ok, err := r.MarkDone(ctx, id)
		if err != nil || ok {
			return err
		}
		return notRunning(ctx, r, id, true)
	})
}

// Fail records a failed attempt and requeues after delay while retries remain
func (s *Service) Fail(ctx context.Context, id int64, delay time.Duration, errText string) (domain.Status, error) {
	if delay < 0 {
		delay = 0
	}
	var out domain.Status
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.Binder.Bind(q)
		st, ok, err := r.MarkFailed(ctx, id, delay, clip(errText))
		if err != nil {
			return err
		}
		if !ok {
			return notRunning(ctx, r, id, false)
		}
		out = st
		return nil
	})
	if err != nil {
		return "", err
	}
	ev := logger.C(ctx).Warn().Int64("job_id", id).Str("status", string(out))
	if out == domain.StatusQueued {
		ev = ev.Dur("retry_in", delay)
	}
	ev.Str("error", errText).Msg("job failed")
	return out, nil
}

// Bury fails a running job without further retries
func (s *Service) Bury(ctx context.Context, id int64, errText string) error {
	return s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.Binder.Bind(q)
		ok, err := r.MarkBuried(ctx, id, clip(errText))
		if err != nil {
			return err
		}
		if !ok {
			return notRunning(ctx, r, id, false)
		}
		logger.C(ctx).Warn().Int64("job_id", id).Str("error", errText).Msg("job failed permanently")
		return nil
	})
}

// Get loads a job
func (s *Service) Get(ctx context.Context, id int64) (domain.Job, error) {
	job, ok, err := s.Binder.Bind(s.DB).Get(ctx, id)
	if err != nil {
		return domain.Job{}, err
	}
	if !ok {
		return domain.Job{}, perr.NotFoundf("job %d not found", id)
	}
	return job, nil
}

// Requeue resets a failed job so workers pick it up again
func (s *Service) Requeue(ctx context.Context, id int64) error {
	return s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.Binder.Bind(q)
		ok, err := r.Reset(ctx, id)
		if err != nil {
			return err
		}
		if ok {
			logger.C(ctx).Info().Int64("job_id", id).Msg("job requeued")
			return nil
		}
		job, found, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return perr.NotFoundf("job %d not found", id)
		}
		return perr.Conflictf("job %d is %s, only failed jobs can be requeued", id, job.Status)
	})
}

// ReapExpired reclaims jobs whose worker stopped reporting for longer than olderThan
func (s *Service) ReapExpired(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, perr.InvalidArgf("lease timeout must be positive")
	}
	n, err := s.Binder.Bind(s.DB).ReapRunning(ctx, olderThan, "lease expired after "+olderThan.String())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Metrics.Reaped(n)
		logger.C(ctx).Warn().Int("jobs", n).Dur("older_than", olderThan).Msg("reaped expired leases")
	}
	return n, nil
}

// notRunning explains why a transition out of running matched no row
func notRunning(ctx context.Context, r domain.StorageRepo, id int64, terminalOK bool) error {
	job, found, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return perr.NotFoundf("job %d not found", id)
	}
	if terminalOK && job.Status.Terminal() {
		return nil
	}
	return perr.Conflictf("job %d is %s, not running", id, job.Status)
}

func clip(s string) string { return pstrings.Clip(s, maxErrText) }
