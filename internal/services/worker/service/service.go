// Package service implements the queue worker: lease, download, import child, report
package service

import (
	"context"
	stderrs "errors"
	"time"

	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/logger"
	"gridintake/internal/platform/metrics"
	"gridintake/internal/platform/sched"
	ddomain "gridintake/internal/services/download/domain"
	qdomain "gridintake/internal/services/queue/domain"
	"gridintake/internal/services/worker/domain"

	"github.com/google/uuid"
)

// reportTimeout bounds queue updates issued after the job ran
const reportTimeout = 30 * time.Second

// Config holds the worker knobs
type Config struct {
	ID           string
	PollInterval time.Duration
	RetryBase    time.Duration
	RetryMax     time.Duration
	LeaseTimeout time.Duration // 0 disables the reaper
	ReapEvery    time.Duration
	ImportBin    string
	ScriptDir    string
	Priority     sched.Priority
}

// Service implements domain.WorkerPort
type Service struct {
	Queue   qdomain.QueuePort
	Fetcher ddomain.FetcherPort
	Lowerer sched.Lowerer
	Cfg     Config
	Metrics *metrics.Metrics

	now func() time.Time
}

// NewID returns a short random worker id
func NewID() string { return "worker-" + uuid.NewString()[:8] }

// New constructs the worker; fetcher may be nil when no job carries a download step
func New(q qdomain.QueuePort, fetcher ddomain.FetcherPort, lowerer sched.Lowerer, cfg Config, m *metrics.Metrics) *Service {
	if q == nil {
		panic("worker.Service requires a non nil queue")
	}
	if lowerer == nil {
		lowerer = sched.Noop{}
	}
	if cfg.ID == "" {
		cfg.ID = NewID()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ReapEvery <= 0 {
		cfg.ReapEvery = time.Minute
	}
	if cfg.ImportBin == "" {
		cfg.ImportBin = "gridintake-import"
	}
	return &Service{Queue: q, Fetcher: fetcher, Lowerer: lowerer, Cfg: cfg, Metrics: m, now: time.Now}
}

// Run leases until ctx is cancelled; a job in flight is finished and reported first
func (s *Service) Run(ctx context.Context) error {
	log := logger.Named("worker").With().Str("worker_id", s.Cfg.ID).Logger()
	log.Info().
		Dur("poll_interval", s.Cfg.PollInterval).
		Dur("lease_timeout", s.Cfg.LeaseTimeout).
		Int("niceness", s.Cfg.Priority.Niceness).
		Msg("worker started")

	var lastReap time.Time
	for ctx.Err() == nil {
		if s.Cfg.LeaseTimeout > 0 && s.now().Sub(lastReap) >= s.Cfg.ReapEvery {
			if _, err := s.Queue.ReapExpired(ctx, s.Cfg.LeaseTimeout); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("reap failed")
			}
			lastReap = s.now()
		}

		worked, err := s.Step(ctx)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("lease failed")
		}
		if worked {
			continue
		}
		t := time.NewTimer(s.Cfg.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
	log.Info().Msg("worker stopped")
	return nil
}

// Step leases one job and handles it to the end
func (s *Service) Step(ctx context.Context) (bool, error) {
	job, ok, err := s.Queue.Lease(ctx, s.Cfg.ID)
	if err != nil || !ok {
		return false, err
	}
	s.Handle(ctx, job)
	return true, nil
}

// Handle runs a leased job and reports its outcome; it returns the outcome name
func (s *Service) Handle(ctx context.Context, job qdomain.Job) string {
	ctx = logger.WithJob(context.WithoutCancel(ctx), job.ID, s.Cfg.ID)
	log := logger.C(ctx)
	kind := job.Payload.Kind()
	start := s.now()
	log.Info().Str("kind", kind).Int("try", job.Tries).Int("max_retries", job.MaxRetries).Msg("job leased")

	outcome := s.report(ctx, job, s.execute(ctx, job))
	took := s.now().Sub(start)
	s.Metrics.JobFinished(kind, outcome, took)
	log.Info().Str("outcome", outcome).Dur("took", took).Msg("job finished")
	return outcome
}

// execute runs the download step, then the import child
func (s *Service) execute(ctx context.Context, job qdomain.Job) error {
	p := job.Payload
	var dataset string
	if d := p.Download; d != nil {
		if s.Fetcher == nil {
			return perr.Internalf("download step without a downloader")
		}
		path, err := s.Fetcher.Fetch(ctx, ddomain.Request{
			Distributor: d.Distributor,
			Year:        d.Year,
			URL:         d.URL,
			TargetName:  d.TargetName,
			MaxKbps:     d.MaxRateKbps,
		})
		if err != nil {
			return perr.Wrapf(err, perr.CodeOf(err), "download %s/%d", d.Distributor, d.Year)
		}
		dataset = path
		logger.C(ctx).Info().Str("dataset", path).Msg("dataset ready")
	}
	if p.Import == nil {
		return nil
	}
	c, err := s.command(p.Import, dataset)
	if err != nil {
		return err
	}
	return s.spawn(ctx, c)
}

// report moves the job to done, back to queued, or to failed
func (s *Service) report(ctx context.Context, job qdomain.Job, runErr error) string {
	ctx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()
	log := logger.C(ctx)

	if runErr == nil {
		if err := s.Queue.Complete(ctx, job.ID); err != nil {
			log.Error().Err(err).Msg("complete failed")
		}
		return domain.OutcomeDone
	}

	text := runErr.Error()
	if permanent(runErr) {
		if err := s.Queue.Bury(ctx, job.ID, text); err != nil {
			log.Error().Err(err).Msg("bury failed")
		}
		return domain.OutcomeFailed
	}

	delay := Backoff(s.Cfg.RetryBase, s.Cfg.RetryMax, job.Tries)
	st, err := s.Queue.Fail(ctx, job.ID, delay, text)
	if err != nil {
		log.Error().Err(err).Msg("fail failed")
		return domain.OutcomeFailed
	}
	if st == qdomain.StatusQueued {
		return domain.OutcomeRetry
	}
	return domain.OutcomeFailed
}

// permanent reports failures a retry cannot fix: an import exiting with the
// permanent status or a classified error such as a missing catalog entry
func permanent(err error) bool {
	var ee *domain.ExitError
	if stderrs.As(err, &ee) {
		return ee.Code == perr.ExitPermanent
	}
	return perr.Permanent(err)
}
