// Package service implements the import run status tracker
package service

import (
	"context"
	"strings"

	"gridintake/internal/modkit/repokit"
	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/logger"
	"gridintake/internal/platform/metrics"
	pstrings "gridintake/internal/platform/strings"
	"gridintake/internal/services/runstatus/domain"
)

// maxErrText bounds the error text persisted per run
const maxErrText = 4000

// Service implements domain.TrackerPort
type Service struct {
	DB      repokit.TxRunner
	Binder  repokit.Binder[domain.StorageRepo]
	Metrics *metrics.Metrics
}

// New constructs the tracker
func New(db repokit.TxRunner, binder repokit.Binder[domain.StorageRepo], m *metrics.Metrics) *Service {
	if db == nil {
		panic("runstatus.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("runstatus.Service requires a non nil Repo binder")
	}
	return &Service{DB: db, Binder: binder, Metrics: m}
}

// Start records the run as running and returns its id
func (s *Service) Start(ctx context.Context, k domain.RunKey) (string, error) {
	if strings.TrimSpace(k.SourceID) == "" || strings.TrimSpace(k.Category) == "" || k.Year <= 0 {
		return "", perr.InvalidArgf("run key requires source, category and year: %s", k)
	}
	id := k.ID()
	if err := s.Binder.Bind(s.DB).UpsertRunning(ctx, id, k); err != nil {
		return "", err
	}
	logger.C(logger.WithRun(ctx, id)).Info().Str("key", k.String()).Msg("run started")
	return id, nil
}

// Finish records a terminal outcome; the run must be running
func (s *Service) Finish(ctx context.Context, runID string, fin domain.Finish) error {
	if !fin.Status.Terminal() {
		return perr.InvalidArgf("finish status %q is not terminal", fin.Status)
	}
	fin.Err = pstrings.Clip(fin.Err, maxErrText)

	return s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.Binder.Bind(q)
		ok, err := r.FinishRunning(ctx, runID, fin)
		if err != nil {
			return err
		}
		if !ok {
			cur, found, err := r.Get(ctx, runID)
			if err != nil {
				return err
			}
			if !found {
				return perr.NotFoundf("run %s not found", runID)
			}
			return perr.Conflictf("run %s is %s, not running", runID, cur.Status)
		}

		s.Metrics.RunFinished(string(fin.Status))
		logger.C(logger.WithRun(ctx, runID)).Info().
			Str("status", string(fin.Status)).
			Int64("rows", fin.Rows).
			Str("observations", fin.Observations).
			Msg("run finished")
		return nil
	})
}

// Get returns the run and whether it exists
func (s *Service) Get(ctx context.Context, runID string) (domain.Run, bool, error) {
	return s.Binder.Bind(s.DB).Get(ctx, runID)
}
