// Package repo provides the import_status repository
package repo

import (
	"context"
	"errors"

	"gridintake/internal/modkit/repokit"
	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/store"
	pstrings "gridintake/internal/platform/strings"
	"gridintake/internal/services/runstatus/domain"
)

type (
	// PG is a Postgres run status repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres run status repository
func NewPG() repokit.Binder[domain.StorageRepo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of StorageRepo
func (PG) Bind(q repokit.Queryer) domain.StorageRepo { return &queries{q: q} }

// UpsertRunning resets a run to running and restamps started_at
func (r *queries) UpsertRunning(ctx context.Context, runID string, k domain.RunKey) error {
	const sql = `
		INSERT INTO import_status (run_id, source_id, year, category, status, started_at, updated_at)
		VALUES ($1, $2, $3, $4, 'running', NOW(), NOW())
		ON CONFLICT (run_id) DO UPDATE
		SET status         = 'running',
		    rows_processed = 0,
		    error          = NULL,
		    observations   = NULL,
		    started_at     = NOW(),
		    finished_at    = NULL,
		    updated_at     = NOW()
	`
	_, err := r.q.Exec(ctx, sql, runID, k.SourceID, k.Year, k.Category)
	return perr.FromPostgres(err, "upsert running run")
}

// FinishRunning moves a running row to its terminal status
func (r *queries) FinishRunning(ctx context.Context, runID string, fin domain.Finish) (bool, error) {
	const sql = `
		UPDATE import_status
		SET status         = $2,
		    rows_processed = $3,
		    error          = $4,
		    observations   = $5,
		    finished_at    = NOW(),
		    updated_at     = NOW()
		WHERE run_id = $1 AND status = 'running'
	`
	err := store.ExecOne(ctx, r.q, sql, runID, string(fin.Status), fin.Rows,
		pstrings.SQLNull(fin.Err), pstrings.SQLNull(fin.Observations))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, perr.ErrNotFound):
		return false, nil
	default:
		return false, perr.FromPostgres(err, "finish run")
	}
}

// Get loads one run
func (r *queries) Get(ctx context.Context, runID string) (domain.Run, bool, error) {
	const sql = `
		SELECT run_id, source_id, year, category, status, rows_processed,
		       COALESCE(error, ''), COALESCE(observations, ''),
		       started_at, finished_at, updated_at
		FROM import_status
		WHERE run_id = $1
	`
	run, err := store.One(ctx, r.q, scanRun, sql, runID)
	if errors.Is(err, perr.ErrNotFound) {
		return domain.Run{}, false, nil
	}
	if err != nil {
		return domain.Run{}, false, perr.FromPostgres(err, "get run")
	}
	return run, true, nil
}

func scanRun(row store.Row) (domain.Run, error) {
	var (
		run    domain.Run
		status string
	)
	err := row.Scan(&run.RunID, &run.SourceID, &run.Year, &run.Category, &status,
		&run.RowsProcessed, &run.Error, &run.Observations,
		&run.StartedAt, &run.FinishedAt, &run.UpdatedAt)
	run.Status = domain.Status(status)
	return run, err
}
