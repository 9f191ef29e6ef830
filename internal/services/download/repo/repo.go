// Package repo provides the dataset catalog and download log repository
package repo

import (
	"context"
	"errors"
	"time"

	"gridintake/internal/modkit/repokit"
	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/store"
	pstrings "gridintake/internal/platform/strings"
	"gridintake/internal/services/download/domain"
)

type (
	// PG is a Postgres download repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres download repository
func NewPG() repokit.Binder[domain.StorageRepo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of StorageRepo
func (PG) Bind(q repokit.Queryer) domain.StorageRepo { return &queries{q: q} }

// PickCatalog matches on the distributor and year columns, falling back to the title
func (r *queries) PickCatalog(ctx context.Context, distributor string, year int) (domain.CatalogEntry, bool, error) {
	const sql = `
		SELECT id, COALESCE(title, ''), url, COALESCE(url_hash, ''), fetched
		FROM dataset_url_catalog
		WHERE (UPPER(distributor) = UPPER($1) OR title ILIKE '%' || $1 || '%')
		  AND (year = $2 OR title ILIKE '%' || $2::text || '%')
		ORDER BY fetched ASC, COALESCE(modified, created) DESC NULLS LAST, id DESC
		LIMIT 1
	`
	e, err := store.One(ctx, r.q, func(row store.Row) (domain.CatalogEntry, error) {
		var e domain.CatalogEntry
		err := row.Scan(&e.ID, &e.Title, &e.URL, &e.URLHash, &e.Fetched)
		return e, err
	}, sql, distributor, year)
	if errors.Is(err, perr.ErrNotFound) {
		return domain.CatalogEntry{}, false, nil
	}
	if err != nil {
		return domain.CatalogEntry{}, false, perr.FromPostgres(err, "pick catalog entry")
	}
	return e, true, nil
}

// MarkFetched flags an entry as downloaded and appends a note
func (r *queries) MarkFetched(ctx context.Context, id int64, urlHash, note string) error {
	const sql = `
		UPDATE dataset_url_catalog
		SET fetched      = TRUE,
		    url_hash     = COALESCE(url_hash, $2),
		    last_checked = NOW(),
		    notes        = CONCAT_WS(E'\n', NULLIF(notes, ''), $3::text)
		WHERE id = $1
	`
	if err := store.ExecOne(ctx, r.q, sql, id, pstrings.SQLNull(urlHash), pstrings.SQLNull(note)); err != nil {
		if errors.Is(err, perr.ErrNotFound) {
			return perr.NotFoundf("catalog entry %d not found", id)
		}
		return perr.FromPostgres(err, "mark catalog fetched")
	}
	return nil
}

// UpsertLog keeps only the latest attempt per (distributor, year)
func (r *queries) UpsertLog(ctx context.Context, e domain.LogEntry) error {
	const sql = `
		INSERT INTO download_log (distributor, year, status, elapsed_s, error, path, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (distributor, year) DO UPDATE
		SET status     = excluded.status,
		    elapsed_s  = excluded.elapsed_s,
		    error      = excluded.error,
		    path       = excluded.path,
		    updated_at = NOW()
	`
	var elapsed any
	if e.Elapsed > 0 {
		elapsed = e.Elapsed.Seconds()
	}
	_, err := r.q.Exec(ctx, sql, e.Distributor, e.Year, string(e.Status), elapsed,
		pstrings.SQLNull(e.Error), pstrings.SQLNull(e.Path))
	return perr.FromPostgres(err, "upsert download log")
}

// GetLog loads the log row for a key
func (r *queries) GetLog(ctx context.Context, distributor string, year int) (domain.LogEntry, bool, error) {
	const sql = `
		SELECT distributor, year, status, COALESCE(elapsed_s, 0), COALESCE(error, ''), COALESCE(path, ''), updated_at
		FROM download_log
		WHERE distributor = $1 AND year = $2
	`
	e, err := store.One(ctx, r.q, func(row store.Row) (domain.LogEntry, error) {
		var (
			e       domain.LogEntry
			status  string
			elapsed float64
		)
		err := row.Scan(&e.Distributor, &e.Year, &status, &elapsed, &e.Error, &e.Path, &e.UpdatedAt)
		e.Status = domain.LogStatus(status)
		e.Elapsed = time.Duration(elapsed * float64(time.Second))
		return e, err
	}, sql, distributor, year)
	if errors.Is(err, perr.ErrNotFound) {
		return domain.LogEntry{}, false, nil
	}
	if err != nil {
		return domain.LogEntry{}, false, perr.FromPostgres(err, "get download log")
	}
	return e, true, nil
}
