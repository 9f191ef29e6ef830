package store

import (
	"context"
	"database/sql"
	"errors"

	perr "gridintake/internal/platform/errors"

	"github.com/jackc/pgx/v5"
)

// IsNoRows reports whether err is an empty result from either driver surface
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// ExecOne runs a single-row write such as a job or run transition.
// Zero rows is perr.ErrNotFound, which lets a repo tell a missing or already
// moved row apart from a driver failure; more than one row is a Conflict.
func ExecOne(ctx context.Context, q RowQuerier, stmt string, args ...any) error {
	tag, err := q.Exec(ctx, stmt, args...)
	if err != nil {
		return err
	}
	n := tag.RowsAffected()
	if n == 0 {
		return perr.ErrNotFound
	}
	if n > 1 {
		return perr.Conflictf("single-row write touched %d rows", n)
	}
	return nil
}

// Scalar scans the first column of the first row into T
func Scalar[T any](ctx context.Context, q RowQuerier, stmt string, args ...any) (T, error) {
	var v T
	err := q.QueryRow(ctx, stmt, args...).Scan(&v)
	if err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// One maps exactly one row through scan; no row is perr.ErrNotFound
func One[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), stmt string, args ...any) (T, error) {
	var zero T
	rows, err := q.Query(ctx, stmt, args...)
	if err != nil {
		return zero, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return zero, err
		}
		return zero, perr.ErrNotFound
	}
	v, err := scan(rows)
	if err != nil {
		return zero, err
	}
	if rows.Next() {
		return zero, perr.Conflictf("expected one row, query returned more")
	}
	if err := rows.Err(); err != nil {
		return zero, err
	}
	return v, nil
}
