// Package schema carries the DDL every gridintake binary expects
package schema

import (
	"context"
	_ "embed"
	"strings"

	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/logger"
	"gridintake/internal/platform/store"
)

//go:embed schema.sql
var ddl string

// SQL returns the embedded DDL
func SQL() string { return ddl }

// Apply executes the DDL; every statement is IF NOT EXISTS so repeated runs are no-ops
func Apply(ctx context.Context, q store.RowQuerier) error {
	if _, err := q.Exec(ctx, ddl); err != nil {
		return perr.FromPostgres(err, "apply schema")
	}
	logger.C(ctx).Info().Msg("schema applied")
	return nil
}

// Tables lists every table the DDL creates, in declaration order
var Tables = []string{
	"import_queue",
	"import_status",
	"lead_bruto",
	"lead_energia_mensal",
	"lead_demanda_mensal",
	"lead_qualidade_mensal",
	"dataset_url_catalog",
	"download_log",
}

// Check fails with Unavailable while any of Tables is missing so readiness
// stays red until someone runs the migration
func Check(ctx context.Context, q store.RowQuerier) error {
	const sql = `SELECT coalesce(array_agg(t ORDER BY t), '{}') FROM unnest($1::text[]) AS t WHERE to_regclass(t) IS NULL`
	missing, err := store.Scalar[[]string](ctx, q, sql, Tables)
	if err != nil {
		return perr.FromPostgres(err, "check schema")
	}
	if len(missing) > 0 {
		return perr.Unavailablef("schema not applied, missing %s", strings.Join(missing, ", "))
	}
	return nil
}
