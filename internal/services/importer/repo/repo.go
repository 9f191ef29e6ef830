// Package repo provides the bulk loader: COPY into transaction scoped staging, then insert-if-absent
package repo

import (
	"context"
	"strings"

	"gridintake/internal/modkit/repokit"
	perr "gridintake/internal/platform/errors"
	pstrings "gridintake/internal/platform/strings"
	"gridintake/internal/services/importer/domain"
)

type (
	// PG is a Postgres bulk loader
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres bulk loader
func NewPG() repokit.Binder[domain.LoaderRepo] { return PG{} }

// Bind binds a Queryer; loads must run inside a transaction since staging tables drop on commit
func (PG) Bind(q repokit.Queryer) domain.LoaderRepo { return &queries{q: q} }

var headerColumns = []string{
	"uc_id", "run_id", "cod_id", "source_id", "category", "year", "status", "connected_on",
	"cnae", "voltage_group", "tariff_mode", "system_type", "situation", "class", "segment",
	"substation", "municipality_code", "district", "postal_code", "pac", "pn_con", "description",
	"latitude", "longitude",
}

// stage creates (or empties) the staging copy of table for the current transaction
func (r *queries) stage(ctx context.Context, table string) (string, error) {
	name := "stage_" + table
	if _, err := r.q.Exec(ctx, `CREATE TEMP TABLE IF NOT EXISTS `+name+` (LIKE `+table+` INCLUDING DEFAULTS) ON COMMIT DROP`); err != nil {
		return "", perr.FromPostgresf(err, "create staging for %s", table)
	}
	if _, err := r.q.Exec(ctx, `TRUNCATE `+name); err != nil {
		return "", perr.FromPostgresf(err, "truncate staging for %s", table)
	}
	return name, nil
}

// LoadHeader copies rows into staging and inserts the ones whose uc_id is new
func (r *queries) LoadHeader(ctx context.Context, rows []domain.Header) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stage, err := r.stage(ctx, domain.HeaderTable)
	if err != nil {
		return 0, err
	}
	src := make([][]any, len(rows))
	for i, h := range rows {
		src[i] = headerValues(h)
	}
	if _, err := r.q.CopyFrom(ctx, stage, headerColumns, src); err != nil {
		return 0, perr.FromPostgres(err, "copy lead_bruto")
	}

	cols := strings.Join(headerColumns, ", ")
	tag, err := r.q.Exec(ctx, `
		INSERT INTO lead_bruto (`+cols+`)
		SELECT `+cols+` FROM `+stage+`
		ON CONFLICT (uc_id) DO NOTHING
	`)
	if err != nil {
		return 0, perr.FromPostgres(err, "insert lead_bruto")
	}
	return tag.RowsAffected(), nil
}

// LoadSatellite copies rows into staging and inserts the ones whose header exists
func (r *queries) LoadSatellite(ctx context.Context, table string, rows []domain.SatelliteRow) (int64, error) {
	measures, ok := domain.MeasureColumns(table)
	if !ok {
		return 0, perr.InvalidArgf("unknown satellite table %q", table)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	stage, err := r.stage(ctx, table)
	if err != nil {
		return 0, err
	}
	columns := append([]string{"uc_id", "month", "origin"}, measures...)
	src := make([][]any, len(rows))
	for i, s := range rows {
		v := make([]any, 0, len(columns))
		v = append(v, s.UCID, int16(s.Month), s.Origin)
		for j := range measures {
			if j < len(s.Measures) {
				v = append(v, s.Measures[j].Any())
			} else {
				v = append(v, nil)
			}
		}
		src[i] = v
	}
	if _, err := r.q.CopyFrom(ctx, stage, columns, src); err != nil {
		return 0, perr.FromPostgresf(err, "copy %s", table)
	}

	sel := make([]string, len(columns))
	for i, c := range columns {
		sel[i] = "s." + c
	}
	tag, err := r.q.Exec(ctx, `
		INSERT INTO `+table+` (`+strings.Join(columns, ", ")+`)
		SELECT `+strings.Join(sel, ", ")+`
		FROM `+stage+` s
		JOIN lead_bruto b ON b.uc_id = s.uc_id
		ON CONFLICT (uc_id, month) DO NOTHING
	`)
	if err != nil {
		return 0, perr.FromPostgresf(err, "insert %s", table)
	}
	return tag.RowsAffected(), nil
}

func headerValues(h domain.Header) []any {
	var connected, cnae, mun any
	if h.ConnectedOn != nil {
		connected = *h.ConnectedOn
	}
	if h.CNAE != nil {
		cnae = *h.CNAE
	}
	if h.MunicipalityCode != nil {
		mun = *h.MunicipalityCode
	}
	status := h.Status
	if status == "" {
		status = "raw"
	}
	return []any{
		h.UCID, h.RunID, h.CodID, h.SourceID, h.Category, h.Year, status, connected,
		cnae, pstrings.SQLNull(h.VoltageGroup), pstrings.SQLNull(h.TariffMode),
		pstrings.SQLNull(h.SystemType), pstrings.SQLNull(h.Situation), pstrings.SQLNull(h.Class),
		pstrings.SQLNull(h.Segment), pstrings.SQLNull(h.Substation), mun,
		pstrings.SQLNull(h.District), pstrings.SQLNull(h.PostalCode), h.PAC.Any(),
		pstrings.SQLNull(h.PnCon), pstrings.SQLNull(h.Description),
		h.Latitude.Any(), h.Longitude.Any(),
	}
}
