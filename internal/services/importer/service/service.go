// Package service implements the import pipeline: layer detection, chunked transform and bulk load
package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"gridintake/internal/adapters/dataset"
	"gridintake/internal/modkit/repokit"
	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/logger"
	"gridintake/internal/platform/metrics"
	"gridintake/internal/platform/validate"
	"gridintake/internal/services/importer/domain"
	rsdomain "gridintake/internal/services/runstatus/domain"
)

// Config holds importer settings
type Config struct {
	ChunkSize int
	TxTimeout time.Duration // per chunk, 0 means none
}

// Service implements domain.ImporterPort
type Service struct {
	DB      repokit.TxRunner
	Binder  repokit.Binder[domain.LoaderRepo]
	Tracker rsdomain.TrackerPort
	Mapping domain.MappingFile
	Cfg     Config
	Metrics *metrics.Metrics

	open func(path string) (dataset.Container, error)
}

// New constructs the importer
func New(db repokit.TxRunner, binder repokit.Binder[domain.LoaderRepo], tracker rsdomain.TrackerPort, mapping domain.MappingFile, cfg Config, m *metrics.Metrics) *Service {
	if db == nil {
		panic("importer.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("importer.Service requires a non nil Repo binder")
	}
	if tracker == nil {
		panic("importer.Service requires a run tracker")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Service{
		DB: db, Binder: binder, Tracker: tracker, Mapping: mapping, Cfg: cfg, Metrics: m,
		open: func(p string) (dataset.Container, error) {
			d, err := dataset.Open(p)
			if err != nil {
				return nil, err
			}
			return d, nil
		},
	}
}

// Run imports one (category, year, source) dataset; a run already completed is skipped
func (s *Service) Run(ctx context.Context, r domain.Request) (domain.Result, error) {
	if err := validate.Struct(r); err != nil {
		return domain.Result{}, err
	}
	k := rsdomain.RunKey{SourceID: r.Source, Year: r.Year, Category: strings.ToUpper(r.Category)}
	res := domain.Result{RunID: k.ID()}
	ctx = logger.WithRun(ctx, res.RunID)
	log := logger.C(ctx)

	prev, ok, err := s.Tracker.Get(ctx, res.RunID)
	if err != nil {
		return res, err
	}
	if ok && prev.Status == rsdomain.StatusCompleted {
		log.Info().Str("run", k.String()).Int64("rows", prev.RowsProcessed).Msg("import: already completed, skipping")
		res.Outcome = domain.OutcomeSkipped
		return res, nil
	}
	if _, err := s.Tracker.Start(ctx, k); err != nil {
		return res, err
	}
	log.Info().Str("run", k.String()).Str("dataset", r.Dataset).Msg("import: started")

	start := time.Now()
	res, err = s.run(ctx, r, k, res)

	fin := rsdomain.Finish{Rows: res.Rows, Observations: res.Observations()}
	switch {
	case err != nil && res.Outcome == domain.OutcomeNotFound:
		fin.Status, fin.Err = rsdomain.StatusNoData, err.Error()
	case err != nil:
		fin.Status, fin.Err = rsdomain.StatusFailed, err.Error()
	case res.Outcome == domain.OutcomeEmpty:
		fin.Status = rsdomain.StatusNoData
	default:
		fin.Status = rsdomain.StatusCompleted
	}
	// a cancelled job still records how its run ended
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if ferr := s.Tracker.Finish(fctx, res.RunID, fin); ferr != nil {
		log.Error().Err(ferr).Msg("import: finish status failed")
		if err == nil {
			err = ferr
		}
	}

	evt := log.Info()
	if err != nil {
		evt = log.Error().Err(err)
	}
	evt.Str("outcome", res.Outcome.String()).
		Str("status", string(fin.Status)).
		Int64("rows", res.Rows).
		Dur("took", time.Since(start)).
		Str("observations", fin.Observations).
		Msg("import: finished")
	return res, err
}

func (s *Service) run(ctx context.Context, r domain.Request, k rsdomain.RunKey, res domain.Result) (domain.Result, error) {
	log := logger.C(ctx)

	c, err := s.open(r.Dataset)
	if err != nil {
		return res, err
	}
	defer func() { _ = c.Close() }()

	layer, ok := DetectLayer(c.Layers(), k.Category)
	if !ok {
		res.Outcome = domain.OutcomeNotFound
		return res, perr.NotFoundf("no layer for %s in %s (layers: %s)", k.Category, r.Dataset, strings.Join(c.Layers(), ","))
	}
	res.Layer = layer

	mapping := s.Mapping.For(k.Category)
	if err := mapping.Validate(); err != nil {
		return res, err
	}
	tr := &Transformer{Mapping: mapping, ChunkSize: s.Cfg.ChunkSize}

	for ch, err := range tr.Transform(ctx, c, layer, k) {
		if err != nil {
			return res, err
		}
		res.Stats.Add(ch.Stats)
		if len(ch.DirtyColumns) > 0 {
			res.DirtyColumns = append(res.DirtyColumns, ch.DirtyColumns...)
			evt := log.Warn().Strs("columns", ch.DirtyColumns).Int("chunk", ch.Index)
			if ch.Index > 0 {
				res.PartialColumns = append(res.PartialColumns, ch.DirtyColumns...)
				evt = evt.Bool("partial", true)
			}
			evt.Msg("import: dropped dirty columns")
		}
		if ch.Stats.Dropped > 0 {
			log.Warn().Int("dropped", ch.Stats.Dropped).Strs("mandatory", mapping.Mandatory).Int("chunk", ch.Index).
				Msg("import: records missing mandatory fields")
		}
		s.Metrics.Rows(domain.HeaderTable, "read", ch.Stats.Read)
		s.Metrics.Rows(domain.HeaderTable, "dropped", ch.Stats.Dropped+ch.Stats.Duplicates)

		hdr, sat, skipped, err := s.load(ctx, ch)
		if err != nil {
			return res, perr.WithOp(err, "load chunk")
		}
		res.Rows += hdr
		res.SatelliteRows += sat
		res.SatellitesSkipped += skipped
		log.Debug().Int("chunk", ch.Index).Int("headers", len(ch.Headers)).Int64("inserted", hdr).
			Int64("satellites", sat).Msg("import: chunk loaded")
	}
	if res.Stats.Read == 0 {
		res.Outcome = domain.OutcomeEmpty
		return res, nil
	}
	res.Outcome = domain.OutcomeOk
	return res, nil
}

// load persists one chunk in a single transaction
func (s *Service) load(ctx context.Context, ch domain.Chunk) (hdr, sat, skipped int64, err error) {
	start := time.Now()
	if s.Cfg.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Cfg.TxTimeout)
		defer cancel()
	}

	tables := make([]string, 0, len(ch.Satellites))
	for t := range ch.Satellites {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	perTable := map[string]int64{}
	err = s.DB.Tx(ctx, func(q repokit.Queryer) error {
		repo := s.Binder.Bind(q)
		n, err := repo.LoadHeader(ctx, ch.Headers)
		if err != nil {
			return err
		}
		perTable[domain.HeaderTable] = n
		for _, t := range tables {
			m, err := repo.LoadSatellite(ctx, t, ch.Satellites[t])
			if err != nil {
				return err
			}
			perTable[t] = m
		}
		return nil
	})
	if err != nil {
		return 0, 0, 0, err
	}

	hdr = perTable[domain.HeaderTable]
	s.Metrics.Rows(domain.HeaderTable, "inserted", int(hdr))
	for _, t := range tables {
		m := perTable[t]
		sat += m
		skipped += int64(len(ch.Satellites[t])) - m
		s.Metrics.Rows(t, "inserted", int(m))
	}
	s.Metrics.ChunkDone(time.Since(start))
	return hdr, sat, skipped, nil
}
