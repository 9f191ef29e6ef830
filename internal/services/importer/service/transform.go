package service

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"gridintake/internal/adapters/dataset"
	"gridintake/internal/core/sanitize"
	"gridintake/internal/services/importer/domain"
	rsdomain "gridintake/internal/services/runstatus/domain"

	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize bounds the features held in memory at once
const DefaultChunkSize = 5000

// Transformer turns a layer into normalized chunks
type Transformer struct {
	Mapping   domain.Mapping
	ChunkSize int
}

// state carried across the chunks of one layer
type layerState struct {
	runID     string
	category  string
	protected map[string]bool // mandatory source columns are never dropped as dirty
	dirty     map[string]bool
	groups    []domain.SatelliteMap // decided once from the layer's declared columns
}

// Transform streams layer in chunks of ChunkSize features; the sequence reads the layer once
// and never reads ahead of the chunk the caller is holding
func (t *Transformer) Transform(ctx context.Context, c dataset.Container, layer string, k rsdomain.RunKey) iter.Seq2[domain.Chunk, error] {
	size := t.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	return func(yield func(domain.Chunk, error) bool) {
		st := &layerState{
			runID:     k.ID(),
			category:  strings.ToUpper(k.Category),
			protected: map[string]bool{},
			dirty:     map[string]bool{},
		}
		for _, f := range t.Mapping.Mandatory {
			st.protected[strings.ToUpper(t.Mapping.Header[f])] = true
		}
		cols, err := c.Columns(ctx, layer)
		if err != nil {
			yield(domain.Chunk{}, err)
			return
		}
		st.groups = activeGroups(t.Mapping.Satellites, cols)

		batch := make([]dataset.Feature, 0, size)
		idx := 0
		flush := func() bool {
			ch, err := t.build(ctx, batch, idx, k, st)
			batch = batch[:0]
			idx++
			return yield(ch, err) && err == nil
		}
		for f, err := range c.Features(ctx, layer) {
			if err != nil {
				yield(domain.Chunk{}, err)
				return
			}
			batch = append(batch, f)
			if len(batch) >= size && !flush() {
				return
			}
		}
		if len(batch) > 0 {
			flush()
		}
	}
}

func (t *Transformer) build(ctx context.Context, batch []dataset.Feature, idx int, k rsdomain.RunKey, st *layerState) (domain.Chunk, error) {
	ch := domain.Chunk{Index: idx, Stats: domain.Stats{Read: len(batch)}}
	ch.DirtyColumns = st.markDirty(batch)

	seen := make(map[string]struct{}, len(batch))
	kept := make([]int, 0, len(batch))
	ch.Headers = make([]domain.Header, 0, len(batch))
	for i, f := range batch {
		h := t.header(f, k, st)
		if !t.complete(h) {
			ch.Stats.Dropped++
			continue
		}
		if _, dup := seen[h.UCID]; dup {
			ch.Stats.Duplicates++
			continue
		}
		seen[h.UCID] = struct{}{}
		ch.Headers = append(ch.Headers, h)
		kept = append(kept, i)
	}

	sets := make([][]domain.SatelliteRow, len(st.groups))
	g, gctx := errgroup.WithContext(ctx)
	for gi, grp := range st.groups {
		g.Go(func() error {
			rows := make([]domain.SatelliteRow, 0, len(kept)*domain.Months)
			for n, i := range kept {
				if n%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				rows = expand(rows, batch[i], ch.Headers[n].UCID, st.category, grp, st.dirty)
			}
			sets[gi] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Chunk{}, err
	}
	ch.Satellites = make(map[string][]domain.SatelliteRow, len(st.groups))
	for gi, grp := range st.groups {
		ch.Satellites[grp.Table] = sets[gi]
	}
	return ch, nil
}

// markDirty drops columns carrying garbage markers and returns the ones first seen in batch
func (st *layerState) markDirty(batch []dataset.Feature) []string {
	var fresh []string
	for _, f := range batch {
		for col, v := range f.Attrs {
			if st.dirty[col] || st.protected[col] || !sanitize.DirtySentinel(v) {
				continue
			}
			st.dirty[col] = true
			fresh = append(fresh, col)
		}
	}
	return fresh
}

// activeGroups keeps the satellite groups with at least one monthly column among cols
func activeGroups(groups []domain.SatelliteMap, cols []string) []domain.SatelliteMap {
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[strings.ToUpper(c)] = true
	}
	var out []domain.SatelliteMap
	for _, grp := range groups {
	scan:
		for _, m := range grp.Measures {
			for month := 1; month <= domain.Months; month++ {
				if have[monthly(m.Prefix, month)] {
					out = append(out, grp)
					break scan
				}
			}
		}
	}
	return out
}

func monthly(prefix string, month int) string {
	return fmt.Sprintf("%s_%02d", strings.ToUpper(prefix), month)
}

// expand appends the twelve monthly rows of one feature for grp; unparseable values stay missing
func expand(rows []domain.SatelliteRow, f dataset.Feature, ucID, origin string, grp domain.SatelliteMap, dirty map[string]bool) []domain.SatelliteRow {
	cols, _ := domain.MeasureColumns(grp.Table)
	for month := 1; month <= domain.Months; month++ {
		measures := make([]sanitize.Number, len(cols))
		for _, m := range grp.Measures {
			col := monthly(m.Prefix, month)
			if dirty[col] {
				continue
			}
			for j, c := range cols {
				if c == m.Column {
					measures[j] = sanitize.ParseNumber(f.Attrs[col])
				}
			}
		}
		rows = append(rows, domain.SatelliteRow{UCID: ucID, Month: month, Origin: origin, Measures: measures})
	}
	return rows
}

func (t *Transformer) header(f dataset.Feature, k rsdomain.RunKey, st *layerState) domain.Header {
	get := func(field string) string {
		col := strings.ToUpper(t.Mapping.Header[field])
		if col == "" || st.dirty[col] {
			return ""
		}
		return f.Attrs[col]
	}
	h := domain.Header{
		RunID:        st.runID,
		CodID:        sanitize.Text(get("cod_id")),
		SourceID:     k.SourceID,
		Category:     st.category,
		Year:         k.Year,
		Status:       "raw",
		VoltageGroup: sanitize.VoltageGroup(get("voltage_group")),
		TariffMode:   sanitize.TariffMode(get("tariff_mode")),
		SystemType:   sanitize.SystemType(get("system_type")),
		Situation:    sanitize.Situation(get("situation")),
		Class:        sanitize.Class(get("class")),
		Segment:      sanitize.Text(get("segment")),
		Substation:   sanitize.Text(get("substation")),
		District:     sanitize.Text(get("district")),
		PostalCode:   sanitize.Text(get("postal_code")),
		PAC:          sanitize.ParseNumber(get("pac")),
		PnCon:        sanitize.Text(get("pn_con")),
		Description:  sanitize.Text(get("description")),
		Latitude:     sanitize.ParseNumber(get("latitude")),
		Longitude:    sanitize.ParseNumber(get("longitude")),
	}
	if d, ok := sanitize.Date(get("connected_on")); ok {
		h.ConnectedOn = &d
	}
	if v, ok := sanitize.CNAE(get("cnae")); ok {
		h.CNAE = &v
	}
	if v, ok := sanitize.ParseInt(get("municipality_code")); ok {
		h.MunicipalityCode = &v
	}
	if !h.Latitude.Valid || !h.Longitude.Valid {
		if p, ok := f.Centroid(); ok {
			h.Longitude, h.Latitude = sanitize.Some(p[0]), sanitize.Some(p[1])
		}
	}
	if h.CodID != "" {
		h.UCID = domain.UCID(h.CodID, k.Year, st.category, k.SourceID)
	}
	return h
}

// complete reports whether every mandatory field of h is present
func (t *Transformer) complete(h domain.Header) bool {
	if h.UCID == "" {
		return false
	}
	for _, f := range t.Mapping.Mandatory {
		if !present(h, f) {
			return false
		}
	}
	return true
}

func present(h domain.Header, field string) bool {
	switch field {
	case "cod_id":
		return h.CodID != ""
	case "connected_on":
		return h.ConnectedOn != nil
	case "cnae":
		return h.CNAE != nil
	case "municipality_code":
		return h.MunicipalityCode != nil
	case "pac":
		return h.PAC.Valid
	case "latitude":
		return h.Latitude.Valid
	case "longitude":
		return h.Longitude.Valid
	case "voltage_group":
		return h.VoltageGroup != ""
	case "tariff_mode":
		return h.TariffMode != ""
	case "system_type":
		return h.SystemType != ""
	case "situation":
		return h.Situation != ""
	case "class":
		return h.Class != ""
	case "segment":
		return h.Segment != ""
	case "substation":
		return h.Substation != ""
	case "district":
		return h.District != ""
	case "postal_code":
		return h.PostalCode != ""
	case "pn_con":
		return h.PnCon != ""
	case "description":
		return h.Description != ""
	}
	return false
}
