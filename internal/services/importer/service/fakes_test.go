package service

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"

	"gridintake/internal/adapters/dataset"
	"gridintake/internal/platform/store"
	"gridintake/internal/services/importer/domain"
	rsdomain "gridintake/internal/services/runstatus/domain"
)

// memContainer is an in-memory dataset
type memContainer map[string][]dataset.Feature

func (m memContainer) Layers() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Columns is the union of the attribute names of the layer, like a sparse parquet schema
func (m memContainer) Columns(_ context.Context, layer string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, f := range m[layer] {
		for k := range f.Attrs {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m memContainer) Features(_ context.Context, layer string) iter.Seq2[dataset.Feature, error] {
	return func(yield func(dataset.Feature, error) bool) {
		for _, f := range m[layer] {
			if !yield(f, nil) {
				return
			}
		}
	}
}

func (m memContainer) Close() error { return nil }

// feat builds a feature from alternating column, value pairs
func feat(kv ...string) dataset.Feature {
	f := dataset.Feature{Attrs: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Attrs[strings.ToUpper(kv[i])] = kv[i+1]
	}
	return f
}

type fakeDB struct{ store.RowQuerier }

func (f fakeDB) Tx(ctx context.Context, fn func(q store.RowQuerier) error) error { return fn(f) }

// memLoader keeps insert-if-absent semantics in memory
type memLoader struct {
	mu         sync.Mutex
	headers    map[string]domain.Header
	satellites map[string]map[string]domain.SatelliteRow
	failOn     string
	err        error
}

func newMemLoader() *memLoader {
	return &memLoader{headers: map[string]domain.Header{}, satellites: map[string]map[string]domain.SatelliteRow{}}
}

func (m *memLoader) LoadHeader(_ context.Context, rows []domain.Header) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == domain.HeaderTable {
		return 0, m.err
	}
	var n int64
	for _, h := range rows {
		if _, ok := m.headers[h.UCID]; ok {
			continue
		}
		m.headers[h.UCID] = h
		n++
	}
	return n, nil
}

func (m *memLoader) LoadSatellite(_ context.Context, table string, rows []domain.SatelliteRow) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == table {
		return 0, m.err
	}
	t := m.satellites[table]
	if t == nil {
		t = map[string]domain.SatelliteRow{}
		m.satellites[table] = t
	}
	var n int64
	for _, r := range rows {
		if _, ok := m.headers[r.UCID]; !ok {
			continue
		}
		key := fmt.Sprintf("%s/%02d", r.UCID, r.Month)
		if _, ok := t[key]; ok {
			continue
		}
		t[key] = r
		n++
	}
	return n, nil
}

type memTracker struct {
	mu   sync.Mutex
	runs map[string]rsdomain.Run
}

func newMemTracker() *memTracker { return &memTracker{runs: map[string]rsdomain.Run{}} }

func (m *memTracker) Start(_ context.Context, k rsdomain.RunKey) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := k.ID()
	m.runs[id] = rsdomain.Run{RunID: id, SourceID: k.SourceID, Year: k.Year, Category: k.Category, Status: rsdomain.StatusRunning}
	return id, nil
}

func (m *memTracker) Finish(_ context.Context, id string, fin rsdomain.Finish) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[id]
	r.Status, r.RowsProcessed, r.Error, r.Observations = fin.Status, fin.Rows, fin.Err, fin.Observations
	m.runs[id] = r
	return nil
}

func (m *memTracker) Get(_ context.Context, id string) (rsdomain.Run, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	return r, ok, nil
}
