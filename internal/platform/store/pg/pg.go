// Package pg owns the pgxpool behind the store adapters
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config sizes the pool for one process
// the worker keeps a couple of connections for queue traffic; the import child
// holds one per in-flight chunk transaction
type Config struct {
	URL string

	// AppName is reported as application_name so pg_stat_activity can tell
	// the worker, the import child and the enqueue tool apart
	AppName string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration

	// SlowMs marks traced statements at or above this as slow, negative disables
	SlowMs int
}

// PG is the opened pool plus its optional tracer
type PG struct {
	Pool   *pgxpool.Pool
	Tracer QueryTracer
	SlowMs int
}

var newPool = pgxpool.NewWithConfig

// PoolConfig parses the URL and applies the sizing knobs
func (c Config) PoolConfig() (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, err
	}
	if c.MaxConns > 0 {
		pcfg.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 && c.MinConns <= pcfg.MaxConns {
		pcfg.MinConns = c.MinConns
	}
	if c.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.AppName != "" {
		pcfg.ConnConfig.RuntimeParams["application_name"] = c.AppName
	}
	return pcfg, nil
}

// Open builds the pool; it does not ping
func Open(ctx context.Context, cfg Config, tracer QueryTracer) (*PG, error) {
	pcfg, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &PG{Pool: pool, Tracer: tracer, SlowMs: cfg.SlowMs}, nil
}

// SlowUS is the slow threshold in microseconds, -1 when disabled
func (p *PG) SlowUS() int64 {
	if p == nil || p.SlowMs < 0 {
		return -1
	}
	return int64(p.SlowMs) * 1000
}

// Close closes the pool, nil safe
func (p *PG) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}
