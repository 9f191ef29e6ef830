package store

import (
	"context"
	"fmt"
	"time"

	"gridintake/internal/platform/logger"
	"gridintake/internal/platform/store/pg"
)

// connect backoff; the worker usually starts alongside postgres in compose
const (
	backoffStart   = 150 * time.Millisecond
	backoffCeiling = 2 * time.Second
)

// openPG opens the pool, waits for it to answer and only then publishes the adapter
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:             cfg.PG.URL,
		AppName:         cfg.AppName,
		MaxConns:        cfg.PG.MaxConns,
		MinConns:        cfg.PG.MinConns,
		MaxConnLifetime: cfg.PG.MaxConnLifetime,
		SlowMs:          cfg.PG.SlowQueryMs,
	}, tracer)
	if err != nil {
		return nil, err
	}

	// ping the pool directly so the wait loop leaves no trace lines
	if err := waitReady(ctx, p.Pool.Ping, cfg.PG.ConnectRetries, cfg.PG.PingTimeout, s.Log); err != nil {
		p.Close()
		return nil, err
	}
	a := newPGAdapter(p)
	s.PG = a
	return a, nil
}

// waitReady calls ping until it succeeds, attempts run out or ctx ends
func waitReady(ctx context.Context, ping func(context.Context) error, attempts int, timeout time.Duration, log logger.Logger) error {
	if attempts <= 0 {
		attempts = 20
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	var lastErr error
	backoff := backoffStart
	for i := 1; i <= attempts; i++ {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = ping(pctx)
		cancel()
		if lastErr == nil {
			return nil
		}
		log.Warn().Err(lastErr).Int("attempt", i).Int("of", attempts).Msg("postgres not ready")
		if i == attempts {
			break
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff = min(backoff*2, backoffCeiling)
	}
	return fmt.Errorf("postgres ping failed after %d attempts: %w", attempts, lastErr)
}
