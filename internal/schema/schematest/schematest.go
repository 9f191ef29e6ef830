//go:build integration_pg

// Package schematest opens a migrated postgres for service integration tests
package schematest

import (
	"context"
	"io"
	"testing"
	"time"

	"gridintake/internal/platform/store"
	"gridintake/internal/platform/testkit/pgtest"
	"gridintake/internal/schema"

	"github.com/rs/zerolog"
)

// Open starts a container, applies the schema and returns the store seam
// The pool is closed on test cleanup
func Open(t *testing.T) store.TxRunner {
	t.Helper()
	dsn := pgtest.Start(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := store.Open(ctx, store.Config{
		AppName: "gridintake-test",
		PG: store.PGConfig{
			Enabled:        true,
			URL:            dsn,
			MaxConns:       8,
			ConnectRetries: 5,
			PingTimeout:    3 * time.Second,
		},
	}, store.WithLogger(zerolog.New(io.Discard)))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	if err := schema.Apply(ctx, st.PG); err != nil {
		t.Fatalf("schema.Apply: %v", err)
	}
	return st.PG
}
