//go:build integration_pg

package repo_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"gridintake/internal/schema/schematest"
	"gridintake/internal/services/download/domain"
	"gridintake/internal/services/download/repo"
)

func TestCatalogAndLog_Postgres(t *testing.T) {
	pg := schematest.Open(t)
	r := repo.NewPG().Bind(pg)
	ctx := context.Background()

	if _, ok, err := r.PickCatalog(ctx, "ACME", 2023); err != nil || ok {
		t.Fatalf("empty catalog: ok=%v err=%v", ok, err)
	}

	const seed = `
		INSERT INTO dataset_url_catalog (distributor, year, title, url, modified, fetched)
		VALUES ('ACME', 2023, 'ACME 2023 old', 'https://e/old.zip', NOW() - INTERVAL '2 days', TRUE),
		       ('ACME', 2023, 'ACME 2023 new', 'https://e/new.zip', NOW() - INTERVAL '1 day', FALSE),
		       ('OTHER', 2023, 'Other', 'https://e/other.zip', NOW(), FALSE)
	`
	if _, err := pg.Exec(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	e, ok, err := r.PickCatalog(ctx, "acme", 2023)
	if err != nil || !ok || e.URL != "https://e/new.zip" || e.Fetched {
		t.Fatalf("pick = %+v ok=%v err=%v", e, ok, err)
	}

	if err := r.MarkFetched(ctx, e.ID, "h1", "first"); err != nil {
		t.Fatalf("MarkFetched: %v", err)
	}
	if err := r.MarkFetched(ctx, e.ID, "h2", "second"); err != nil {
		t.Fatalf("MarkFetched again: %v", err)
	}
	var hash, notes string
	if err := pg.QueryRow(ctx, `SELECT url_hash, notes FROM dataset_url_catalog WHERE id = $1`, e.ID).Scan(&hash, &notes); err != nil {
		t.Fatal(err)
	}
	if hash != "h1" || !strings.Contains(notes, "first") || !strings.Contains(notes, "second") {
		t.Fatalf("hash=%q notes=%q", hash, notes)
	}
	if err := r.MarkFetched(ctx, 999999, "", ""); err == nil {
		t.Fatal("unknown id should fail")
	}

	// the log keeps only the latest attempt
	if err := r.UpsertLog(ctx, domain.LogEntry{Distributor: "ACME", Year: 2023, Status: domain.LogRunning}); err != nil {
		t.Fatalf("UpsertLog: %v", err)
	}
	if err := r.UpsertLog(ctx, domain.LogEntry{
		Distributor: "ACME", Year: 2023, Status: domain.LogError, Elapsed: 1500 * time.Millisecond, Error: "boom",
	}); err != nil {
		t.Fatalf("UpsertLog: %v", err)
	}
	l, ok, err := r.GetLog(ctx, "ACME", 2023)
	if err != nil || !ok || l.Status != domain.LogError || l.Error != "boom" || l.Elapsed != 1500*time.Millisecond {
		t.Fatalf("log = %+v ok=%v err=%v", l, ok, err)
	}
	var n int
	if err := pg.QueryRow(ctx, `SELECT COUNT(*) FROM download_log`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("log rows = %d err=%v", n, err)
	}
}
