package domain

import (
	"context"
)

// FetcherPort resolves a dataset to a local directory
type FetcherPort interface {
	Fetch(ctx context.Context, r Request) (string, error)
}

// StorageRepo covers the catalog and the download log
type StorageRepo interface {
	// PickCatalog prefers entries not fetched yet, then the most recently modified
	PickCatalog(ctx context.Context, distributor string, year int) (CatalogEntry, bool, error)
	MarkFetched(ctx context.Context, id int64, urlHash, note string) error

	// UpsertLog overwrites the log row for (distributor, year)
	UpsertLog(ctx context.Context, e LogEntry) error
	GetLog(ctx context.Context, distributor string, year int) (LogEntry, bool, error)
}
