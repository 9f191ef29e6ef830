package domain

import "context"

// ImporterPort runs one import end to end
type ImporterPort interface {
	Run(ctx context.Context, r Request) (Result, error)
}

// LoaderRepo is the bulk loader; both loads are insert-if-absent and report rows actually inserted
type LoaderRepo interface {
	LoadHeader(ctx context.Context, rows []Header) (int64, error)
	// LoadSatellite skips rows whose header is missing or whose month already exists
	LoadSatellite(ctx context.Context, table string, rows []SatelliteRow) (int64, error)
}
