package domain

import "context"

// TrackerPort is the public port other modules call
type TrackerPort interface {
	// Start records running; repeated calls update the same row
	Start(ctx context.Context, k RunKey) (string, error)

	// Finish is only valid from running
	Finish(ctx context.Context, runID string, fin Finish) error

	// Get returns the run and whether it exists
	Get(ctx context.Context, runID string) (Run, bool, error)
}

// StorageRepo is the storage contract of the tracker
type StorageRepo interface {
	UpsertRunning(ctx context.Context, runID string, k RunKey) error

	// FinishRunning updates only a running row and reports whether it did
	FinishRunning(ctx context.Context, runID string, fin Finish) (bool, error)

	Get(ctx context.Context, runID string) (Run, bool, error)
}
