// Package domain holds the import run lifecycle types
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an import run
type Status string

// Run statuses; everything but running is terminal
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusNoData    Status = "no_data"
)

// Terminal reports whether s ends a run
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusNoData:
		return true
	}
	return false
}

// RunKey identifies one import of a (category, year, source) triple
type RunKey struct {
	SourceID string
	Year     int
	Category string
}

// ID returns the deterministic run id for k
func (k RunKey) ID() string { return RunID(k.SourceID, k.Year, k.Category) }

// String renders the key for logs
func (k RunKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.SourceID, k.Year, strings.ToUpper(k.Category))
}

// RunID hashes the identifying triple; the category is case-insensitive
func RunID(sourceID string, year int, category string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%d_%s",
		strings.ToUpper(strings.TrimSpace(category)), year, strings.TrimSpace(sourceID))))
	return hex.EncodeToString(sum[:])[:24]
}

// Run is a persisted import run
type Run struct {
	RunID         string
	SourceID      string
	Year          int
	Category      string
	Status        Status
	RowsProcessed int64
	Error         string
	Observations  string
	StartedAt     time.Time
	FinishedAt    *time.Time
	UpdatedAt     time.Time
}

// Finish carries the outcome recorded when a run ends
type Finish struct {
	Status       Status
	Rows         int64
	Err          string
	Observations string
}
