// Package domain holds the dataset download types
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Request asks for the dataset of one distributor and year
type Request struct {
	Distributor string
	Year        int
	URL         string // empty means look it up in the catalog
	TargetName  string // empty means {DISTRIBUTOR}_{YEAR}
	MaxKbps     int    // <=0 means the configured default
}

// Target returns the canonical directory name for r
func (r Request) Target() string {
	if t := strings.TrimSpace(r.TargetName); t != "" {
		return t
	}
	return CanonicalName(r.Distributor, r.Year)
}

// CanonicalName upper-cases the distributor and joins it with the year
func CanonicalName(distributor string, year int) string {
	base := strings.ToUpper(strings.Join(strings.Fields(distributor), "_"))
	return fmt.Sprintf("%s_%d", base, year)
}

// CatalogEntry is a candidate remote dataset
type CatalogEntry struct {
	ID      int64
	Title   string
	URL     string
	URLHash string
	Fetched bool
}

// LogStatus is the state of the latest download attempt for a key
type LogStatus string

// Download log statuses
const (
	LogRunning LogStatus = "running"
	LogDone    LogStatus = "done"
	LogError   LogStatus = "error"
)

// LogEntry is the single download_log row kept per (distributor, year)
type LogEntry struct {
	Distributor string
	Year        int
	Status      LogStatus
	Elapsed     time.Duration
	Error       string
	Path        string
	UpdatedAt   time.Time
}
