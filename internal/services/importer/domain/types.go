// Package domain holds the import pipeline types: header and satellite rows, chunks and outcomes
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"gridintake/internal/core/sanitize"
)

// HeaderTable is the table holding one row per physical unit
const HeaderTable = "lead_bruto"

// Satellite tables and their measure columns, in COPY order
var satelliteColumns = map[string][]string{
	"lead_energia_mensal":   {"peak", "off_peak", "total"},
	"lead_demanda_mensal":   {"peak", "off_peak", "total"},
	"lead_qualidade_mensal": {"dic", "fic"},
}

// MeasureColumns returns the measure columns of a satellite table
func MeasureColumns(table string) ([]string, bool) {
	c, ok := satelliteColumns[table]
	return c, ok
}

// Months is the number of satellite rows produced per header and group
const Months = 12

// Request is one import run: a dataset on disk and the triple identifying the run
type Request struct {
	Dataset  string `json:"dataset"  validate:"required"`
	Category string `json:"category" validate:"required,max=32,safename"`
	Year     int    `json:"year"     validate:"min=2000,max=2100"`
	Source   string `json:"source"   validate:"required,max=64,safename"`
}

// UCID is the surrogate key of a header row, stable across re-imports
func UCID(codID string, year int, category, source string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%d_%s_%s", codID, year, strings.ToUpper(category), source)))
	return hex.EncodeToString(sum[:])[:24]
}

// Header is one lead_bruto row; empty strings and nil pointers are stored as NULL
type Header struct {
	UCID             string
	RunID            string
	CodID            string
	SourceID         string
	Category         string
	Year             int
	Status           string
	ConnectedOn      *time.Time
	CNAE             *int64
	VoltageGroup     string
	TariffMode       string
	SystemType       string
	Situation        string
	Class            string
	Segment          string
	Substation       string
	MunicipalityCode *int64
	District         string
	PostalCode       string
	PAC              sanitize.Number
	PnCon            string
	Description      string
	Latitude         sanitize.Number
	Longitude        sanitize.Number
}

// SatelliteRow is one month of one measure group for a header
type SatelliteRow struct {
	UCID     string
	Month    int
	Origin   string
	Measures []sanitize.Number // aligned with MeasureColumns(table)
}

// Stats counts what a chunk did with the features it read
type Stats struct {
	Read       int
	Dropped    int // missing a mandatory field
	Duplicates int // same surrogate key earlier in the chunk
}

// Add accumulates o into s
func (s *Stats) Add(o Stats) {
	s.Read += o.Read
	s.Dropped += o.Dropped
	s.Duplicates += o.Duplicates
}

// Chunk is the normalized output of one batch of features
type Chunk struct {
	Index      int
	Headers    []Header
	Satellites map[string][]SatelliteRow // keyed by table
	Stats      Stats
	// DirtyColumns lists columns first dropped in this chunk for carrying garbage markers
	DirtyColumns []string
}

// Outcome classifies how an import run ended
type Outcome int

// Import outcomes
const (
	OutcomeOk Outcome = iota
	OutcomeEmpty
	OutcomeNotFound
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOk:
		return "ok"
	case OutcomeEmpty:
		return "empty"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeSkipped:
		return "skipped"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is what a run reports back
type Result struct {
	Outcome           Outcome
	RunID             string
	Layer             string
	Rows              int64 // header rows actually inserted
	SatelliteRows     int64
	SatellitesSkipped int64 // existing or unresolved header keys
	Stats             Stats
	DirtyColumns      []string
	// PartialColumns went dirty after earlier chunks had already loaded their values
	PartialColumns []string
}

// Observations renders r for the run status record
func (r Result) Observations() string {
	var b strings.Builder
	fmt.Fprintf(&b, "layer=%s read=%d inserted=%d dropped=%d duplicates=%d satellites=%d satellites_skipped=%d",
		r.Layer, r.Stats.Read, r.Rows, r.Stats.Dropped, r.Stats.Duplicates, r.SatelliteRows, r.SatellitesSkipped)
	if len(r.DirtyColumns) > 0 {
		fmt.Fprintf(&b, " dirty_columns=%s", strings.Join(r.DirtyColumns, ","))
	}
	if len(r.PartialColumns) > 0 {
		fmt.Fprintf(&b, " partial_columns=%s", strings.Join(r.PartialColumns, ","))
	}
	return b.String()
}
