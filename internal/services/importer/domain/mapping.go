package domain

import (
	"slices"
	"strings"

	perr "gridintake/internal/platform/errors"
)

// Header fields a mapping may source; each has a fixed sanitizer
var HeaderFields = []string{
	"cod_id", "connected_on", "cnae", "voltage_group", "tariff_mode", "system_type",
	"situation", "class", "segment", "substation", "municipality_code", "district",
	"postal_code", "pac", "pn_con", "description", "latitude", "longitude",
}

// Measure binds a satellite column to the monthly column prefix feeding it (PREFIX_MM)
type Measure struct {
	Column string `yaml:"column"`
	Prefix string `yaml:"prefix"`
}

// SatelliteMap describes one monthly measure group
type SatelliteMap struct {
	Table    string    `yaml:"table"`
	Measures []Measure `yaml:"measures"`
}

// Mapping tells the transformer where header fields and monthly measures come from
type Mapping struct {
	Header     map[string]string `yaml:"header"`    // field -> source column
	Mandatory  []string          `yaml:"mandatory"` // header fields that must be present
	Satellites []SatelliteMap    `yaml:"satellites"`
}

// MappingFile holds a default mapping and per-category overrides
type MappingFile struct {
	Default    Mapping            `yaml:"default"`
	Categories map[string]Mapping `yaml:"categories"`
}

// For resolves the mapping of category; override fields replace the default ones they set
func (f MappingFile) For(category string) Mapping {
	m := f.Default
	var (
		o  Mapping
		ok bool
	)
	for k, v := range f.Categories {
		if strings.EqualFold(k, category) {
			o, ok = v, true
			break
		}
	}
	if !ok {
		return m
	}
	if len(o.Header) > 0 {
		merged := make(map[string]string, len(m.Header)+len(o.Header))
		for k, v := range m.Header {
			merged[k] = v
		}
		for k, v := range o.Header {
			merged[k] = v
		}
		m.Header = merged
	}
	if o.Mandatory != nil {
		m.Mandatory = o.Mandatory
	}
	if o.Satellites != nil {
		m.Satellites = o.Satellites
	}
	return m
}

// Validate checks fields, tables and measure columns against the schema
func (m Mapping) Validate() error {
	if m.Header["cod_id"] == "" {
		return perr.Validationf("mapping: header.cod_id is required")
	}
	for f := range m.Header {
		if !slices.Contains(HeaderFields, f) {
			return perr.Validationf("mapping: unknown header field %q", f)
		}
	}
	for _, f := range m.Mandatory {
		if _, ok := m.Header[f]; !ok {
			return perr.Validationf("mapping: mandatory field %q has no source column", f)
		}
	}
	seen := map[string]bool{}
	for _, s := range m.Satellites {
		cols, ok := MeasureColumns(s.Table)
		if !ok {
			return perr.Validationf("mapping: unknown satellite table %q", s.Table)
		}
		if seen[s.Table] {
			return perr.Validationf("mapping: satellite table %q listed twice", s.Table)
		}
		seen[s.Table] = true
		for _, ms := range s.Measures {
			if !slices.Contains(cols, ms.Column) {
				return perr.Validationf("mapping: %s has no column %q", s.Table, ms.Column)
			}
			if strings.TrimSpace(ms.Prefix) == "" {
				return perr.Validationf("mapping: %s.%s needs a prefix", s.Table, ms.Column)
			}
		}
	}
	return nil
}
