package sanitize

import (
	"strings"
	"time"
)

// dateLayouts are tried in order; day-first wins over month-first for slashed dates
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
	"02/01/2006 15:04:05",
	"02-01-2006",
	"02.01.2006",
	"20060102",
}

// Date parses s as a calendar date in UTC, truncated to the day
func Date(s string) (time.Time, bool) {
	s = Text(s)
	if s == "" || DirtySentinel(s) {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return day(t), true
		}
	}
	// timestamps with a fractional second or offset the layouts above miss
	if i := strings.IndexAny(s, "T "); i == 10 {
		if t, err := time.Parse("2006-01-02", s[:i]); err == nil {
			return day(t), true
		}
	}
	return time.Time{}, false
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
