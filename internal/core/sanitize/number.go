package sanitize

import (
	"math"
	"strconv"
	"strings"
)

// Number is a typed-missing float: a value that failed to parse is Missing, never zero
type Number struct {
	Value float64
	Valid bool
}

// Missing is the zero Number
var Missing = Number{}

// Some wraps a known value
func Some(v float64) Number { return Number{Value: v, Valid: true} }

// Any returns the value for a database driver, nil when missing
func (n Number) Any() any {
	if !n.Valid {
		return nil
	}
	return n.Value
}

// ParseNumber understands plain dot decimals, decimal comma with dot thousands ("1.234,56"),
// dot thousands without decimals ("2.000") and a leading sign
func ParseNumber(s string) Number {
	s = Text(s)
	if s == "" {
		return Missing
	}
	s = strings.ReplaceAll(s, " ", "")

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dotThousands(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing
	}
	return Some(v)
}

// dotThousands matches -?d{1,3}(.ddd)+ so "2.000" is two thousand and "2.5" stays decimal
func dotThousands(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	groups := strings.Split(s, ".")
	if len(groups) < 2 || len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for i, g := range groups {
		if !allDigits(g) || (i > 0 && len(g) != 3) {
			return false
		}
	}
	return true
}

// ParseInt keeps only the digits of s ("abc456" is 456, "78-90" is 7890)
func ParseInt(s string) (int64, bool) {
	s = Text(s)
	if s == "" {
		return 0, false
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CNAE returns the leading activity class of a code like "1234-5/01"
func CNAE(s string) (int64, bool) {
	s = Text(s)
	if i := strings.IndexAny(s, "-/"); i >= 0 {
		s = s[:i]
	}
	return ParseInt(s)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
