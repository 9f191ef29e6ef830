// Package sanitize provides pure functions that normalize raw dataset field values
// Every function is safe for concurrent use and never returns an error: values that
// cannot be interpreted come back as missing
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// nullTokens are the spellings datasets use for "no value"; compared after trim and lower-case
var nullTokens = map[string]struct{}{
	"":         {},
	"nan":      {},
	"none":     {},
	"null":     {},
	"nulo":     {},
	"<null>":   {},
	"n/a":      {},
	"sem dado": {},
	"***":      {},
	"-":        {},
}

// IsNull reports whether s is one of the null spellings
func IsNull(s string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Text strips control characters and invalid UTF-8, trims surrounding whitespace and
// maps null spellings to ""
func Text(s string) string {
	s = strings.TrimSpace(stripControl(s))
	if IsNull(s) {
		return ""
	}
	return s
}

// Identifier is Text with internal whitespace runs collapsed and upper-cased
func Identifier(s string) string {
	s = Text(s)
	if s == "" {
		return ""
	}
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// stripControl removes NUL, every C0/C1 control and DEL, and drops invalid UTF-8 bytes
// Tabs and line breaks are dropped as well since dataset fields are single line
// Fast path returns s unchanged when no cleaning is needed
func stripControl(s string) string {
	if s == "" {
		return s
	}

	n := len(s)
	i := 0

	// scan until the first bad byte or rune
	for i < n {
		b := s[i]
		if b < 0x20 || b == 0x7F {
			break
		}
		if b < 0x80 {
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if (r == utf8.RuneError && size == 1) || unicode.IsControl(r) {
			break
		}
		i += size
	}
	if i == n {
		return s
	}

	var bldr strings.Builder
	bldr.Grow(n)
	bldr.WriteString(s[:i])

	for i < n {
		c := s[i]
		if c < 0x20 || c == 0x7F {
			// keep word boundaries when a tab or newline separated two tokens
			if c == '\t' || c == '\n' || c == '\r' {
				bldr.WriteByte(' ')
			}
			i++
			continue
		}
		if c < 0x80 {
			bldr.WriteByte(c)
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			i++
			continue
		}
		if unicode.IsControl(r) {
			i += size
			continue
		}
		bldr.WriteString(s[i : i+size])
		i += size
	}
	return bldr.String()
}
