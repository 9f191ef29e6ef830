// Package strings provides small string helpers for query arguments
package strings

import (
	std "strings"
	"unicode/utf8"
)

// SQLNull returns nil if s is blank/whitespace, else the original string.
// Useful for query args where NULL is desired for blanks
func SQLNull(s string) any {
	if std.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// Clip makes s storable in a text column of at most max bytes: invalid UTF-8 becomes U+FFFD,
// NUL bytes are removed and the cut never splits a rune
func Clip(s string, max int) string {
	s = std.ReplaceAll(std.ToValidUTF8(s, "�"), "\x00", "")
	if max <= 0 || len(s) <= max {
		return s
	}
	n := max
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
