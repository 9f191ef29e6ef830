package strings

import (
	std "strings"
	"testing"
	"unicode/utf8"
)

func TestSQLNull(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want any
	}{
		{"", nil},
		{"   \t", nil},
		{"x", "x"},
		{" padded ", " padded "}, // kept verbatim
	}
	for _, c := range cases {
		if got := SQLNull(c.in); got != c.want {
			t.Errorf("SQLNull(%q) = %#v want %#v", c.in, got, c.want)
		}
	}
}

func TestClip(t *testing.T) {
	t.Parallel()

	pad := std.Repeat("a", 3999)
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "falha", 4000, "falha"},
		{"ascii cut", std.Repeat("x", 10), 4, "xxxx"},
		{"rune at boundary", pad + "ção", 4000, pad},
		{"rune fits", pad[:3998] + "ç", 4000, pad[:3998] + "ç"},
		{"invalid input", "erro \xc3", 4000, "erro �"},
		{"nul", "a\x00b", 4000, "ab"},
		{"no limit", "ação", 0, "ação"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Clip(c.in, c.max)
			if got != c.want {
				t.Fatalf("Clip = %q (len %d), want len %d", got, len(got), len(c.want))
			}
			if !utf8.ValidString(got) || (c.max > 0 && len(got) > c.max) {
				t.Fatalf("Clip produced unstorable text: len %d valid %v", len(got), utf8.ValidString(got))
			}
		})
	}
}
