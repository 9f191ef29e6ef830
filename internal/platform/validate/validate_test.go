package validate

import (
	"strings"
	"testing"

	perr "gridintake/internal/platform/errors"
)

type inner struct {
	Year int    `json:"year" validate:"min=2000,max=2100"`
	Name string `json:"name" validate:"required,safename"`
}

type doc struct {
	Kind  string `json:"kind" validate:"required,oneof=a b"`
	Inner *inner `json:"inner" validate:"omitempty"`
}

func TestStruct_FieldAndShortMessage(t *testing.T) {
	err := Struct(doc{Kind: "a", Inner: &inner{Year: 1999, Name: "ENEL"}})
	if perr.CodeOf(err) != perr.ErrorCodeValidation {
		t.Fatalf("code = %v (%v)", perr.CodeOf(err), err)
	}
	e, _ := perr.As(err)
	if e.Field() != "inner.year" {
		t.Fatalf("field = %q", e.Field())
	}
	if !strings.Contains(err.Error(), "year must be at least 2000") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestStruct_SafeName(t *testing.T) {
	cases := map[string]bool{
		"ENEL_CE":       true,
		"CPFL Paulista": true,
		"../etc":        false,
		"a/b":           false,
		"..":            false,
		"tab\tname":     false,
	}
	for name, ok := range cases {
		err := Struct(inner{Year: 2023, Name: name})
		if (err == nil) != ok {
			t.Fatalf("safename(%q) err=%v, want ok=%v", name, err, ok)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[doc](strings.NewReader(`{"kind":"b","inner":{"year":2023,"name":"ACME"}}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.Inner == nil || got.Inner.Name != "ACME" {
		t.Fatalf("decoded = %+v", got)
	}

	bad := []struct {
		name, in string
		code     perr.ErrorCode
	}{
		{"empty", "  ", perr.ErrorCodeJSON},
		{"syntax", `{"kind":`, perr.ErrorCodeJSON},
		{"unknown field", `{"kind":"a","extra":1}`, perr.ErrorCodeJSON},
		{"trailing", `{"kind":"a"} {}`, perr.ErrorCodeJSON},
		{"invalid", `{"kind":"z"}`, perr.ErrorCodeValidation},
	}
	for _, c := range bad {
		t.Run(c.name, func(t *testing.T) {
			if _, err := DecodeJSON[doc](strings.NewReader(c.in)); perr.CodeOf(err) != c.code {
				t.Fatalf("code = %v, want %v (%v)", perr.CodeOf(err), c.code, err)
			}
		})
	}
}
