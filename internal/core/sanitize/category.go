package sanitize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// pool of fold chains; a transform.Transformer is not safe for concurrent use
var foldPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKD,
			runes.Remove(runes.In(unicode.Mn)), // strip accents
			width.Fold,
			cases.Upper(language.Und),
		)
	},
}

// Fold returns the accent- and case-insensitive key of s with spaces, dots, dashes and
// underscores removed, "Trifásico " and "TRIFASICO" share a key
func Fold(s string) string {
	s = Text(s)
	if s == "" {
		return ""
	}
	tr := foldPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	foldPool.Put(tr)
	if err != nil {
		out = strings.ToUpper(s)
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '.':
			return -1
		}
		return r
	}, out)
}

// canon maps folded keys to canonical spellings
type canon map[string]string

func (c canon) lookup(s string) (string, bool) {
	v, ok := c[Fold(s)]
	return v, ok
}

var voltageGroups = canon{
	"MT": "MT3",
}

var tariffNames = canon{
	"AZUL":         "Azul",
	"VERDE":        "Verde",
	"BRANCA":       "Branca",
	"CONVENCIONAL": "Convencional",
}

var systemTypes = canon{
	"MONOFASICO": "Monofásico",
	"BIFASICO":   "Bifásico",
	"TRIFASICO":  "Trifásico",
}

var situations = canon{
	"AT":        "ATIVA",
	"ATIVA":     "ATIVA",
	"ATIVO":     "ATIVA",
	"CO":        "CORTADA",
	"CORTADA":   "CORTADA",
	"IN":        "INATIVA",
	"INATIVA":   "INATIVA",
	"DS":        "DESLIGADA",
	"DESLIGADA": "DESLIGADA",
}

var classes = canon{
	"RE":  "RESIDENCIAL",
	"RES": "RESIDENCIAL",
	"CPR": "COMERCIAL",
	"COM": "COMERCIAL",
	"IND": "INDUSTRIAL",
	"IP":  "ILUMINAÇÃO_PÚBLICA",
	"RU":  "RURAL",
	"RUR": "RURAL",
	"PP":  "PODER_PÚBLICO",
	"SP":  "SERVIÇO_PÚBLICO",
	"CPP": "CONSUMO_PRÓPRIO",
}

// VoltageGroup canonicalizes a voltage group code ("MT" is "MT3"); unknown codes are upper-cased
func VoltageGroup(s string) string {
	if v, ok := voltageGroups.lookup(s); ok {
		return v
	}
	return Identifier(s)
}

// TariffMode canonicalizes a tariff modality: subgroup codes keep their class ("B2Ru" is "B2")
// and named modalities are title-cased ("azul" is "Azul")
func TariffMode(s string) string {
	if v, ok := tariffNames.lookup(s); ok {
		return v
	}
	key := Fold(s)
	if len(key) >= 2 && (key[0] == 'A' || key[0] == 'B') && key[1] >= '0' && key[1] <= '9' {
		end := 2
		for end < len(key) && key[end] >= '0' && key[end] <= '9' {
			end++
		}
		// A3a is a subgroup of its own
		if key[:end] == "A3" && end < len(key) && key[end] == 'A' {
			end++
		}
		return key[:end]
	}
	return Text(s)
}

// SystemType restores the accented phase name ("TRIFASICO" is "Trifásico")
func SystemType(s string) string {
	if v, ok := systemTypes.lookup(s); ok {
		return v
	}
	return Text(s)
}

// Situation expands activity codes ("AT" is "ATIVA", "CO" is "CORTADA")
func Situation(s string) string {
	if v, ok := situations.lookup(s); ok {
		return v
	}
	return Identifier(s)
}

// Class expands consumer class codes ("RE" is "RESIDENCIAL", "IP" is "ILUMINAÇÃO_PÚBLICA")
func Class(s string) string {
	if v, ok := classes.lookup(s); ok {
		return v
	}
	return Identifier(s)
}

// dirtyMarkers are garbage values a broken export writes into entire columns
var dirtyMarkers = []string{"YEL", "106022"}

// DirtySentinel reports whether s carries one of the garbage markers
func DirtySentinel(s string) bool {
	for _, m := range dirtyMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
