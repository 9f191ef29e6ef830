package service

import (
	"strings"
)

// DetectLayer picks the layer holding category: an exact name ({CAT}, {CAT}_tab, any case)
// wins over the first layer whose name starts with the category
func DetectLayer(layers []string, category string) (string, bool) {
	cat := strings.ToUpper(strings.TrimSpace(category))
	if cat == "" {
		return "", false
	}
	candidates := []string{cat, cat + "_TAB"}
	for _, want := range candidates {
		for _, l := range layers {
			if strings.ToUpper(l) == want {
				return l, true
			}
		}
	}
	for _, l := range layers {
		if strings.HasPrefix(strings.ToUpper(l), cat) {
			return l, true
		}
	}
	return "", false
}
