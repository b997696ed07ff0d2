package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// countySuffixes are the county-equivalent designations users may omit
var countySuffixes = []string{" county", " parish", " borough"}

// foldName reduces a place name to a matching key: diacritics stripped,
// case folded and whitespace collapsed. "Doña Ana  County" and
// "dona ana county" share a key.
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}

// countyKey folds a county name and drops a trailing designation
func countyKey(s string) string {
	key := foldName(s)
	for _, suffix := range countySuffixes {
		if trimmed, ok := strings.CutSuffix(key, suffix); ok && trimmed != "" {
			return trimmed
		}
	}
	return key
}
