package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// NormalizeItem returns the dedup key for a service item name: case-folded
// with every non-alphanumeric rune removed. "Engine Oil & Filter" and
// "engine oil/filter" share the key "engineoilfilter".
func NormalizeItem(s string) string {
	folded := cases.Fold().String(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MatchItem returns the key used to match a service item against stored
// intervals: case-insensitive equality, surrounding whitespace ignored.
func MatchItem(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
