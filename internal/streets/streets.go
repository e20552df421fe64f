// Package streets canonicalizes raw street and locality strings so
// lookups and comparisons are stable across address sources. The same
// normalization must be applied to both sides of every street-name
// comparison.
package streets

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var upper = cases.Upper(language.Und)

// Normalize trims surrounding whitespace, collapses internal runs of
// whitespace to a single space, and uppercases. Total function: empty
// input yields an empty string.
func Normalize(s string) string {
	return upper.String(strings.Join(strings.Fields(s), " "))
}

// HouseKey builds the normalized "NUMBER STREET" string used as the
// deduplication identity across address sources.
func HouseKey(houseNumber, street string) string {
	return Normalize(houseNumber + " " + street)
}
