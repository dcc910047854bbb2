package checkin

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims name and collapses interior whitespace runs to one space.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// MatchKey is the comparison key used to resolve a decoded payload against
// roster names. Underscores count as spaces, so a roster name containing "_"
// still matches its own (lossy) payload.
func MatchKey(name string) string {
	name = strings.ReplaceAll(name, "_", " ")
	name = NormalizeName(name)
	name = norm.NFC.String(name)
	return cases.Fold().String(name)
}
