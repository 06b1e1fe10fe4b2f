// Package transform canonicalizes values read from heterogeneous sources so
// they can be joined.
package transform

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeKey maps a municipality name to its join key: NFC composed,
// lowercased, leading and trailing whitespace removed. NormalizeKey is
// idempotent.
func NormalizeKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// cases.Caser keeps state and must not be shared between goroutines.
	s = cases.Lower(language.Und).String(norm.NFC.String(s))
	return strings.TrimSpace(norm.NFC.String(s))
}

// NormalizeKeys applies NormalizeKey to every element of keys in place and
// returns it.
func NormalizeKeys(keys []string) []string {
	for i, k := range keys {
		keys[i] = NormalizeKey(k)
	}
	return keys
}
