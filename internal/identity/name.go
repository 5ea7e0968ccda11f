// Package identity canonicalizes the free-form patient names and phones found
// in booking titles into the comparison keys used to merge patients.
package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Name holds both forms produced from one raw name.
type Name struct {
	Display string // "Juan Pérez"
	Key     string // "juan perez"
}

// NormalizeName trims non-alphanumeric edges, collapses whitespace and
// title-cases each token for display. The comparison key is the display form
// without diacritics, lower-cased.
func NormalizeName(raw string) Name {
	trimmed := strings.TrimFunc(raw, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := strings.Fields(trimmed)
	for i, tok := range tokens {
		tokens[i] = titleToken(tok)
	}
	display := strings.Join(tokens, " ")
	return Name{Display: display, Key: NameKey(display)}
}

// NameKey derives the comparison form of an already-normalized display name.
func NameKey(display string) string {
	return strings.ToLower(StripDiacritics(display))
}

// StripDiacritics removes combining marks ("Gómez" -> "Gomez").
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func titleToken(tok string) string {
	rs := []rune(strings.ToLower(tok))
	if len(rs) == 0 {
		return ""
	}
	rs[0] = unicode.ToUpper(rs[0])
	return string(rs)
}
