package transcript

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var punctuation = strings.NewReplacer(
	".", "", ",", "", "!", "", "?", "", ";", "", ":", "",
	"'", "", "\"", "", "(", "", ")", "",
	"’", "", "“", "", "”", "",
)

// Normalize lowercases text, folds accents, drops common punctuation and
// collapses whitespace. Captions spell "Beyoncé" every possible way.
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	folded = punctuation.Replace(strings.ToLower(folded))
	return strings.Join(strings.Fields(folded), " ")
}
