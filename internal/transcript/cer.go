package transcript

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// ErrorRate returns the character error rate of prediction against reference:
// the rune-level Levenshtein distance divided by the reference length, capped
// at 1.
//
// Both inputs are trimmed and have whitespace runs collapsed to one space
// first. An empty reference yields 1, as does any failure inside the distance
// computation.
func ErrorRate(reference, prediction string) (rate float64) {
	ref := collapseSpaces(reference)
	pred := collapseSpaces(prediction)

	n := utf8.RuneCountInString(ref)
	if n == 0 {
		return 1
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("transcript: error rate computation failed", "panic", r)
			rate = 1
		}
	}()

	dist := matchr.Levenshtein(ref, pred)
	return min(float64(dist)/float64(n), 1)
}

// collapseSpaces trims s and replaces every whitespace run with one space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
