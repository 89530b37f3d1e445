package transcript

import "strings"

var (
	referenceCleaner = strings.NewReplacer("“", "", "”", "", "‘", "", "’", "", "\n", "")
	inferenceCleaner = strings.NewReplacer("\n", "")
)

// NormalizeReference removes curly quotes and newlines from human reference
// text.
func NormalizeReference(s string) string {
	return referenceCleaner.Replace(s)
}

// NormalizeInference removes the newlines that separate per-segment lines of a
// concatenated machine transcript.
func NormalizeInference(s string) string {
	return inferenceCleaner.Replace(s)
}
