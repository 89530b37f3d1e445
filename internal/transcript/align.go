package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/sttdata/internal/transcript/transfer"
)

// LineDelimiter separates per-segment lines of a machine transcript.
const LineDelimiter = "\n"

// ErrAlignmentMismatch is returned when the aligned reference does not have
// one line per machine transcript line.
var ErrAlignmentMismatch = errors.New("transcript: alignment line count mismatch")

// Aligner cuts a reference text into the same lines as a machine transcript.
type Aligner struct {
	transferer transfer.Transferer
}

// NewAligner returns an Aligner backed by t.
func NewAligner(t transfer.Transferer) *Aligner {
	return &Aligner{transferer: t}
}

// Align returns one reference line per line of machineTranscript. Newlines
// inside reference are treated as spaces.
func (a *Aligner) Align(ctx context.Context, machineTranscript, reference string) ([]string, error) {
	flat := strings.ReplaceAll(reference, LineDelimiter, " ")
	out, err := a.transferer.Transfer(ctx, machineTranscript, LineDelimiter, flat)
	if err != nil {
		return nil, fmt.Errorf("transcript: align: %w", err)
	}
	lines := strings.Split(out, LineDelimiter)
	if want := CountLines(machineTranscript); len(lines) != want {
		return nil, fmt.Errorf("%w: got %d reference lines for %d transcript lines", ErrAlignmentMismatch, len(lines), want)
	}
	return lines, nil
}

// CountLines returns the number of delimiter-separated lines in s. The empty
// string counts as one empty line.
func CountLines(s string) int {
	return strings.Count(s, LineDelimiter) + 1
}

// JoinLines builds a machine transcript from per-segment texts.
func JoinLines(lines []string) string {
	return strings.Join(lines, LineDelimiter)
}
