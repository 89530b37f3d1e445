package pipeline

import (
	"errors"
	"fmt"

	"github.com/MrWong99/sttdata/internal/transcript"
)

// Failure kinds of a recording. Match them with errors.Is on the error
// returned by [Orchestrator.Process] or logged by [Batch.Run].
var (
	// ErrFetch means the recording's audio could not be downloaded. Fatal to
	// the recording.
	ErrFetch = errors.New("pipeline: fetch failed")

	// ErrDecode means the audio could not be decoded or its voice activity
	// could not be detected. Fatal to the recording.
	ErrDecode = errors.New("pipeline: decode failed")

	// ErrTranscription marks a failed per-segment ASR call. The segment's
	// machine text becomes empty; the recording continues.
	ErrTranscription = errors.New("pipeline: transcription failed")

	// ErrCorrection marks a failed per-segment correction call. The
	// segment's corrected text is nil; the segment is still emitted.
	ErrCorrection = errors.New("pipeline: correction failed")

	// ErrAlignmentMismatch means the reference could not be cut into one line
	// per segment. Fatal to the recording.
	ErrAlignmentMismatch = transcript.ErrAlignmentMismatch

	// ErrPersist marks a failed segment upload. The segment is emitted with
	// an empty audio URL.
	ErrPersist = errors.New("pipeline: persist failed")

	// ErrSink means dataset rows could not be written. Fatal to the batch.
	ErrSink = errors.New("pipeline: sink write failed")

	// ErrCatalog means the catalog could not be read. Fatal to the batch.
	ErrCatalog = errors.New("pipeline: catalog unavailable")
)

// RecordingError reports why a recording stopped and in which state.
type RecordingError struct {
	RecordingID string
	State       State
	Err         error
}

func (e *RecordingError) Error() string {
	return fmt.Sprintf("pipeline: recording %s failed in %s: %v", e.RecordingID, e.State, e.Err)
}

func (e *RecordingError) Unwrap() error { return e.Err }
