// Package vad turns recordings into voice-activity timelines.
//
// Two layers live here. An [Engine] is a frame-level speech detector (an
// energy gate, a neural model) surfaced as a stateful per-stream session that
// scores fixed-size frames. A [Detector] produces the ordered, non-overlapping
// speech spans of a whole recording. [FrameDetector] bridges the two: it feeds
// a recording through an Engine session frame by frame and binarises the
// resulting probabilities with onset/offset hysteresis and minimum on/off
// durations.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines.
package vad

import (
	"context"

	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/types"
)

// Detector produces the voice-activity timeline of a whole recording.
type Detector interface {
	// Detect returns speech spans in seconds, ordered by start time and
	// non-overlapping, with End > Start for every span.
	Detect(ctx context.Context, pcm audio.PCM) ([]types.VoiceSpan, error)
}

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the PCM
	// frames passed to ProcessFrame.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds.
	// ProcessFrame returns an error if the supplied frame does not match.
	FrameSizeMs int

	// SpeechThreshold is the probability above which a frame starts speech.
	// Range: [0.0, 1.0]. Typical: 0.5.
	SpeechThreshold float64

	// SilenceThreshold is the probability below which active speech ends.
	// Must be <= SpeechThreshold. Typical: 0.35.
	SilenceThreshold float64
}

// FrameBytes returns the size in bytes of one 16-bit mono frame.
func (c Config) FrameBytes() int {
	return c.SampleRate * c.FrameSizeMs / 1000 * audio.BytesPerSample
}

// SessionHandle represents an active VAD session for a single audio stream.
// Reset clears detection state without closing the session.
type SessionHandle interface {
	// ProcessFrame analyses a single frame of 16-bit little-endian mono PCM at
	// the configured SampleRate and FrameSizeMs.
	ProcessFrame(frame []byte) (VADEvent, error)

	// Reset clears all accumulated detection state.
	Reset()

	// Close releases all resources associated with the session. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions.
//
// Implementations must be safe for concurrent use: multiple goroutines may call
// NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration.
	// Returns an error if the configuration is invalid.
	NewSession(cfg Config) (SessionHandle, error)
}
