// Package stt defines the Transcriber interface for speech-to-text backends.
//
// A transcriber takes one bounded audio segment (16-bit little-endian PCM,
// normally 16 kHz mono) and returns its text. Segments are short by
// construction, so every backend works in batch mode: the whole segment is
// submitted at once and a single string comes back.
//
// Implementations must be safe for concurrent use; the pipeline transcribes
// several segments of one recording in parallel.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/sttdata/pkg/audio"
)

// ErrEmptyAudio is returned when a segment carries no samples.
var ErrEmptyAudio = errors.New("stt: empty audio")

// Transcriber is the abstraction over any speech-to-text backend.
type Transcriber interface {
	// Transcribe returns the recognised text of pcm. An empty string with a
	// nil error means the backend heard nothing.
	Transcribe(ctx context.Context, pcm audio.PCM) (string, error)
}

// TranscriberFunc adapts a plain function to the Transcriber interface.
type TranscriberFunc func(ctx context.Context, pcm audio.PCM) (string, error)

// Transcribe implements Transcriber.
func (f TranscriberFunc) Transcribe(ctx context.Context, pcm audio.PCM) (string, error) {
	return f(ctx, pcm)
}

var _ Transcriber = TranscriberFunc(nil)
