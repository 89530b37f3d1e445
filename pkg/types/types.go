// Package types defines the shared data model used across all sttdata packages.
//
// These types are the lingua franca between the segmentation engine, the
// transcript validation stages, the providers and the pipeline orchestrator.
// Each package keeps its own domain types; cross-cutting records live here to
// avoid circular imports.
package types

import (
	"errors"
	"fmt"
)

// VoiceSpan is a half-open interval [Start, End) in seconds flagged as speech
// by a voice activity detector. Spans produced by a detector are ordered by
// Start and do not overlap.
type VoiceSpan struct {
	Start float64
	End   float64
}

// Duration returns End - Start in seconds.
func (s VoiceSpan) Duration() float64 {
	return s.End - s.Start
}

// SegmentBounds holds the hard minimum and maximum duration of an emitted
// audio segment, both in seconds.
type SegmentBounds struct {
	// Lower is the minimum segment duration. Shorter voice activity is dropped.
	Lower float64

	// Upper is the maximum segment duration. Longer spans are subdivided.
	Upper float64
}

// Validate reports an error unless 0 < Lower < Upper.
func (b SegmentBounds) Validate() error {
	if b.Lower <= 0 {
		return errors.New("segment bounds: lower limit must be positive")
	}
	if b.Upper <= b.Lower {
		return fmt.Errorf("segment bounds: upper limit %.3f must exceed lower limit %.3f", b.Upper, b.Lower)
	}
	return nil
}

// Contains reports whether a duration d (seconds) lies within the bounds,
// both ends inclusive.
func (b SegmentBounds) Contains(d float64) bool {
	return b.Lower <= d && d <= b.Upper
}

// AudioSegment is one bounded slice of a recording. It is created by the
// segmentation engine and never modified afterwards.
type AudioSegment struct {
	// ID is "{recording_id}_{ordinal:04}".
	ID string

	// Ordinal is the 1-based, gapless emission index within the recording.
	Ordinal int

	// StartMs and EndMs are the segment boundaries in milliseconds relative
	// to the start of the recording.
	StartMs int64
	EndMs   int64

	// Audio is 16-bit signed little-endian PCM at the recording's sample
	// rate and channel count.
	Audio []byte
}

// DurationSeconds returns the segment length derived from its millisecond
// boundaries.
func (s AudioSegment) DurationSeconds() float64 {
	return float64(s.EndMs-s.StartMs) / 1000
}

// SegmentID formats the identifier of the ordinal-th segment of a recording.
func SegmentID(recordingID string, ordinal int) string {
	return fmt.Sprintf("%s_%04d", recordingID, ordinal)
}

// SegmentRecord is the unit written to the final dataset, one per accepted
// segment. Created once after transcription and correction.
type SegmentRecord struct {
	SegmentID string

	// InferenceText is the machine transcript of the segment. Empty when
	// transcription failed.
	InferenceText string

	// ReferenceText is the aligned line of the human reference.
	ReferenceText string

	// CorrectedText is the corrector's output. Nil when the correction call
	// failed.
	CorrectedText *string

	// CorrectionMode names the route the segment took ("reference-guided"
	// or "reference-free").
	CorrectionMode string

	// ErrorRate is the per-segment error rate that decided the route.
	ErrorRate float64

	StartMs int64
	EndMs   int64

	// AudioURL is the public location of the uploaded segment audio. Empty
	// when no object store is configured or the upload failed.
	AudioURL string
}

// DurationSeconds returns the record's segment length in seconds.
func (r SegmentRecord) DurationSeconds() float64 {
	return float64(r.EndMs-r.StartMs) / 1000
}

// RecordingEntry is one catalog row: a full recording plus its reference
// transcript and descriptive metadata. It is read-only input to the pipeline.
type RecordingEntry struct {
	SrNo           int
	ID             string
	AudioURL       string
	ReferenceText  string
	SpeakerName    string
	SpeakerGender  string
	NewsChannel    string
	PublishingYear string
}
