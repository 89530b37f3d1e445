package segment

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/types"
)

// Exporter persists a freshly produced segment, typically as a WAV file.
// Export failures are logged by the engine and never abort segmentation.
type Exporter interface {
	Export(ctx context.Context, recordingID string, seg types.AudioSegment, format audio.Format) error
}

// Option configures an [Engine].
type Option func(*Engine)

// WithSplitter sets the silence splitter used for over-long spans. Defaults
// to a zero-value [audio.Splitter].
func WithSplitter(s SilenceSplitter) Option {
	return func(e *Engine) { e.splitter = s }
}

// WithExporter sets the exporter that receives every produced segment.
func WithExporter(x Exporter) Option {
	return func(e *Engine) { e.exporter = x }
}

// WithDropHook registers a callback invoked for every piece of voice
// activity the planner discards, with the discarded duration in seconds.
func WithDropHook(fn func(reason DropReason, seconds float64)) Option {
	return func(e *Engine) { e.onDrop = fn }
}

// Engine converts a recording's PCM and voice spans into ordered, bounded
// [types.AudioSegment] values. It is safe for concurrent use.
type Engine struct {
	bounds   types.SegmentBounds
	splitter SilenceSplitter
	exporter Exporter
	onDrop   func(DropReason, float64)
}

// New creates an Engine with the given bounds.
func New(bounds types.SegmentBounds, opts ...Option) (*Engine, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		bounds:   bounds,
		splitter: audio.Splitter{},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Bounds returns the engine's segment bounds.
func (e *Engine) Bounds() types.SegmentBounds { return e.bounds }

// Segment plans chops for spans, then assigns ordinals 1..N in emission order
// and slices each chop's audio out of pcm into a fresh [Store]. The stored
// audio is a copy and does not alias pcm.Data.
func (e *Engine) Segment(ctx context.Context, recordingID string, pcm audio.PCM, spans []types.VoiceSpan) (*Store, error) {
	p := planner{bounds: e.bounds, split: e.splitter, onDrop: e.onDrop}
	chops, err := p.plan(spans, pcm)
	if err != nil {
		return nil, fmt.Errorf("segment: %s: %w", recordingID, err)
	}

	store := NewStore()
	for i, c := range chops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ordinal := i + 1
		startMs, endMs := Millis(c.Start), Millis(c.End)
		seg := types.AudioSegment{
			ID:      types.SegmentID(recordingID, ordinal),
			Ordinal: ordinal,
			StartMs: startMs,
			EndMs:   endMs,
			Audio:   bytes.Clone(pcm.SliceMs(startMs, endMs)),
		}
		if err := store.Put(seg); err != nil {
			return nil, fmt.Errorf("segment: %s: %w", recordingID, err)
		}

		if e.exporter != nil {
			if err := e.exporter.Export(ctx, recordingID, seg, pcm.Format()); err != nil {
				slog.Warn("segment: export failed", "segment_id", seg.ID, "err", err)
			}
		}
	}

	slog.Debug("segment: recording segmented",
		"recording_id", recordingID,
		"spans", len(spans),
		"segments", store.Len(),
	)
	return store, nil
}

// Millis converts seconds to whole milliseconds, rounding half away from
// zero.
func Millis(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}
