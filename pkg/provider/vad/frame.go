package vad

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/types"
)

// Default binarisation parameters.
const (
	DefaultOnset          = 0.5
	DefaultOffset         = 0.5
	DefaultMinDurationOn  = 2.0
	DefaultMinDurationOff = 0.0
	DefaultFrameMs        = 30
)

// ctxCheckEvery is how many frames are scored between cancellation checks.
const ctxCheckEvery = 1024

// Params controls how frame probabilities become speech spans.
type Params struct {
	// Onset is the probability a frame must exceed to start speech.
	Onset float64
	// Offset is the probability a frame must fall below to end speech.
	Offset float64
	// MinDurationOn removes speech spans shorter than this many seconds.
	MinDurationOn float64
	// MinDurationOff fills gaps between spans shorter than this many seconds.
	MinDurationOff float64
	// FrameMs is the engine frame length in milliseconds.
	FrameMs int
}

// DefaultParams returns the parameters used when none are configured.
func DefaultParams() Params {
	return Params{
		Onset:          DefaultOnset,
		Offset:         DefaultOffset,
		MinDurationOn:  DefaultMinDurationOn,
		MinDurationOff: DefaultMinDurationOff,
		FrameMs:        DefaultFrameMs,
	}
}

// Validate reports every invalid field.
func (p Params) Validate() error {
	var errs []error
	if p.Onset < 0 || p.Onset > 1 {
		errs = append(errs, fmt.Errorf("onset %v outside [0, 1]", p.Onset))
	}
	if p.Offset < 0 || p.Offset > 1 {
		errs = append(errs, fmt.Errorf("offset %v outside [0, 1]", p.Offset))
	}
	if p.MinDurationOn < 0 {
		errs = append(errs, fmt.Errorf("min_duration_on %v is negative", p.MinDurationOn))
	}
	if p.MinDurationOff < 0 {
		errs = append(errs, fmt.Errorf("min_duration_off %v is negative", p.MinDurationOff))
	}
	if p.FrameMs <= 0 {
		errs = append(errs, fmt.Errorf("frame_ms %d must be positive", p.FrameMs))
	}
	return errors.Join(errs...)
}

// FrameDetector implements [Detector] on top of a frame-level [Engine].
type FrameDetector struct {
	engine Engine
	params Params
}

var _ Detector = (*FrameDetector)(nil)

// NewFrameDetector returns a FrameDetector. It fails when params are invalid.
func NewFrameDetector(engine Engine, params Params) (*FrameDetector, error) {
	if engine == nil {
		return nil, errors.New("vad: engine must not be nil")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("vad: invalid params: %w", err)
	}
	return &FrameDetector{engine: engine, params: params}, nil
}

// Params returns the binarisation parameters.
func (d *FrameDetector) Params() Params { return d.params }

// Detect downmixes pcm to mono, scores it frame by frame and binarises the
// scores. A trailing partial frame is zero-padded.
func (d *FrameDetector) Detect(ctx context.Context, pcm audio.PCM) ([]types.VoiceSpan, error) {
	if pcm.SampleRate <= 0 {
		return nil, fmt.Errorf("vad: invalid sample rate %d", pcm.SampleRate)
	}
	if len(pcm.Data) == 0 {
		return nil, nil
	}
	mono := audio.Conform(pcm, audio.Format{SampleRate: pcm.SampleRate, Channels: 1})

	cfg := Config{
		SampleRate:       mono.SampleRate,
		FrameSizeMs:      d.params.FrameMs,
		SpeechThreshold:  d.params.Onset,
		SilenceThreshold: d.params.Offset,
	}
	frameBytes := cfg.FrameBytes()
	if frameBytes <= 0 {
		return nil, fmt.Errorf("vad: frame of %d ms at %d Hz holds no samples", cfg.FrameSizeMs, cfg.SampleRate)
	}

	sess, err := d.engine.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("vad: new session: %w", err)
	}
	defer sess.Close()

	n := (len(mono.Data) + frameBytes - 1) / frameBytes
	probs := make([]float64, 0, n)
	frame := make([]byte, frameBytes)
	for i := range n {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("vad: %w", err)
			}
		}
		chunk := mono.Data[i*frameBytes : min((i+1)*frameBytes, len(mono.Data))]
		if len(chunk) < frameBytes {
			clear(frame)
			copy(frame, chunk)
			chunk = frame
		}
		ev, err := sess.ProcessFrame(chunk)
		if err != nil {
			return nil, fmt.Errorf("vad: process frame %d: %w", i, err)
		}
		probs = append(probs, ev.Probability)
	}

	return Binarize(probs, float64(d.params.FrameMs)/1000, mono.Seconds(), d.params), nil
}

// Binarize converts per-frame speech probabilities into speech spans.
//
// Speech starts at the first frame whose probability exceeds Onset and ends
// at the first later frame whose probability falls below Offset. Gaps shorter
// than MinDurationOff are then filled, and spans shorter than MinDurationOn
// are removed. Span ends are clipped to duration.
func Binarize(probs []float64, frameSec, duration float64, p Params) []types.VoiceSpan {
	var (
		spans  []types.VoiceSpan
		active bool
		start  float64
	)
	for i, prob := range probs {
		t := float64(i) * frameSec
		if t >= duration {
			break
		}
		if active {
			if prob < p.Offset {
				spans = append(spans, types.VoiceSpan{Start: start, End: t})
				active = false
			}
			continue
		}
		if prob > p.Onset {
			start = t
			active = true
		}
	}
	if active && duration > start {
		spans = append(spans, types.VoiceSpan{Start: start, End: duration})
	}

	return Refine(spans, p.MinDurationOn, p.MinDurationOff)
}

// Refine fills gaps shorter than minOff seconds, then removes spans shorter
// than minOn seconds. spans must be ordered; the slice is reused.
func Refine(spans []types.VoiceSpan, minOn, minOff float64) []types.VoiceSpan {
	if minOff > 0 && len(spans) > 1 {
		merged := spans[:1]
		for _, s := range spans[1:] {
			last := &merged[len(merged)-1]
			if s.Start-last.End < minOff {
				last.End = max(last.End, s.End)
				continue
			}
			merged = append(merged, s)
		}
		spans = merged
	}

	if minOn > 0 {
		kept := spans[:0]
		for _, s := range spans {
			if s.End-s.Start >= minOn {
				kept = append(kept, s)
			}
		}
		spans = kept
	}
	return spans
}
