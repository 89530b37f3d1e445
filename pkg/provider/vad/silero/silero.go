// Package silero implements vad.Detector with the Silero neural VAD model
// through github.com/streamer45/silero-vad-go, which runs the ONNX model via
// onnxruntime. The shared library must be discoverable at run time.
package silero

import (
	"context"
	"errors"
	"fmt"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/provider/vad"
	"github.com/MrWong99/sttdata/pkg/types"
)

// sampleRate is the rate the model is run at.
const sampleRate = 16000

var _ vad.Detector = (*Detector)(nil)

// Option configures a Detector.
type Option func(*Detector)

// WithSpeechPadMs pads every detected span on both sides.
func WithSpeechPadMs(ms int) Option {
	return func(d *Detector) { d.speechPadMs = ms }
}

// Detector runs Silero over a whole recording.
type Detector struct {
	modelPath   string
	params      vad.Params
	speechPadMs int
}

// New returns a Detector loading the ONNX model at modelPath. params.Onset
// is the model threshold, params.MinDurationOff becomes the model's minimum
// silence, and params.MinDurationOn filters the result.
func New(modelPath string, params vad.Params, opts ...Option) (*Detector, error) {
	if modelPath == "" {
		return nil, errors.New("silero: modelPath must not be empty")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("silero: invalid params: %w", err)
	}
	d := &Detector{modelPath: modelPath, params: params}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Detect implements vad.Detector. A model session is created per call since
// the underlying detector carries recurrent state.
func (d *Detector) Detect(ctx context.Context, pcm audio.PCM) ([]types.VoiceSpan, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("silero: %w", err)
	}
	if len(pcm.Data) == 0 {
		return nil, nil
	}
	mono := audio.Conform(pcm, audio.Format{SampleRate: sampleRate, Channels: 1})

	sd, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            d.modelPath,
		SampleRate:           sampleRate,
		Threshold:            float32(d.params.Onset),
		MinSilenceDurationMs: int(d.params.MinDurationOff * 1000),
		SpeechPadMs:          d.speechPadMs,
	})
	if err != nil {
		return nil, fmt.Errorf("silero: create detector: %w", err)
	}
	defer sd.Destroy()

	segments, err := sd.Detect(mono.Float32())
	if err != nil {
		return nil, fmt.Errorf("silero: detect: %w", err)
	}
	return toSpans(segments, mono.Seconds(), d.params), nil
}

// toSpans converts model segments to spans. A zero end means speech ran to
// the end of the recording.
func toSpans(segments []speech.Segment, duration float64, p vad.Params) []types.VoiceSpan {
	spans := make([]types.VoiceSpan, 0, len(segments))
	for _, seg := range segments {
		end := seg.SpeechEndAt
		if end <= 0 || end > duration {
			end = duration
		}
		start := max(seg.SpeechStartAt, 0)
		if end <= start {
			continue
		}
		if n := len(spans); n > 0 && start < spans[n-1].End {
			// Padding can make neighbours overlap.
			spans[n-1].End = max(spans[n-1].End, end)
			continue
		}
		spans = append(spans, types.VoiceSpan{Start: start, End: end})
	}
	return vad.Refine(spans, p.MinDurationOn, 0)
}
