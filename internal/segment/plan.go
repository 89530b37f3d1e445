// Package segment turns voice-activity spans into bounded-duration audio
// segments.
//
// Every emitted segment lasts between the configured lower and upper limit.
// Spans shorter than the lower limit are dropped. Spans longer than the upper
// limit are first split on silence; any silence-delimited piece that is still
// too long is cut into equal halves, quarters, eighths… until each piece fits.
//
// [Plan] is the pure chop computation. [Engine] wraps it, slices the PCM,
// assigns ordinals and hands segments to an optional [Exporter].
package segment

import (
	"errors"
	"fmt"

	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/types"
)

// SilenceSplitter locates non-silent [start, end) sample ranges inside a mono
// signal. Ranges are relative to the start of samples.
type SilenceSplitter interface {
	Split(samples []float32) [][2]int
}

var _ SilenceSplitter = audio.Splitter{}

// Chop is a planned segment in seconds relative to the start of the
// recording.
type Chop struct {
	Start float64
	End   float64
}

// Duration returns End - Start.
func (c Chop) Duration() float64 { return c.End - c.Start }

// DropReason classifies audio that the planner discards.
type DropReason string

const (
	// DropShortSpan is a voice span shorter than the lower limit.
	DropShortSpan DropReason = "short_span"

	// DropShortSplit is a silence-delimited piece of a long span that is
	// shorter than the lower limit.
	DropShortSplit DropReason = "short_split"

	// DropShortChop is a halving chop shorter than the lower limit. Only
	// reachable when upper < 2*lower.
	DropShortChop DropReason = "short_chop"

	// DropTail is the remainder left over after equal-length halving.
	DropTail DropReason = "tail"
)

// ErrInvalidSpan is returned for a span whose end does not lie after its
// start, or that starts before the previous span.
var ErrInvalidSpan = errors.New("segment: invalid voice span")

// Plan computes the chops for spans over pcm. split may be nil, in which case
// over-long spans go straight to halving.
func Plan(spans []types.VoiceSpan, bounds types.SegmentBounds, split SilenceSplitter, pcm audio.PCM) ([]Chop, error) {
	p := planner{bounds: bounds, split: split}
	return p.plan(spans, pcm)
}

// planner carries the per-call configuration of [Plan] plus an optional drop
// callback used by [Engine] for metrics.
type planner struct {
	bounds types.SegmentBounds
	split  SilenceSplitter
	onDrop func(DropReason, float64)
}

func (p planner) drop(reason DropReason, seconds float64) {
	if p.onDrop != nil {
		p.onDrop(reason, seconds)
	}
}

func (p planner) plan(spans []types.VoiceSpan, pcm audio.PCM) ([]Chop, error) {
	if err := p.bounds.Validate(); err != nil {
		return nil, err
	}
	if len(spans) > 0 && pcm.SampleRate <= 0 {
		return nil, fmt.Errorf("segment: plan: invalid sample rate %d", pcm.SampleRate)
	}

	var chops []Chop
	prevStart := 0.0
	for i, span := range spans {
		if span.End <= span.Start || span.Start < prevStart {
			return nil, fmt.Errorf("%w: #%d [%.3f, %.3f)", ErrInvalidSpan, i, span.Start, span.End)
		}
		prevStart = span.Start

		l := span.Duration()
		switch {
		case l < p.bounds.Lower:
			p.drop(DropShortSpan, l)
		case l <= p.bounds.Upper:
			chops = append(chops, Chop{Start: span.Start, End: span.End})
		default:
			chops = p.splitLong(chops, span, pcm)
		}
	}
	return chops, nil
}

// splitLong handles a span longer than the upper limit. Each silence-split
// piece is judged by the same three-way rule; pieces are never split on
// silence a second time. When the splitter yields no piece of at least the
// lower limit, the whole span is halved instead.
func (p planner) splitLong(chops []Chop, span types.VoiceSpan, pcm audio.PCM) []Chop {
	if p.split == nil {
		return p.halve(chops, span.Start, span.Duration())
	}

	sr := float64(pcm.SampleRate)
	samples := audio.Float32Mono(pcm.SliceFrames(int(span.Start*sr), int(span.End*sr)), pcm.Channels)
	ranges := p.split.Split(samples)
	usable := false
	for _, r := range ranges {
		if float64(r[1]-r[0])/sr >= p.bounds.Lower {
			usable = true
			break
		}
	}
	if !usable {
		return p.halve(chops, span.Start, span.Duration())
	}

	for _, r := range ranges {
		start := span.Start + float64(r[0])/sr
		d := float64(r[1]-r[0]) / sr
		switch {
		case d < p.bounds.Lower:
			p.drop(DropShortSplit, d)
		case d <= p.bounds.Upper:
			chops = append(chops, Chop{Start: start, End: start + d})
		default:
			chops = p.halve(chops, start, d)
		}
	}
	return chops
}

// halve cuts [start, start+d) into floor(d/chop) equal chops where chop is
// d halved until it no longer exceeds the upper limit.
func (p planner) halve(chops []Chop, start, d float64) []Chop {
	chop := HalvingLength(d, p.bounds.Upper)
	n := int(d / chop)
	if tail := d - float64(n)*chop; tail > 0 {
		p.drop(DropTail, tail)
	}
	if chop < p.bounds.Lower {
		p.drop(DropShortChop, float64(n)*chop)
		return chops
	}
	for i := range n {
		chops = append(chops, Chop{
			Start: start + chop*float64(i),
			End:   start + chop*float64(i+1),
		})
	}
	return chops
}

// HalvingLength returns d/2^k for the smallest k ≥ 1 such that the result
// does not exceed upper. upper must be positive.
func HalvingLength(d, upper float64) float64 {
	chop := d / 2
	for chop > upper {
		chop /= 2
	}
	return chop
}
