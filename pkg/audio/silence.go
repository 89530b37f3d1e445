package audio

import "math"

// Defaults for [Splitter]. They match the conventional short-time energy
// analysis window used for 16 kHz speech.
const (
	DefaultTopDB       = 30.0
	DefaultFrameLength = 2048
	DefaultHopLength   = 512
)

// amin floors power values before the log so silence does not produce -Inf.
const amin = 1e-10

// Splitter locates non-silent intervals in a mono signal. The zero value is
// usable and applies the package defaults.
type Splitter struct {
	// TopDB is the threshold in decibels below the loudest frame under which
	// a frame is considered silent.
	TopDB float64

	// FrameLength is the analysis window in samples.
	FrameLength int

	// HopLength is the number of samples between consecutive frames.
	HopLength int
}

// Split returns non-silent [start, end) sample ranges of samples using the
// splitter's parameters.
func (s Splitter) Split(samples []float32) [][2]int {
	topDB := s.TopDB
	if topDB <= 0 {
		topDB = DefaultTopDB
	}
	frameLength := s.FrameLength
	if frameLength <= 0 {
		frameLength = DefaultFrameLength
	}
	hop := s.HopLength
	if hop <= 0 {
		hop = DefaultHopLength
	}
	return Split(samples, topDB, frameLength, hop)
}

// Split returns the [start, end) sample ranges of samples whose short-time
// energy lies within topDB decibels of the loudest frame.
//
// Frames are centred: the signal is zero-padded by frameLength/2 on each side
// and frame t covers padded samples [t*hop, t*hop+frameLength). The frame
// count is 1 + len(samples)/hop. Interval edges are converted back to sample
// indices as frame*hop and clipped to len(samples). A signal with no energy at
// all is reported as a single non-silent interval because every frame is
// exactly as loud as the loudest one.
func Split(samples []float32, topDB float64, frameLength, hop int) [][2]int {
	if len(samples) == 0 || frameLength <= 0 || hop <= 0 {
		return nil
	}

	mse := frameMeanSquare(samples, frameLength, hop)

	ref := 0.0
	for _, v := range mse {
		ref = math.Max(ref, v)
	}
	refDB := 10 * math.Log10(math.Max(amin, ref))

	nonSilent := make([]bool, len(mse))
	for i, v := range mse {
		db := 10*math.Log10(math.Max(amin, v)) - refDB
		nonSilent[i] = db > -topDB
	}

	var edges []int
	if nonSilent[0] {
		edges = append(edges, 0)
	}
	for i := 1; i < len(nonSilent); i++ {
		if nonSilent[i] != nonSilent[i-1] {
			edges = append(edges, i)
		}
	}
	if nonSilent[len(nonSilent)-1] {
		edges = append(edges, len(nonSilent))
	}

	out := make([][2]int, 0, len(edges)/2)
	for i := 0; i+1 < len(edges); i += 2 {
		start := min(edges[i]*hop, len(samples))
		end := min(edges[i+1]*hop, len(samples))
		out = append(out, [2]int{start, end})
	}
	return out
}

// frameMeanSquare computes the mean power of each centred analysis frame.
func frameMeanSquare(samples []float32, frameLength, hop int) []float64 {
	pad := frameLength / 2
	n := 1 + len(samples)/hop

	// Prefix sums of squared samples make every frame O(1).
	prefix := make([]float64, len(samples)+1)
	for i, s := range samples {
		prefix[i+1] = prefix[i] + float64(s)*float64(s)
	}

	out := make([]float64, n)
	for t := range n {
		lo := t*hop - pad
		hi := lo + frameLength
		lo = max(lo, 0)
		hi = min(hi, len(samples))
		if hi > lo {
			out[t] = (prefix[hi] - prefix[lo]) / float64(frameLength)
		}
	}
	return out
}
