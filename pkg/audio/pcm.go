// Package audio holds the PCM buffer type and the audio plumbing used by the
// segmentation pipeline: WAV encode/decode, sample-rate and channel
// conversion, energy-based silence splitting and container decoding.
//
// All PCM handled by this package is 16-bit signed little-endian. Samples of
// multi-channel audio are interleaved.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// BytesPerSample is fixed at 2 for 16-bit PCM.
const BytesPerSample = 2

// PCM is a decoded, uncompressed audio buffer.
type PCM struct {
	// Data holds interleaved 16-bit signed little-endian samples.
	Data []byte

	// SampleRate in Hz (e.g. 16000).
	SampleRate int

	// Channels is the number of interleaved channels (1 for mono).
	Channels int
}

// Format returns the buffer's sample rate and channel count.
func (p PCM) Format() Format {
	return Format{SampleRate: p.SampleRate, Channels: p.Channels}
}

// Frames returns the number of sample frames (one sample per channel).
func (p PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Data) / (BytesPerSample * p.Channels)
}

// Seconds returns the buffer duration in seconds.
func (p PCM) Seconds() float64 {
	if p.SampleRate <= 0 {
		return 0
	}
	return float64(p.Frames()) / float64(p.SampleRate)
}

// Duration returns the buffer duration as a [time.Duration].
func (p PCM) Duration() time.Duration {
	return time.Duration(p.Seconds() * float64(time.Second))
}

// SliceMs returns the bytes covering [startMs, endMs). Bounds are clamped to
// the buffer; an empty or inverted range returns nil. The returned slice
// shares memory with p.Data.
func (p PCM) SliceMs(startMs, endMs int64) []byte {
	return p.sliceFrames(p.msToFrame(startMs), p.msToFrame(endMs))
}

// SliceFrames returns the bytes covering sample frames [start, end), clamped
// to the buffer.
func (p PCM) SliceFrames(start, end int) []byte {
	return p.sliceFrames(start, end)
}

func (p PCM) msToFrame(ms int64) int {
	return int(ms * int64(p.SampleRate) / 1000)
}

func (p PCM) sliceFrames(start, end int) []byte {
	n := p.Frames()
	start = max(start, 0)
	end = min(end, n)
	if start >= end {
		return nil
	}
	block := BytesPerSample * p.Channels
	return p.Data[start*block : end*block]
}

// Float32 down-mixes the buffer to mono and returns float32 samples
// normalised to [-1.0, 1.0].
func (p PCM) Float32() []float32 {
	return Float32Mono(p.Data, p.Channels)
}

// Float32Mono converts 16-bit PCM to mono float32 samples in [-1.0, 1.0] by
// averaging all channels per frame. A trailing partial frame is ignored.
func Float32Mono(pcm []byte, channels int) []float32 {
	channels = max(channels, 1)
	frames := len(pcm) / (BytesPerSample * channels)
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * BytesPerSample
			sample := int16(binary.LittleEndian.Uint16(pcm[idx : idx+2]))
			sum += float32(sample) / 32768.0
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// FromFloat32 converts mono float32 samples in [-1.0, 1.0] to 16-bit PCM,
// clamping out-of-range values.
func FromFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		v := math.Round(float64(s) * 32767)
		v = math.Max(-32768, math.Min(32767, v))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// RMS returns the root-mean-square energy of 16-bit PCM in sample units
// (0–32767). Returns 0 for buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
