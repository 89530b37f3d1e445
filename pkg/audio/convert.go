package audio

import (
	"fmt"
	"log/slog"
)

// Format describes the sample rate and channel count of a PCM buffer.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns a human-readable form such as "16000Hz mono".
func (f Format) String() string {
	ch := "mono"
	switch {
	case f.Channels == 2:
		ch = "stereo"
	case f.Channels > 2:
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// Conform converts p to the target format. The buffer is returned unchanged
// when it already matches. Channels are reduced before resampling so that
// multi-channel input is only resampled once.
func Conform(p PCM, target Format) PCM {
	if len(p.Data)%BytesPerSample != 0 {
		slog.Warn("audio: odd byte count in PCM data, truncating last byte",
			"bytes", len(p.Data), "format", p.Format())
		p.Data = p.Data[:len(p.Data)-1]
	}
	if p.Format() == target {
		return p
	}
	slog.Debug("audio: converting", "from", p.Format(), "to", target)

	pcm := p.Data
	channels := p.Channels

	switch {
	case channels == target.Channels:
	case target.Channels == 1 && channels == 2:
		pcm = StereoToMono(pcm)
		channels = 1
	case target.Channels == 1 && channels > 2:
		pcm = FromFloat32(Float32Mono(pcm, channels))
		channels = 1
	case target.Channels == 2 && channels == 1:
		pcm = MonoToStereo(pcm)
		channels = 2
	}

	if p.SampleRate != target.SampleRate {
		if channels == 1 {
			pcm = ResampleMono16(pcm, p.SampleRate, target.SampleRate)
		} else {
			pcm = ResampleStereo16(pcm, p.SampleRate, target.SampleRate)
		}
	}

	return PCM{Data: pcm, SampleRate: target.SampleRate, Channels: channels}
}

// MonoToStereo duplicates each mono sample into an L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		j := i * 2
		out[j], out[j+1] = pcm[i], pcm[i+1]
		out[j+2], out[j+3] = pcm[i], pcm[i+1]
	}
	return out
}

// StereoToMono averages L+R per stereo frame. Uses int32 arithmetic so the
// sum cannot overflow.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		r := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := clamp16((l + r) / 2)
		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. Invalid rates or equal rates return the input.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	return resample16(pcm, 1, srcRate, dstRate)
}

// ResampleStereo16 resamples interleaved 16-bit stereo PCM from srcRate to
// dstRate using linear interpolation per channel.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	return resample16(pcm, 2, srcRate, dstRate)
}

func resample16(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return pcm
	}
	block := channels * BytesPerSample
	srcFrames := len(pcm) / block
	if srcFrames == 0 {
		return pcm
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	sample := func(frame, ch int) int16 {
		off := frame*block + ch*BytesPerSample
		return int16(pcm[off]) | int16(pcm[off+1])<<8
	}

	out := make([]byte, dstFrames*block)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := min(idx+1, srcFrames-1)
		for ch := range channels {
			s0, s1 := sample(idx, ch), sample(next, ch)
			v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
			off := i*block + ch*BytesPerSample
			out[off] = byte(v)
			out[off+1] = byte(v >> 8)
		}
	}
	return out
}

func clamp16(v int32) int32 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}
