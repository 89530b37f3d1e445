package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// Decoder turns an encoded audio file into PCM in the decoder's target
// format. Implementations must be safe for concurrent use.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (PCM, error)
}

// ErrUnsupported is returned by a decoder that cannot handle the input's
// container. [ChainDecoder] moves on to the next decoder when it sees it.
var ErrUnsupported = errors.New("audio: unsupported container")

// Compile-time interface assertions.
var (
	_ Decoder = (*WAVDecoder)(nil)
	_ Decoder = (*FFmpegDecoder)(nil)
	_ Decoder = ChainDecoder(nil)
)

// WAVDecoder decodes RIFF/WAVE input natively and conforms it to Target.
type WAVDecoder struct {
	Target Format
}

// Decode implements [Decoder]. Non-WAV input yields [ErrUnsupported].
func (d *WAVDecoder) Decode(_ context.Context, data []byte) (PCM, error) {
	pcm, err := DecodeWAV(data)
	if errors.Is(err, ErrNotWAV) {
		return PCM{}, ErrUnsupported
	}
	if err != nil {
		return PCM{}, err
	}
	return Conform(pcm, d.Target), nil
}

// FFmpegDecoder pipes arbitrary media through an ffmpeg binary and reads raw
// 16-bit PCM back from stdout.
type FFmpegDecoder struct {
	// Binary is the ffmpeg executable. Defaults to "ffmpeg" on $PATH.
	Binary string

	Target Format
}

// Decode implements [Decoder].
func (d *FFmpegDecoder) Decode(ctx context.Context, data []byte) (PCM, error) {
	if len(data) == 0 {
		return PCM{}, errors.New("audio: ffmpeg decode: empty input")
	}
	bin := d.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-ac", strconv.Itoa(d.Target.Channels),
		"-ar", strconv.Itoa(d.Target.SampleRate),
		"-f", "s16le",
		"-c:a", "pcm_s16le",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, bin, args...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return PCM{}, fmt.Errorf("audio: ffmpeg decode: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	slog.Debug("audio: ffmpeg decoded", "in_bytes", len(data), "out_bytes", stdout.Len(), "format", d.Target)
	return PCM{
		Data:       stdout.Bytes(),
		SampleRate: d.Target.SampleRate,
		Channels:   d.Target.Channels,
	}, nil
}

// ChainDecoder tries each decoder in order and returns the first result that
// is not [ErrUnsupported].
type ChainDecoder []Decoder

// Decode implements [Decoder].
func (c ChainDecoder) Decode(ctx context.Context, data []byte) (PCM, error) {
	for _, d := range c {
		pcm, err := d.Decode(ctx, data)
		if errors.Is(err, ErrUnsupported) {
			continue
		}
		return pcm, err
	}
	return PCM{}, ErrUnsupported
}
