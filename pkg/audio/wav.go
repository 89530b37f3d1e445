package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotWAV is returned by [DecodeWAV] when the input does not carry a valid
// RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: not a valid WAV file")

// EncodeWAV wraps 16-bit PCM in a RIFF/WAVE container.
func EncodeWAV(p PCM) ([]byte, error) {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return nil, fmt.Errorf("audio: encode wav: invalid format %s", p.Format())
	}
	samples := len(p.Data) / BytesPerSample
	ints := make([]int, samples)
	for i := range samples {
		ints[i] = int(int16(binary.LittleEndian.Uint16(p.Data[i*2:])))
	}

	ws := &memWriteSeeker{}
	enc := wav.NewEncoder(ws, p.SampleRate, 16, p.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: p.Channels, SampleRate: p.SampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: encode wav: close: %w", err)
	}
	return ws.buf, nil
}

// DecodeWAV parses a RIFF/WAVE file and returns its samples as 16-bit PCM.
// 8-, 24- and 32-bit integer sources are rescaled to 16 bits.
func DecodeWAV(data []byte) (PCM, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return PCM{}, ErrNotWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return PCM{}, fmt.Errorf("audio: decode wav: missing format chunk")
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	out := make([]byte, len(buf.Data)*BytesPerSample)
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(to16(v, depth)))
	}
	return PCM{
		Data:       out,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

func to16(v, depth int) int16 {
	switch {
	case depth == 8:
		return int16((v - 128) << 8)
	case depth > 16:
		return int16(v >> (depth - 16))
	default:
		return int16(v)
	}
}

// memWriteSeeker is an in-memory [io.WriteSeeker]; the WAV encoder seeks back
// to patch chunk sizes once the data length is known.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("audio: seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("audio: seek: negative position %d", abs)
	}
	m.pos = int(abs)
	return abs, nil
}
