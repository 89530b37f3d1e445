// Package energy implements a vad.Engine that scores frames by loudness.
//
// Each frame's RMS level in dBFS is mapped onto a speech probability with a
// logistic curve centred on a configurable level. It needs no model files and
// works well on clean broadcast audio; noisy field recordings are better
// served by the silero engine.
package energy

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/provider/vad"
)

const (
	// DefaultCenterDB is the level that maps to probability 0.5.
	DefaultCenterDB = -35.0
	// DefaultSlope is the logistic steepness per dB.
	DefaultSlope = 0.5

	// floorDB is reported for digital silence.
	floorDB = -120.0
)

var (
	_ vad.Engine        = (*Engine)(nil)
	_ vad.SessionHandle = (*session)(nil)
)

var errClosed = errors.New("energy: session is closed")

// Option configures an Engine.
type Option func(*Engine)

// WithCenterDB sets the dBFS level that scores 0.5.
func WithCenterDB(db float64) Option {
	return func(e *Engine) { e.centerDB = db }
}

// WithSlope sets the logistic steepness per dB. Values <= 0 are ignored.
func WithSlope(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.slope = k
		}
	}
}

// Engine creates energy-based VAD sessions. It is stateless and safe for
// concurrent use.
type Engine struct {
	centerDB float64
	slope    float64
}

// New returns an Engine with the given options applied.
func New(opts ...Option) *Engine {
	e := &Engine{centerDB: DefaultCenterDB, slope: DefaultSlope}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("energy: invalid sample rate %d", cfg.SampleRate)
	}
	if cfg.FrameSizeMs <= 0 {
		return nil, fmt.Errorf("energy: invalid frame size %d ms", cfg.FrameSizeMs)
	}
	if cfg.SilenceThreshold > cfg.SpeechThreshold {
		return nil, fmt.Errorf("energy: silence threshold %v above speech threshold %v", cfg.SilenceThreshold, cfg.SpeechThreshold)
	}
	return &session{engine: e, cfg: cfg, frameBytes: cfg.FrameBytes()}, nil
}

// Probability maps a dBFS level onto [0, 1].
func (e *Engine) Probability(db float64) float64 {
	return 1 / (1 + math.Exp(-e.slope*(db-e.centerDB)))
}

// LevelDB returns the RMS level of 16-bit PCM in dBFS.
func LevelDB(pcm []byte) float64 {
	rms := audio.RMS(pcm)
	if rms <= 0 {
		return floorDB
	}
	return max(20*math.Log10(rms/32768), floorDB)
}

type session struct {
	engine     *Engine
	cfg        vad.Config
	frameBytes int

	mu     sync.Mutex
	active bool
	closed bool
}

func (s *session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return vad.VADEvent{}, errClosed
	}
	if len(frame) != s.frameBytes {
		return vad.VADEvent{}, fmt.Errorf("energy: frame is %d bytes, want %d", len(frame), s.frameBytes)
	}
	prob := s.engine.Probability(LevelDB(frame))
	ev, active := vad.NextEvent(s.active, prob, s.cfg.SpeechThreshold, s.cfg.SilenceThreshold)
	s.active = active
	return ev, nil
}

func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
