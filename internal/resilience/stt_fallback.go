package resilience

import (
	"context"

	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/provider/stt"
)

// STTFallback is an [stt.Transcriber] that fails over between backends.
type STTFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

var _ stt.Transcriber = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend, tried after the earlier ones.
func (f *STTFallback) AddFallback(name string, t stt.Transcriber) {
	f.group.AddFallback(name, t)
}

// Group exposes the underlying group, e.g. to inspect breakers.
func (f *STTFallback) Group() *FallbackGroup[stt.Transcriber] { return f.group }

// Transcribe sends pcm to the first healthy backend. [stt.ErrEmptyAudio] is
// returned immediately since no backend can do better.
func (f *STTFallback) Transcribe(ctx context.Context, pcm audio.PCM) (string, error) {
	if len(pcm.Data) == 0 {
		return "", stt.ErrEmptyAudio
	}
	return ExecuteWithResult(ctx, f.group, func(t stt.Transcriber) (string, error) {
		return t.Transcribe(ctx, pcm)
	})
}
