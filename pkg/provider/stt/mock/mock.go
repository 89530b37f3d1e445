// Package mock provides a test double for the stt.Transcriber interface.
//
// Transcriber returns canned text, optionally keyed by segment length, and
// records every call so tests can assert which segments were submitted.
//
//	tr := &mock.Transcriber{Text: "hello"}
//	text, _ := tr.Transcribe(ctx, pcm)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// PCM is the audio passed to Transcribe. Data is copied.
	PCM audio.PCM
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Text is returned by Transcribe when TextFunc is nil.
	Text string

	// TextFunc, when set, computes the result per call. n is the zero-based
	// call index.
	TextFunc func(n int, pcm audio.PCM) (string, error)

	// Err, if non-nil, is returned instead of Text.
	Err error

	// Calls records every invocation in order.
	Calls []TranscribeCall
}

var _ stt.Transcriber = (*Transcriber)(nil)

// Transcribe records the call and returns the configured result.
func (t *Transcriber) Transcribe(_ context.Context, pcm audio.PCM) (string, error) {
	t.mu.Lock()
	cp := pcm
	cp.Data = append([]byte(nil), pcm.Data...)
	n := len(t.Calls)
	t.Calls = append(t.Calls, TranscribeCall{PCM: cp})
	fn, text, err := t.TextFunc, t.Text, t.Err
	t.mu.Unlock()

	// fn runs unlocked so concurrent calls may block on each other.
	if fn != nil {
		return fn(n, cp)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (t *Transcriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = nil
}
