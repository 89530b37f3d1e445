// Package mock provides a test double for the transcript.Corrector interface.
//
// Corrector returns canned text per mode and records every call so tests can
// assert which route a segment took and what was passed along.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/sttdata/internal/transcript"
)

// Call records a single correction request.
type Call struct {
	Mode      transcript.Mode
	Inference string
	Reference string
}

// Corrector is a mock implementation of transcript.Corrector.
type Corrector struct {
	mu sync.Mutex

	// GuidedText is returned by CorrectWithReference. When empty, the
	// reference is echoed back.
	GuidedText string

	// FreeText is returned by CorrectFree. When empty, the inference is
	// echoed back.
	FreeText string

	// GuidedErr and FreeErr, if non-nil, are returned instead of text.
	GuidedErr error
	FreeErr   error

	// Calls records every invocation in order.
	Calls []Call
}

var _ transcript.Corrector = (*Corrector)(nil)

// CorrectWithReference implements transcript.Corrector.
func (c *Corrector) CorrectWithReference(_ context.Context, inference, reference string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, Call{Mode: transcript.ModeReferenceGuided, Inference: inference, Reference: reference})
	if c.GuidedErr != nil {
		return "", c.GuidedErr
	}
	if c.GuidedText != "" {
		return c.GuidedText, nil
	}
	return reference, nil
}

// CorrectFree implements transcript.Corrector.
func (c *Corrector) CorrectFree(_ context.Context, inference string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, Call{Mode: transcript.ModeReferenceFree, Inference: inference})
	if c.FreeErr != nil {
		return "", c.FreeErr
	}
	if c.FreeText != "" {
		return c.FreeText, nil
	}
	return inference, nil
}

// CallsSnapshot returns a copy of the recorded calls.
func (c *Corrector) CallsSnapshot() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.Calls...)
}

// Reset clears all recorded calls.
func (c *Corrector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = nil
}
