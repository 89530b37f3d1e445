// Package mock provides an in-memory [sink.Sink] for tests.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/sttdata/internal/sink"
	"github.com/MrWong99/sttdata/pkg/types"
)

// Emission records one Emit call.
type Emission struct {
	Entry   types.RecordingEntry
	Records []types.SegmentRecord
}

// Sink captures emissions in call order.
type Sink struct {
	mu sync.Mutex

	// EmitErr is returned by Emit when non-nil.
	EmitErr error

	// CloseErr is returned by Close when non-nil.
	CloseErr error

	emissions  []Emission
	closeCount int
}

var _ sink.Sink = (*Sink)(nil)

func (s *Sink) Emit(_ context.Context, entry types.RecordingEntry, records []types.SegmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EmitErr != nil {
		return s.EmitErr
	}
	s.emissions = append(s.emissions, Emission{Entry: entry, Records: slices.Clone(records)})
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	return s.CloseErr
}

// Emissions returns a copy of every successful Emit call.
func (s *Sink) Emissions() []Emission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.emissions)
}

// Records returns all emitted records flattened in emission order.
func (s *Sink) Records() []types.SegmentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.SegmentRecord
	for _, e := range s.emissions {
		out = append(out, e.Records...)
	}
	return out
}

// CloseCount reports how often Close was called.
func (s *Sink) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}
