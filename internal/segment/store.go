package segment

import (
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/MrWong99/sttdata/pkg/types"
)

// ErrDuplicateSegment is returned by [Store.Put] for an ID already present.
var ErrDuplicateSegment = errors.New("segment: duplicate segment id")

// Store holds the segments of one recording keyed by ID, preserving insertion
// order. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]types.AudioSegment
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{byID: make(map[string]types.AudioSegment)}
}

// Put appends seg. Segments are immutable once stored, so a second Put with
// the same ID is rejected.
func (s *Store) Put(seg types.AudioSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[seg.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSegment, seg.ID)
	}
	s.byID[seg.ID] = seg
	s.order = append(s.order, seg.ID)
	return nil
}

// Get returns the segment with the given ID.
func (s *Store) Get(id string) (types.AudioSegment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seg, ok := s.byID[id]
	return seg, ok
}

// Len returns the number of stored segments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// IDs returns segment IDs in insertion order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Segments returns all segments in insertion order.
func (s *Store) Segments() []types.AudioSegment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.AudioSegment, len(s.order))
	for i, id := range s.order {
		out[i] = s.byID[id]
	}
	return out
}

// All iterates over (id, segment) pairs in insertion order. The iteration
// works on a snapshot taken when it starts.
func (s *Store) All() iter.Seq2[string, types.AudioSegment] {
	return func(yield func(string, types.AudioSegment) bool) {
		for _, seg := range s.Segments() {
			if !yield(seg.ID, seg) {
				return
			}
		}
	}
}
