package segment_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/sttdata/internal/segment"
	"github.com/MrWong99/sttdata/pkg/types"
)

func TestStore(t *testing.T) {
	t.Parallel()

	s := segment.NewStore()
	ids := []string{"r_0001", "r_0002", "r_0003"}
	for i, id := range ids {
		if err := s.Put(types.AudioSegment{ID: id, Ordinal: i + 1}); err != nil {
			t.Fatalf("Put(%s): %v", id, err)
		}
	}

	if got := s.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
	if got := s.IDs(); !slices.Equal(got, ids) {
		t.Errorf("IDs() = %v, want %v", got, ids)
	}
	seg, ok := s.Get("r_0002")
	if !ok || seg.Ordinal != 2 {
		t.Errorf("Get(r_0002) = %+v, %v", seg, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) reported ok")
	}

	err := s.Put(types.AudioSegment{ID: "r_0002"})
	if !errors.Is(err, segment.ErrDuplicateSegment) {
		t.Errorf("duplicate Put err = %v, want ErrDuplicateSegment", err)
	}
	if got := s.Len(); got != 3 {
		t.Errorf("Len() after duplicate = %d, want 3", got)
	}

	var iterated []string
	for id, seg := range s.All() {
		if id != seg.ID {
			t.Errorf("All() yielded key %q for segment %q", id, seg.ID)
		}
		iterated = append(iterated, id)
	}
	if !slices.Equal(iterated, ids) {
		t.Errorf("All() order = %v, want %v", iterated, ids)
	}

	// Early break stops iteration.
	n := 0
	for range s.All() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("break after first yielded %d items", n)
	}
}
