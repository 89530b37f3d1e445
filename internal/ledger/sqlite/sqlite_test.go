package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/MrWong99/sttdata/internal/ledger"
	"github.com/MrWong99/sttdata/internal/ledger/sqlite"
)

func open(t *testing.T) *sqlite.Ledger {
	t.Helper()
	l, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedger_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := open(t)

	if err := l.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := l.Begin(ctx, "run-1", "RFA_001", 1, "FETCHED"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := l.Transition(ctx, "run-1", "RFA_001", "SEGMENTED"); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := l.Finish(ctx, "run-1", "RFA_001", "EMITTED", 12, ""); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	entries, err := l.List(ctx, ledger.Filter{RunID: "run-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.RecordingID != "RFA_001" || e.SrNo != 1 || e.State != "EMITTED" || e.Segments != 12 || !e.Done {
		t.Errorf("entry = %+v", e)
	}
	if e.StartedAt.IsZero() || e.UpdatedAt.Before(e.StartedAt) {
		t.Errorf("timestamps: started %v updated %v", e.StartedAt, e.UpdatedAt)
	}
}

func TestLedger_BeginResetsEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := open(t)

	_ = l.Begin(ctx, "run", "a", 1, "FETCHED")
	_ = l.Finish(ctx, "run", "a", "REJECTED", 0, "whole error rate 0.52")
	if err := l.Begin(ctx, "run", "a", 1, "FETCHED"); err != nil {
		t.Fatalf("Begin again: %v", err)
	}
	entries, _ := l.List(ctx, ledger.Filter{RecordingID: "a"})
	if len(entries) != 1 || entries[0].Done || entries[0].Error != "" || entries[0].State != "FETCHED" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestLedger_UnknownRecording(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := open(t)

	if err := l.Transition(ctx, "run", "missing", "SEGMENTED"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Transition error = %v, want ErrNotFound", err)
	}
	if err := l.Finish(ctx, "run", "missing", "EMITTED", 0, ""); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Finish error = %v, want ErrNotFound", err)
	}
}

func TestLedger_ListFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := open(t)

	seed := []struct {
		run, id, state string
	}{
		{"r1", "a", "EMITTED"},
		{"r1", "b", "REJECTED"},
		{"r2", "a", "EMITTED"},
		{"r2", "c", "CANCELLED"},
	}
	for i, s := range seed {
		if err := l.Begin(ctx, s.run, s.id, i+1, "FETCHED"); err != nil {
			t.Fatalf("Begin: %v", err)
		}
		if err := l.Finish(ctx, s.run, s.id, s.state, 0, ""); err != nil {
			t.Fatalf("Finish: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter ledger.Filter
		want   int
	}{
		{"all", ledger.Filter{}, 4},
		{"by run", ledger.Filter{RunID: "r2"}, 2},
		{"by state", ledger.Filter{State: "EMITTED"}, 2},
		{"by recording and state", ledger.Filter{RecordingID: "a", State: "EMITTED"}, 2},
		{"no match", ledger.Filter{RunID: "r3"}, 0},
		{"limit", ledger.Filter{Limit: 3}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("List(%+v) = %d entries, want %d", tt.filter, len(got), tt.want)
			}
		})
	}
}

func TestLedger_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := open(t)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := string(rune('a' + i))
			if err := l.Begin(ctx, "run", id, i, "FETCHED"); err != nil {
				t.Errorf("Begin %s: %v", id, err)
				return
			}
			if err := l.Finish(ctx, "run", id, "EMITTED", i, ""); err != nil {
				t.Errorf("Finish %s: %v", id, err)
			}
		}()
	}
	wg.Wait()

	got, err := l.List(ctx, ledger.Filter{RunID: "run", State: "EMITTED"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 16 {
		t.Errorf("entries = %d, want 16", len(got))
	}
}
