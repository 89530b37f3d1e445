// Package mock provides an in-memory [ledger.Ledger] for tests.
package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/sttdata/internal/ledger"
)

// Transition records one state change in call order.
type Transition struct {
	RunID       string
	RecordingID string
	State       string
}

// Ledger keeps entries in memory and records every state change.
type Ledger struct {
	mu sync.Mutex

	// PingErr is returned by Ping.
	PingErr error

	entries     map[string]*ledger.Entry
	transitions []Transition
	closed      bool
}

var _ ledger.Ledger = (*Ledger)(nil)

func key(runID, recordingID string) string { return runID + "\x00" + recordingID }

// Seed inserts a finished entry, e.g. to emulate an earlier run.
func (l *Ledger) Seed(e ledger.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries == nil {
		l.entries = make(map[string]*ledger.Entry)
	}
	l.entries[key(e.RunID, e.RecordingID)] = &e
}

func (l *Ledger) Begin(_ context.Context, runID, recordingID string, srNo int, state string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries == nil {
		l.entries = make(map[string]*ledger.Entry)
	}
	now := time.Now()
	l.entries[key(runID, recordingID)] = &ledger.Entry{
		RunID: runID, RecordingID: recordingID, SrNo: srNo, State: state,
		StartedAt: now, UpdatedAt: now,
	}
	l.transitions = append(l.transitions, Transition{runID, recordingID, state})
	return nil
}

func (l *Ledger) Transition(_ context.Context, runID, recordingID, state string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key(runID, recordingID)]
	if !ok {
		return fmt.Errorf("mock ledger: %w", ledger.ErrNotFound)
	}
	e.State = state
	e.UpdatedAt = time.Now()
	l.transitions = append(l.transitions, Transition{runID, recordingID, state})
	return nil
}

func (l *Ledger) Finish(_ context.Context, runID, recordingID, state string, segments int, errMsg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key(runID, recordingID)]
	if !ok {
		return fmt.Errorf("mock ledger: %w", ledger.ErrNotFound)
	}
	e.State = state
	e.Segments = segments
	e.Error = errMsg
	e.Done = true
	e.UpdatedAt = time.Now()
	l.transitions = append(l.transitions, Transition{runID, recordingID, state})
	return nil
}

func (l *Ledger) List(_ context.Context, f ledger.Filter) ([]ledger.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ledger.Entry
	for _, e := range l.entries {
		if f.RunID != "" && e.RunID != f.RunID {
			continue
		}
		if f.RecordingID != "" && e.RecordingID != f.RecordingID {
			continue
		}
		if f.State != "" && e.State != f.State {
			continue
		}
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b ledger.Entry) int { return a.SrNo - b.SrNo })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (l *Ledger) Ping(context.Context) error { return l.PingErr }

func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Transitions returns every recorded state change for recordingID, in order.
func (l *Ledger) Transitions(recordingID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, tr := range l.transitions {
		if tr.RecordingID == recordingID {
			out = append(out, tr.State)
		}
	}
	return out
}

// Entry returns the entry of recordingID in runID.
func (l *Ledger) Entry(runID, recordingID string) (ledger.Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key(runID, recordingID)]
	if !ok {
		return ledger.Entry{}, false
	}
	return *e, true
}

// Closed reports whether Close was called.
func (l *Ledger) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
