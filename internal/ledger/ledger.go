// Package ledger records how far each recording of a batch run progressed.
//
// A run is identified by an opaque run ID. Each recording in a run has one
// row holding its latest pipeline state; rows are created by [Ledger.Begin],
// advanced by [Ledger.Transition] and closed by [Ledger.Finish]. The ledger
// is append-only across runs, so a later run can consult earlier ones (for
// example to skip recordings that were already emitted).
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a transition targets a recording that was
// never begun in the given run.
var ErrNotFound = errors.New("ledger: recording not found")

// Entry is the stored progress of one recording in one run.
type Entry struct {
	RunID       string
	RecordingID string
	SrNo        int
	State       string

	// Segments is the number of records emitted. Set by Finish.
	Segments int

	// Error is the failure message of a recording that did not complete.
	Error string

	// Done is true once Finish was called.
	Done bool

	StartedAt time.Time
	UpdatedAt time.Time
}

// Filter narrows [Ledger.List]. Zero fields match everything.
type Filter struct {
	RunID       string
	RecordingID string
	State       string

	// Limit caps the number of entries returned. Zero means no limit.
	Limit int
}

// Ledger persists recording progress.
//
// Implementations must be safe for concurrent use.
type Ledger interface {
	// Begin creates (or resets) the entry of recordingID in runID.
	Begin(ctx context.Context, runID, recordingID string, srNo int, state string) error

	// Transition moves an existing entry to state.
	Transition(ctx context.Context, runID, recordingID, state string) error

	// Finish stores the terminal state, the emitted segment count and an
	// optional error message.
	Finish(ctx context.Context, runID, recordingID, state string, segments int, errMsg string) error

	// List returns entries matching f, most recently updated first.
	List(ctx context.Context, f Filter) ([]Entry, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Nop is a Ledger that stores nothing. It is used when no ledger driver is
// configured.
type Nop struct{}

var _ Ledger = Nop{}

func (Nop) Begin(context.Context, string, string, int, string) error          { return nil }
func (Nop) Transition(context.Context, string, string, string) error          { return nil }
func (Nop) Finish(context.Context, string, string, string, int, string) error { return nil }
func (Nop) List(context.Context, Filter) ([]Entry, error)                     { return nil, nil }
func (Nop) Ping(context.Context) error                                        { return nil }
func (Nop) Close() error                                                      { return nil }
