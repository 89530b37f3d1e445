package pipeline

import "github.com/MrWong99/sttdata/internal/observe"

// State is the lifecycle position of one recording.
type State string

const (
	StateFetched             State = "FETCHED"
	StateSegmented           State = "SEGMENTED"
	StateWholeValidated      State = "WHOLE_VALIDATED"
	StateAligned             State = "ALIGNED"
	StatePerSegmentProcessed State = "PER_SEGMENT_PROCESSED"
	StateEmitted             State = "EMITTED"

	// StateRejected ends a recording without audio or whose whole transcript
	// failed the gate.
	StateRejected State = "REJECTED"

	// StateFailed ends a recording that hit a fatal error.
	StateFailed State = "FAILED"

	// StateCancelled ends a recording interrupted by batch cancellation.
	StateCancelled State = "CANCELLED"
)

var forward = map[State]State{
	StateFetched:             StateSegmented,
	StateSegmented:           StateWholeValidated,
	StateWholeValidated:      StateAligned,
	StateAligned:             StatePerSegmentProcessed,
	StatePerSegmentProcessed: StateEmitted,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case StateEmitted, StateRejected, StateFailed, StateCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a recording in s may move to next.
//
// The happy path is strictly linear. Rejection is only possible right after
// the catalog entry was read or after the whole-recording check. Any
// non-terminal state may fail or be cancelled.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case StateFailed, StateCancelled:
		return true
	case StateRejected:
		return s == StateFetched || s == StateWholeValidated
	}
	return forward[s] == next
}

// Outcome is the metric label of a terminal state.
func (s State) Outcome() string {
	switch s {
	case StateEmitted:
		return observe.OutcomeEmitted
	case StateRejected:
		return observe.OutcomeRejected
	case StateCancelled:
		return observe.OutcomeCancelled
	default:
		return observe.OutcomeFailed
	}
}
