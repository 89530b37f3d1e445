package transcript

import (
	"context"
	"fmt"
	"log/slog"
)

// Decision is the outcome of routing one segment.
type Decision struct {
	Mode      Mode
	ErrorRate float64

	// Corrected is the corrector's output, or nil when the call failed or no
	// corrector is configured.
	Corrected *string

	// Err is the corrector failure, if any.
	Err error
}

// Router sends each segment to the corrector in the mode its error rate
// calls for.
type Router struct {
	gate      Gate
	corrector Corrector
}

// NewRouter returns a Router. corrector may be nil to disable correction;
// decisions then carry a mode and rate but no corrected text.
func NewRouter(gate Gate, corrector Corrector) *Router {
	return &Router{gate: gate, corrector: corrector}
}

// Route scores inference against reference and calls the corrector once.
// A failing segment is corrected without its reference; a passing one is
// corrected toward it. There is no retry.
func (r *Router) Route(ctx context.Context, inference, reference string) Decision {
	rate, ok := r.gate.Check(inference, reference)
	d := Decision{Mode: ModeReferenceGuided, ErrorRate: rate}
	if !ok {
		d.Mode = ModeReferenceFree
	}
	if r.corrector == nil {
		return d
	}

	var (
		text string
		err  error
	)
	if d.Mode == ModeReferenceFree {
		text, err = r.corrector.CorrectFree(ctx, inference)
	} else {
		text, err = r.corrector.CorrectWithReference(ctx, inference, reference)
	}
	if err != nil {
		d.Err = fmt.Errorf("transcript: route %s: %w", d.Mode, err)
		slog.Warn("transcript: correction failed", "mode", d.Mode, "error_rate", rate, "err", err)
		return d
	}
	d.Corrected = &text
	return d
}
