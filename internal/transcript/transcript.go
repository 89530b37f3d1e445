// Package transcript validates machine transcripts against noisy human
// reference text and decides how each segment's final text is produced.
//
// The stages, in the order the pipeline uses them:
//
//  1. Normalisation ([NormalizeReference], [NormalizeInference]) strips
//     characters that only one side of the comparison carries.
//  2. Scoring ([ErrorRate]) computes a character error rate in [0, 1].
//  3. Gating ([Gate]) compares the rate against a single shared threshold,
//     once for the whole recording and once per segment.
//  4. Alignment ([Aligner]) cuts the reference into one line per segment.
//  5. Routing ([Router]) sends each segment to the [Corrector] either with
//     its reference line (reference-guided) or without it (reference-free).
//
// All functions in this package are pure or safe for concurrent use.
package transcript

import "context"

// Corrector rewrites a machine transcript. Implementations must be safe for
// concurrent use.
type Corrector interface {
	// CorrectWithReference aligns the spelling of inference to reference.
	CorrectWithReference(ctx context.Context, inference, reference string) (string, error)

	// CorrectFree fixes spelling in inference without any reference.
	CorrectFree(ctx context.Context, inference string) (string, error)
}

// Mode names the route a segment took through the [Router].
type Mode string

const (
	// ModeReferenceGuided means the segment passed the gate and the corrector
	// was given the reference line.
	ModeReferenceGuided Mode = "reference-guided"

	// ModeReferenceFree means the segment failed the gate and the corrector
	// worked on the machine transcript alone.
	ModeReferenceFree Mode = "reference-free"
)
