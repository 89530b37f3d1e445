package transcript

// DefaultThreshold is the maximum error rate a transcript may have and still
// be considered valid.
const DefaultThreshold = 0.4

// IsValid reports whether prediction is within threshold of reference.
func IsValid(prediction, reference string, threshold float64) bool {
	return ErrorRate(reference, prediction) <= threshold
}

// Gate applies one threshold to both the whole-recording check and the
// per-segment checks.
type Gate struct {
	Threshold float64
}

// NewGate returns a Gate with the given threshold. A threshold of 0 only
// passes exact matches.
func NewGate(threshold float64) Gate {
	return Gate{Threshold: threshold}
}

// Check returns the measured error rate and whether it passes the gate.
func (g Gate) Check(prediction, reference string) (rate float64, ok bool) {
	rate = ErrorRate(reference, prediction)
	return rate, rate <= g.Threshold
}

// CheckWhole normalises a full machine transcript and reference text before
// checking them.
func (g Gate) CheckWhole(machineTranscript, reference string) (rate float64, ok bool) {
	return g.Check(NormalizeInference(machineTranscript), NormalizeReference(reference))
}
