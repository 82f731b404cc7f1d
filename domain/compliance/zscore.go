package compliance

import (
	"math"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
)

// ZScoreResult is the outcome of a single Z-score drift observation.
type ZScoreResult struct {
	Anomalous       bool
	NotEnoughHistory bool
	Z               float64
	Threshold       float64
}

// DefaultZScoreThreshold is the Z-score beyond which an observation is
// treated as drift, per §4.8.
const DefaultZScoreThreshold = 3.0

// CheckZScore validates x against the prior rolling state, without
// mutating it. count < 2 is reported as "not enough history" (non-error);
// a near-zero standard deviation (<= 1e-9) never trips the check, matching
// the original's avoidance of division-by-near-zero false positives.
func CheckZScore(x float64, prior manifest.MetricState, threshold float64) ZScoreResult {
	if prior.Count < 2 {
		return ZScoreResult{NotEnoughHistory: true, Threshold: threshold}
	}
	sigma := math.Sqrt(prior.Variance)
	if sigma <= 1e-9 {
		return ZScoreResult{Threshold: threshold}
	}
	z := math.Abs(x-prior.Mean) / sigma
	return ZScoreResult{Anomalous: z > threshold, Z: z, Threshold: threshold}
}

// UpdateWelford applies Welford's online mean/variance update for a new
// observation x, returning the new state. Must only be called for
// non-anomalous observations — see ValidateAndUpdate.
func UpdateWelford(prior manifest.MetricState, x float64) manifest.MetricState {
	count := prior.Count + 1
	mean := prior.Mean + (x-prior.Mean)/float64(count)
	m2 := prior.M2() + (x-prior.Mean)*(x-mean)
	variance := m2 / float64(count)
	return manifest.MetricState{Mean: mean, Variance: variance, Count: count}.WithM2(m2)
}

// ValidateAndUpdate is the circuit breaker of §4.8: it returns the check
// result alongside the state that should be persisted. On AnomalyDetected
// the returned state is identical to prior — anomalous values never enter
// the rolling statistics. On Ok or NotEnoughHistory, x is folded in via
// Welford's update.
func ValidateAndUpdate(x float64, prior manifest.MetricState, threshold float64) (ZScoreResult, manifest.MetricState) {
	result := CheckZScore(x, prior, threshold)
	if result.Anomalous {
		return result, prior
	}
	return result, UpdateWelford(prior, x)
}
