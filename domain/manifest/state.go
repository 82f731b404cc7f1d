package manifest

import (
	"strings"
	"time"
)

// MetricState is Welford's running mean/variance/count for a single
// ml_metric name, never updated when the corresponding observation was
// anomalous.
type MetricState struct {
	Mean     float64
	Variance float64
	Count    uint64

	// m2 is Welford's running sum of squared deviations; it is the
	// numerically stable intermediate that Variance is derived from
	// (Variance == m2/Count). Kept alongside Mean/Count so repeated
	// updates don't reconstruct it from the already-rounded Variance.
	m2 float64
}

// M2 exposes the internal sum-of-squares accumulator, needed to resume
// Welford updates after deserializing state from disk.
func (s MetricState) M2() float64 { return s.m2 }

// WithM2 returns a copy of s with its internal accumulator set; used by the
// Welford update and when reloading persisted state, which stores m2
// alongside Variance.
func (s MetricState) WithM2(m2 float64) MetricState {
	s.m2 = m2
	return s
}

// ModelExecutionState is the per-node record persisted across runs.
type ModelExecutionState struct {
	LastRunAt time.Time
	RowCount  uint64
	MLMetrics map[string]MetricState
}

func NewModelExecutionState() ModelExecutionState {
	return ModelExecutionState{MLMetrics: make(map[string]MetricState)}
}

// GovernancePolicySet is the flattened policy view consumed by the
// plan-level rewriter (C5): lowercase column name -> masking strategy, plus
// an optional salt applied uniformly to every hash input.
type GovernancePolicySet struct {
	ColumnPolicies map[string]MaskingStrategy
	Salt           string
}

func NewGovernancePolicySet() GovernancePolicySet {
	return GovernancePolicySet{ColumnPolicies: make(map[string]MaskingStrategy)}
}

// FromPairs builds a policy set from (column name, strategy string) pairs,
// lowercasing column names, mirroring the Rust constructor this is ported
// from. Unknown strategy strings are silently skipped — callers that need
// strict validation should use ParseMaskingStrategy directly.
func FromPairs(pairs [][2]string) GovernancePolicySet {
	set := NewGovernancePolicySet()
	for _, p := range pairs {
		if strategy, ok := ParseMaskingStrategy(p[1]); ok {
			set.ColumnPolicies[strings.ToLower(p[0])] = strategy
		}
	}
	return set
}
