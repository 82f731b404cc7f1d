// Package compliance implements C8: row-count deviation checks and a
// Welford-updated Z-score drift check with a circuit breaker that refuses
// to let anomalous observations pollute the rolling statistics. Ported from
// verity-core's domain/compliance/{anomaly,zscore}.rs.
package compliance

import "fmt"

// RowCountResult is the outcome of a single row-count anomaly check.
type RowCountResult struct {
	Anomalous  bool
	NoHistory  bool
	Deviation  float64 // fraction, e.g. 0.1 == 10%
	Threshold  float64
	Previous   uint64
	Current    uint64
}

// Message renders the human-readable summary used in logs and fatal errors,
// matching the percentage formatting asserted by scenario S3 ("10.00%",
// "5.00%").
func (r RowCountResult) Message() string {
	return fmt.Sprintf("row count deviated %.2f%% (threshold %.2f%%): previous=%d current=%d",
		r.Deviation*100, r.Threshold*100, r.Previous, r.Current)
}

// CheckRowCount implements the row-count anomaly rule of §4.8: no previous
// count is "no history" (non-error); a previous count of zero is accepted
// silently; otherwise a deviation beyond threshold is anomalous.
func CheckRowCount(current uint64, previous *uint64, threshold float64) RowCountResult {
	if previous == nil {
		return RowCountResult{NoHistory: true, Current: current, Threshold: threshold}
	}
	if *previous == 0 {
		return RowCountResult{Current: current, Previous: 0, Threshold: threshold}
	}

	var diff float64
	if current > *previous {
		diff = float64(current - *previous)
	} else {
		diff = float64(*previous - current)
	}
	deviation := diff / float64(*previous)

	return RowCountResult{
		Anomalous: deviation > threshold,
		Deviation: deviation,
		Threshold: threshold,
		Previous:  *previous,
		Current:   current,
	}
}
