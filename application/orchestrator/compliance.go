package orchestrator

import (
	"context"
	"strconv"

	"github.com/axel-mauroy/verity-governance-as-code/domain/compliance"
	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
	"github.com/axel-mauroy/verity-governance-as-code/ports"
)

// complianceOutcome is what postFlight reports back to the driver loop: the
// messages to log rather than fail on. Updated ml-metric state is written
// into the caller's newMetrics map, not carried here.
type complianceOutcome struct {
	metrics []string // bypass messages (severity error, strict mode off), logged via LogBypass
	warn    []string
}

// postFlight runs §4.8's row-count and Z-score checks for node, using
// node.Compliance.PostFlight to find per-check severity/threshold
// overrides, falling back to the project's quality defaults. Returns a
// *DomainError (ComplianceError) only when a check is fatal (severity
// error, strict mode on); softer outcomes are folded into the returned
// complianceOutcome and never treated as failures.
func postFlight(
	ctx context.Context,
	connector ports.Connector,
	node *manifest.Node,
	prior manifest.ModelExecutionState,
	currentRowCount uint64,
	rowCountThreshold float64,
	zscoreThreshold float64,
	strict bool,
	newMetrics map[string]manifest.MetricState,
) (complianceOutcome, error) {
	var out complianceOutcome

	checks := []manifest.ComplianceCheck{{Check: "row_count_anomaly", Severity: "warn"}}
	if node.Compliance != nil && len(node.Compliance.PostFlight) > 0 {
		checks = node.Compliance.PostFlight
	}

	for _, check := range checks {
		switch check.Check {
		case "row_count_anomaly":
			threshold := rowCountThreshold
			if v, ok := check.Params["threshold"]; ok {
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					threshold = parsed
				}
			}
			var previous *uint64
			if prior.RowCount > 0 || !prior.LastRunAt.IsZero() {
				p := prior.RowCount
				previous = &p
			}
			result := compliance.CheckRowCount(currentRowCount, previous, threshold)
			if !result.Anomalous {
				continue
			}
			if err := routeAnomaly(node.Name, "row_count_anomaly", result.Message(), check.Severity, strict, &out); err != nil {
				return out, err
			}

		case "zscore_drift":
			column := check.Params["column"]
			if column == "" {
				continue
			}
			metric := check.Params["metric"]
			if metric == "" {
				metric = column
			}
			threshold := zscoreThreshold
			if v, ok := check.Params["threshold"]; ok {
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					threshold = parsed
				}
			}
			averages, err := connector.FetchColumnAverages(ctx, node.Name, []string{column})
			if err != nil {
				return out, err
			}
			x, ok := averages[column]
			if !ok {
				continue
			}
			priorMetric := prior.MLMetrics[metric]
			result, newState := compliance.ValidateAndUpdate(x, priorMetric, threshold)
			newMetrics[metric] = newState
			if !result.Anomalous {
				continue
			}
			if err := routeAnomaly(node.Name, "zscore_drift", "z-score drift on "+column, check.Severity, strict, &out); err != nil {
				return out, err
			}

		default:
			out.warn = append(out.warn, "unknown post-flight check "+check.Check+" on "+node.Name+": skipped")
		}
	}

	return out, nil
}

// routeAnomaly implements the §4.8/§7 severity routing: severity error and
// strict mode on is fatal; severity error and strict mode off is a bypass
// warning; anything else is a plain warning.
func routeAnomaly(node, check, message, severity string, strict bool, out *complianceOutcome) error {
	if severity == "error" {
		if strict {
			return verrors.ComplianceError(message)
		}
		out.metrics = append(out.metrics, message)
		return nil
	}
	out.warn = append(out.warn, message)
	return nil
}
