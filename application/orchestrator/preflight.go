package orchestrator

import (
	"context"
	"fmt"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/config"
	"github.com/axel-mauroy/verity-governance-as-code/ports"
)

// preflightSampleLimit caps the pre-flight leak scan at 500 rows, per §4.10
// step 5.
const preflightSampleLimit = 500

// preflightLint samples node's compiled SQL and scans every string-typed
// value of a non-PII-flagged column against the configured PII detection
// patterns (§9 resolution: strings only, never numeric columns). Any match
// is a fatal GovernanceViolation — this function is only invoked in strict
// mode, on non-Public nodes.
func preflightLint(ctx context.Context, connector ports.Connector, node *manifest.Node, compiledSQL string, patterns []config.CompiledPIIPattern) error {
	if len(patterns) == 0 {
		return nil
	}

	rows, err := connector.FetchSample(ctx, compiledSQL, preflightSampleLimit)
	if err != nil {
		return err
	}

	piiColumns := make(map[string]bool, len(node.Columns))
	for _, c := range node.Columns {
		if c.HasPII {
			piiColumns[c.Name] = true
		}
	}

	for _, row := range rows {
		for col, value := range row {
			if piiColumns[col] {
				continue
			}
			s, ok := value.(string)
			if !ok {
				continue
			}
			for _, p := range patterns {
				if p.Pattern.MatchString(s) {
					return verrors.GovernanceViolation(fmt.Sprintf(
						"pre-flight leak detection: column %q of model %q matches PII pattern %q", col, node.Name, p.Name,
					))
				}
			}
		}
	}
	return nil
}
