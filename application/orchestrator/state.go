package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/fs"
)

// stateFile is the JSON-serializable mirror of map[string]manifest.ModelExecutionState,
// using exported field names so the written target/state.json is readable
// without reflection tricks on the domain type.
type stateFile map[string]nodeStateJSON

type nodeStateJSON struct {
	LastRunAt time.Time                       `json:"last_run_at"`
	RowCount  uint64                          `json:"row_count"`
	MLMetrics map[string]metricStateJSON      `json:"ml_metrics,omitempty"`
}

type metricStateJSON struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	Count    uint64  `json:"count"`
	M2       float64 `json:"m2"`
}

func loadState(targetDir string) (map[string]manifest.ModelExecutionState, error) {
	path := filepath.Join(targetDir, "state.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]manifest.ModelExecutionState), nil
		}
		return nil, verrors.IO("failed to read state.json", err)
	}

	var raw stateFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, verrors.IO("failed to parse state.json", err)
	}

	out := make(map[string]manifest.ModelExecutionState, len(raw))
	for name, s := range raw {
		metrics := make(map[string]manifest.MetricState, len(s.MLMetrics))
		for metric, m := range s.MLMetrics {
			metrics[metric] = manifest.MetricState{
				Mean: m.Mean, Variance: m.Variance, Count: m.Count,
			}.WithM2(m.M2)
		}
		out[name] = manifest.ModelExecutionState{
			LastRunAt: s.LastRunAt,
			RowCount:  s.RowCount,
			MLMetrics: metrics,
		}
	}
	return out, nil
}

func saveState(targetDir string, state map[string]manifest.ModelExecutionState) error {
	raw := make(stateFile, len(state))
	for name, s := range state {
		metrics := make(map[string]metricStateJSON, len(s.MLMetrics))
		for metric, m := range s.MLMetrics {
			metrics[metric] = metricStateJSON{Mean: m.Mean, Variance: m.Variance, Count: m.Count, M2: m.M2()}
		}
		raw[name] = nodeStateJSON{LastRunAt: s.LastRunAt, RowCount: s.RowCount, MLMetrics: metrics}
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return verrors.IO("failed to marshal state.json", err)
	}
	return fs.WriteAtomic(filepath.Join(targetDir, "state.json"), data, 0o644)
}
