package orchestrator

import (
	"encoding/json"
	"path/filepath"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/fs"
)

// manifestSnapshot is the JSON form of target/manifest.json: a fully
// resolved, deterministically ordered view of the manifest the run
// scheduled against.
type manifestSnapshot struct {
	ProjectName string             `json:"project_name"`
	Nodes       []nodeSnapshot     `json:"nodes"`
}

type nodeSnapshot struct {
	Name            string   `json:"name"`
	ResourceType    string   `json:"resource_type"`
	RelativePath    string   `json:"relative_path"`
	Materialization string   `json:"materialization"`
	SecurityLevel   string   `json:"security_level"`
	Family          string   `json:"family"`
	Version         int      `json:"version"`
	Status          string   `json:"status"`
	Refs            []string `json:"refs"`
}

func writeManifestSnapshot(targetDir string, m *manifest.Manifest) error {
	snap := manifestSnapshot{ProjectName: m.ProjectName}
	for _, name := range m.SortedNodeNames() {
		n := m.Nodes[name]
		snap.Nodes = append(snap.Nodes, nodeSnapshot{
			Name:            n.Name,
			ResourceType:    string(n.ResourceType),
			RelativePath:    n.RelativePath,
			Materialization: string(n.Config.Materialization),
			SecurityLevel:   n.SecurityLevel.String(),
			Family:          n.Family,
			Version:         n.Version,
			Status:          string(n.Status),
			Refs:            n.Refs,
		})
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return verrors.IO("failed to marshal manifest.json", err)
	}
	return fs.WriteAtomic(filepath.Join(targetDir, "manifest.json"), data, 0o644)
}

// RunResult is the outcome of a single pipeline run, persisted to
// target/run_results.json and returned to the CLI caller.
type RunResult struct {
	RunID          string   `json:"run_id"`
	Success        bool     `json:"success"`
	ModelsExecuted []string `json:"models_executed"`
	Errors         []string `json:"errors"`
}

func writeRunResults(targetDir string, r RunResult) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return verrors.IO("failed to marshal run_results.json", err)
	}
	return fs.WriteAtomic(filepath.Join(targetDir, "run_results.json"), data, 0o644)
}

func compiledPath(targetDir, layer, node string) string {
	return filepath.Join(targetDir, "compiled", layer, node+".sql")
}

func runPath(targetDir, layer, node string) string {
	return filepath.Join(targetDir, "run", layer, node+".sql")
}
