package config

import (
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/axel-mauroy/verity-governance-as-code/ports"
)

// AppConfig bundles the resolved project configuration alongside the two
// auxiliary config files (policies, quality) that discovery and
// compliance each consume independently of the manifest loader.
type AppConfig struct {
	Project  ports.ProjectConfig
	Policies PoliciesYAML
	Quality  QualityYAML
	Sources  SourcesYAML
}

// Load resolves a full AppConfig for projectDir: the project YAML (at
// projectDir/verity_project.yaml, or defaults if absent), config/policies.yml,
// config/quality.yml, and models/sources.yaml, then layers the
// VERITY_STRICT/VERITY_TARGET_PATH/VERITY_PROFILE env vars over the
// project file (§6).
func Load(projectDir string) AppConfig {
	_ = godotenv.Load(filepath.Join(projectDir, ".env"))

	raw := LoadProjectConfigOrDefault(filepath.Join(projectDir, "verity_project.yaml"))
	raw, strict := ApplyEnvOverrides(raw)

	layerDefaults := make(map[string]ports.LayerDefault, len(raw.Defaults))
	for layer, y := range raw.Defaults {
		materialization, schema, protected, security := ResolveLayerDefault(y)
		layerDefaults[layer] = ports.LayerDefault{
			Materialization: materialization,
			Schema:          schema,
			Protected:       protected,
			SecurityLevel:   security,
		}
	}

	concurrency := raw.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	project := ports.ProjectConfig{
		Name:          raw.Name,
		Version:       raw.Version,
		Profile:       raw.Profile,
		Engine:        raw.Engine,
		ConfigPaths:   raw.ConfigPaths,
		ModelPaths:    raw.ModelPaths,
		TargetPath:    raw.TargetPath,
		CleanTargets:  raw.CleanTargets,
		Governance:    ports.GovernanceProjectConfig{Salt: raw.Governance.Salt},
		LayerDefaults: layerDefaults,
		Concurrency:   concurrency,
		StrictMode:    strict,
	}

	policies := LoadPoliciesConfigOrDefault(filepath.Join(projectDir, "config", "policies.yml"))
	quality := LoadQualityConfigOrDefault(filepath.Join(projectDir, "config", "quality.yml"))
	if !strict {
		strict = quality.StrictMode
		project.StrictMode = strict
	}
	sources := LoadSourcesConfigOrDefault(filepath.Join(projectDir, "models", "sources.yaml"))

	return AppConfig{Project: project, Policies: policies, Quality: quality, Sources: sources}
}
