package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
)

// QualityYAML is the on-disk shape of config/quality.yml: the default
// row-count deviation and z-score thresholds applied to any node whose
// own `compliance` block doesn't override them (§4.8).
type QualityYAML struct {
	RowCountDeviationThreshold float64 `yaml:"row_count_deviation_threshold"`
	ZScoreThreshold            float64 `yaml:"z_score_threshold"`
	StrictMode                 bool    `yaml:"strict_mode"`
}

// DefaultQualityYAML matches the thresholds spec.md's worked examples use.
func DefaultQualityYAML() QualityYAML {
	return QualityYAML{
		RowCountDeviationThreshold: 0.10,
		ZScoreThreshold:            3.0,
		StrictMode:                 false,
	}
}

// LoadQualityConfig reads and parses path.
func LoadQualityConfig(path string) (QualityYAML, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return QualityYAML{}, verrors.ConfigNotFound("quality config not found: " + path)
	}
	var cfg QualityYAML
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return QualityYAML{}, verrors.Config("failed to parse quality config", err)
	}
	return cfg, nil
}

// LoadQualityConfigOrDefault loads path, falling back to
// DefaultQualityYAML() when the file is absent.
func LoadQualityConfigOrDefault(path string) QualityYAML {
	cfg, err := LoadQualityConfig(path)
	if err != nil {
		return DefaultQualityYAML()
	}
	return cfg
}
