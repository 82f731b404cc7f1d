package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
)

// SourceGovernanceYAML is the governance sub-block of one sources.yaml
// entry.
type SourceGovernanceYAML struct {
	Public   bool   `yaml:"public"`
	PII      bool   `yaml:"pii"`
	Security string `yaml:"security"`
}

// SourceYAML is one entry under sources.yaml's `sources` list: a
// pre-existing relation the project reads from but does not build.
type SourceYAML struct {
	Name       string               `yaml:"name"`
	Path       string               `yaml:"path"`
	Owner      string               `yaml:"owner"`
	Governance SourceGovernanceYAML `yaml:"governance"`
}

// SourcesYAML is the on-disk shape of a project's sources.yaml.
type SourcesYAML struct {
	Sources []SourceYAML `yaml:"sources"`
}

// LoadSourcesConfig reads and parses path.
func LoadSourcesConfig(path string) (SourcesYAML, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SourcesYAML{}, verrors.ConfigNotFound("sources config not found: " + path)
	}
	var cfg SourcesYAML
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SourcesYAML{}, verrors.Config("failed to parse sources config", err)
	}
	return cfg, nil
}

// LoadSourcesConfigOrDefault loads path, falling back to an empty source
// registry when the file is absent — a project with no external sources
// is valid.
func LoadSourcesConfigOrDefault(path string) SourcesYAML {
	cfg, err := LoadSourcesConfig(path)
	if err != nil {
		return SourcesYAML{}
	}
	return cfg
}

// ToManifestSources converts the YAML shape into domain manifest.Source
// values, defaulting an unparseable or absent security level to Internal.
func (cfg SourcesYAML) ToManifestSources() []manifest.Source {
	out := make([]manifest.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		security, ok := manifest.ParseSecurityLevel(s.Governance.Security)
		if !ok {
			security = manifest.SecurityInternal
		}
		out = append(out, manifest.Source{
			Name:     s.Name,
			Path:     s.Path,
			Owner:    s.Owner,
			Public:   s.Governance.Public,
			PII:      s.Governance.PII,
			Security: security,
		})
	}
	return out
}
