package discovery

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
)

// GovernanceYAML is the nested `governance` block of a schema entry's
// config (§6).
type GovernanceYAML struct {
	TechOwner     string `yaml:"tech_owner"`
	BusinessOwner string `yaml:"business_owner"`
	SecurityLevel string `yaml:"security_level"`
}

// NodeConfigYAML is the `config` block of one schema entry.
type NodeConfigYAML struct {
	Materialized string         `yaml:"materialized"`
	DataContract bool           `yaml:"data_contract"`
	DataCatalog  bool           `yaml:"data_catalog"`
	Version      int            `yaml:"version"`
	Status       string         `yaml:"status"`
	Latest       bool           `yaml:"latest"`
	Governance   GovernanceYAML `yaml:"governance"`
}

// ComplianceCheckYAML is one pre- or post-flight check entry.
type ComplianceCheckYAML struct {
	Check    string            `yaml:"check"`
	Severity string            `yaml:"severity"`
	Params   map[string]string `yaml:"params"`
}

// ComplianceYAML is the `compliance` block of one schema entry.
type ComplianceYAML struct {
	PreFlight  []ComplianceCheckYAML `yaml:"pre_flight"`
	PostFlight []ComplianceCheckYAML `yaml:"post_flight"`
}

// ColumnYAML is one entry of a schema entry's `columns` list.
type ColumnYAML struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tests       []string `yaml:"tests"`
	Policy      string   `yaml:"policy"`
}

// SchemaEntryYAML is one element of a schema file's top-level `schema`
// list: the YAML contract for a single model.
type SchemaEntryYAML struct {
	ModelName   string          `yaml:"model_name"`
	Description string          `yaml:"description"`
	Config      NodeConfigYAML  `yaml:"config"`
	Compliance  *ComplianceYAML `yaml:"compliance"`
	Columns     []ColumnYAML    `yaml:"columns"`
}

// SchemaFileYAML is the on-disk shape of a sibling `<stem>.yml` or a
// centralized schema file.
type SchemaFileYAML struct {
	Schema []SchemaEntryYAML `yaml:"schema"`
}

// LoadSchemaFile reads and parses one schema YAML file.
func LoadSchemaFile(path string) (SchemaFileYAML, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SchemaFileYAML{}, err
	}
	var f SchemaFileYAML
	if err := yaml.Unmarshal(data, &f); err != nil {
		return SchemaFileYAML{}, verrors.ManifestError("failed to parse schema file " + path + ": " + err.Error())
	}
	return f, nil
}

// EntryByModelName returns the entry naming modelName, or nil.
func (f SchemaFileYAML) EntryByModelName(modelName string) *SchemaEntryYAML {
	for i := range f.Schema {
		if f.Schema[i].ModelName == modelName {
			return &f.Schema[i]
		}
	}
	return nil
}

// familyVersionPattern recognizes a trailing `_v<N>` version suffix on a
// model name, splitting it into its family base and version number.
var familyVersionPattern = regexp.MustCompile(`^(.*)_v(\d+)$`)

// FamilyAndVersion derives the versioned-family grouping key and version
// number for modelName, falling back to (modelName, configVersion) when
// no `_v<N>` suffix is present — e.g. "users_v2" groups with "users_v1"
// under family "users", version 2.
func FamilyAndVersion(modelName string, configVersion int) (family string, version int) {
	if m := familyVersionPattern.FindStringSubmatch(modelName); m != nil {
		version = atoiOrOne(m[2])
		return m[1], version
	}
	version = configVersion
	if version <= 0 {
		version = 1
	}
	return modelName, version
}

func atoiOrOne(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 1
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return 1
	}
	return n
}

// ApplyToNode fuses entry's YAML contract fields into node, overriding
// only what the YAML actually declares, with node-specific precedence
// over whatever the caller already populated from layer/project
// defaults (§4.1).
func ApplyToNode(node *manifest.Node, entry SchemaEntryYAML) {
	if entry.Config.Materialized != "" {
		node.Config.Materialization = manifest.Materialization(entry.Config.Materialized)
	}
	node.Config.Protected = node.Config.Protected || entry.Config.DataContract
	if entry.Config.Governance.TechOwner != "" {
		node.Config.TechOwner = entry.Config.Governance.TechOwner
	}
	if entry.Config.Governance.BusinessOwner != "" {
		node.Config.BusinessOwner = entry.Config.Governance.BusinessOwner
	}
	if level, ok := manifest.ParseSecurityLevel(entry.Config.Governance.SecurityLevel); ok {
		node.SecurityLevel = level
	}

	family, version := FamilyAndVersion(entry.ModelName, entry.Config.Version)
	node.Family = family
	node.Version = version
	if status := manifest.LifecycleStatus(entry.Config.Status); status != "" {
		node.Status = status
	} else {
		node.Status = manifest.LifecycleActive
	}

	if entry.Compliance != nil {
		node.Compliance = &manifest.ComplianceConfig{
			PreFlight:  toComplianceChecks(entry.Compliance.PreFlight),
			PostFlight: toComplianceChecks(entry.Compliance.PostFlight),
		}
	}

	if len(entry.Columns) > 0 {
		columns := make([]manifest.Column, 0, len(entry.Columns))
		for _, c := range entry.Columns {
			col := manifest.Column{Name: c.Name, Tests: c.Tests}
			if policy, ok := resolveColumnPolicy(c.Policy); ok {
				col.Policy = &policy
				col.HasPII = true
			}
			columns = append(columns, col)
		}
		node.Columns = columns
	}
}

func toComplianceChecks(in []ComplianceCheckYAML) []manifest.ComplianceCheck {
	out := make([]manifest.ComplianceCheck, 0, len(in))
	for _, c := range in {
		out = append(out, manifest.ComplianceCheck{Check: c.Check, Severity: c.Severity, Params: c.Params})
	}
	return out
}

func resolveColumnPolicy(name string) (manifest.PolicyType, bool) {
	switch name {
	case "":
		return manifest.PolicyType{}, false
	case "encryption":
		return manifest.EncryptionPolicy(), true
	case "drop":
		return manifest.DropPolicy(), true
	default:
		strategy, ok := manifest.ParseMaskingStrategy(name)
		if !ok {
			return manifest.PolicyType{}, false
		}
		return manifest.MaskingPolicy(strategy), true
	}
}
