package config

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
)

// PIIPatternYAML is one entry of config/policies.yml's `pii_detection.patterns`
// list, consumed by the orchestrator's pre-flight string-sample scanner
// (§9 note 3: strings only).
type PIIPatternYAML struct {
	Name            string `yaml:"name"`
	Regex           string `yaml:"regex"`
	Severity        string `yaml:"severity"` // low|medium|high|critical
	Action          string `yaml:"action"`   // block|warn|mask|ignore
	MaskingStrategy string `yaml:"masking_strategy"`
}

// ColumnPolicyYAML is one entry of config/policies.yml's `column_policies`
// list: a regex matched against undocumented column names to fuzzy-inject
// a policy at discovery time (§4.1).
type ColumnPolicyYAML struct {
	Pattern string `yaml:"pattern"`
	Policy  string `yaml:"policy"`
}

// PIIDetectionYAML is the `pii_detection` sub-block of config/policies.yml.
type PIIDetectionYAML struct {
	Patterns []PIIPatternYAML `yaml:"patterns"`
}

// PoliciesYAML is the on-disk shape of config/policies.yml.
type PoliciesYAML struct {
	PIIDetection   PIIDetectionYAML   `yaml:"pii_detection"`
	ColumnPolicies []ColumnPolicyYAML `yaml:"column_policies"`
}

// DefaultPoliciesYAML matches common PII-shaped column names out of the
// box: email, ssn, phone fuzzy-inject a masking policy, and a loose
// email-shaped-string pattern feeds the pre-flight sample scanner.
func DefaultPoliciesYAML() PoliciesYAML {
	return PoliciesYAML{
		PIIDetection: PIIDetectionYAML{
			Patterns: []PIIPatternYAML{
				{Name: "email_literal", Regex: `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, Severity: "high", Action: "block"},
			},
		},
		ColumnPolicies: []ColumnPolicyYAML{
			{Pattern: `(?i)email`, Policy: "mask_email"},
			{Pattern: `(?i)ssn|social_security`, Policy: "hash"},
			{Pattern: `(?i)phone`, Policy: "partial"},
		},
	}
}

// LoadPoliciesConfig reads and parses path, compiling every pattern up
// front so a bad regex fails fast at load time rather than mid-scan.
func LoadPoliciesConfig(path string) (PoliciesYAML, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PoliciesYAML{}, verrors.ConfigNotFound("policies config not found: " + path)
	}
	var cfg PoliciesYAML
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return PoliciesYAML{}, verrors.Config("failed to parse policies config", err)
	}
	for _, p := range cfg.ColumnPolicies {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return PoliciesYAML{}, verrors.Config("invalid column_policies regex: "+p.Pattern, err)
		}
	}
	for _, p := range cfg.PIIDetection.Patterns {
		if _, err := regexp.Compile(p.Regex); err != nil {
			return PoliciesYAML{}, verrors.Config("invalid pii_detection regex: "+p.Regex, err)
		}
	}
	return cfg, nil
}

// LoadPoliciesConfigOrDefault loads path, falling back to
// DefaultPoliciesYAML() when the file is absent.
func LoadPoliciesConfigOrDefault(path string) PoliciesYAML {
	cfg, err := LoadPoliciesConfig(path)
	if err != nil {
		return DefaultPoliciesYAML()
	}
	return cfg
}

// CompiledColumnPolicy pairs a compiled pattern with its fuzzy-injected
// policy, ready for discovery-time matching against undocumented column
// names, in declaration order (first match wins, per §4.1).
type CompiledColumnPolicy struct {
	Pattern *regexp.Regexp
	Policy  manifest.PolicyType
}

// CompileColumnPolicies compiles cfg's column_policies in order, silently
// skipping any entry whose regex is invalid (LoadPoliciesConfig already
// validates this at load time; this is defense in depth).
func (cfg PoliciesYAML) CompileColumnPolicies() []CompiledColumnPolicy {
	compiled := make([]CompiledColumnPolicy, 0, len(cfg.ColumnPolicies))
	for _, p := range cfg.ColumnPolicies {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		policy, ok := resolvePolicy(p.Policy)
		if !ok {
			continue
		}
		compiled = append(compiled, CompiledColumnPolicy{Pattern: re, Policy: policy})
	}
	return compiled
}

// resolvePolicy maps a policy name string onto a PolicyType: a valid
// masking strategy name, or the bare "encryption"/"drop" tags.
func resolvePolicy(name string) (manifest.PolicyType, bool) {
	switch name {
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

// CompiledPIIPattern pairs a compiled regex with its detection metadata,
// ready for the orchestrator's pre-flight string-sample scanner.
type CompiledPIIPattern struct {
	Name            string
	Pattern         *regexp.Regexp
	Severity        string
	Action          string
	MaskingStrategy string
}

// CompilePIIPatterns compiles cfg's pii_detection.patterns, skipping any
// entry whose regex is invalid.
func (cfg PoliciesYAML) CompilePIIPatterns() []CompiledPIIPattern {
	compiled := make([]CompiledPIIPattern, 0, len(cfg.PIIDetection.Patterns))
	for _, p := range cfg.PIIDetection.Patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			continue
		}
		compiled = append(compiled, CompiledPIIPattern{
			Name: p.Name, Pattern: re, Severity: p.Severity, Action: p.Action, MaskingStrategy: p.MaskingStrategy,
		})
	}
	return compiled
}
