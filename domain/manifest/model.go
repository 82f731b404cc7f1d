// Package manifest defines the typed, fully-resolved representation of a
// verity project: nodes, sources, columns, and their governance metadata.
package manifest

import "sort"

// ResourceType classifies a discoverable node.
type ResourceType string

const (
	ResourceModel    ResourceType = "Model"
	ResourceSource   ResourceType = "Source"
	ResourceAnalysis ResourceType = "Analysis"
	ResourceTest     ResourceType = "Test"
)

// Materialization is the on-store representation chosen for a model.
type Materialization string

const (
	MaterializationView        Materialization = "View"
	MaterializationTable       Materialization = "Table"
	MaterializationEphemeral   Materialization = "Ephemeral"
	MaterializationIncremental Materialization = "Incremental"
)

// SecurityLevel is an ordinal sensitivity tag. Higher is stricter.
type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota
	SecurityInternal
	SecurityConfidential
	SecurityRestricted
)

func (l SecurityLevel) String() string {
	switch l {
	case SecurityPublic:
		return "public"
	case SecurityInternal:
		return "internal"
	case SecurityConfidential:
		return "confidential"
	case SecurityRestricted:
		return "restricted"
	default:
		return "unknown"
	}
}

// ParseSecurityLevel accepts the lowercase string forms used in YAML.
func ParseSecurityLevel(s string) (SecurityLevel, bool) {
	switch s {
	case "public":
		return SecurityPublic, true
	case "internal":
		return SecurityInternal, true
	case "confidential":
		return SecurityConfidential, true
	case "restricted":
		return SecurityRestricted, true
	default:
		return SecurityInternal, false
	}
}

// LifecycleStatus tracks a versioned model family's activation state.
type LifecycleStatus string

const (
	LifecycleProvisioning LifecycleStatus = "Provisioning"
	LifecycleActive       LifecycleStatus = "Active"
	LifecycleDeprecated   LifecycleStatus = "Deprecated"
	LifecycleErased       LifecycleStatus = "Erased"
)

// lifecycleOrder defines the only forward transitions; self-transitions are
// always permitted (idempotence) and checked separately.
var lifecycleOrder = map[LifecycleStatus]int{
	LifecycleProvisioning: 0,
	LifecycleActive:       1,
	LifecycleDeprecated:   2,
	LifecycleErased:       3,
}

// CanTransition reports whether from -> to is a legal lifecycle move:
// any self-transition, or exactly one step forward.
func CanTransition(from, to LifecycleStatus) bool {
	if from == to {
		return true
	}
	fi, fok := lifecycleOrder[from]
	ti, tok := lifecycleOrder[to]
	if !fok || !tok {
		return false
	}
	return ti == fi+1
}

// MaskingStrategy names a specific column-value transformation.
type MaskingStrategy string

const (
	MaskHash             MaskingStrategy = "hash"
	MaskRedact           MaskingStrategy = "redact"
	MaskNullify          MaskingStrategy = "nullify"
	MaskPartial          MaskingStrategy = "partial"
	MaskEmail            MaskingStrategy = "mask_email"
	MaskEntityPreserving MaskingStrategy = "entity_preserving"
)

var validMaskingStrategies = map[MaskingStrategy]bool{
	MaskHash: true, MaskRedact: true, MaskNullify: true,
	MaskPartial: true, MaskEmail: true, MaskEntityPreserving: true,
}

// ParseMaskingStrategy rejects unknown strings strictly, per spec §9.
func ParseMaskingStrategy(s string) (MaskingStrategy, bool) {
	ms := MaskingStrategy(s)
	return ms, validMaskingStrategies[ms]
}

// PolicyKind distinguishes the tagged variants of PolicyType.
type PolicyKind string

const (
	PolicyMasking    PolicyKind = "masking"
	PolicyEncryption PolicyKind = "encryption"
	PolicyDrop       PolicyKind = "drop"
)

// PolicyType is the tagged union Masking(strategy) | Encryption | Drop.
type PolicyType struct {
	Kind     PolicyKind
	Strategy MaskingStrategy // only meaningful when Kind == PolicyMasking
}

func MaskingPolicy(strategy MaskingStrategy) PolicyType {
	return PolicyType{Kind: PolicyMasking, Strategy: strategy}
}

func EncryptionPolicy() PolicyType { return PolicyType{Kind: PolicyEncryption} }
func DropPolicy() PolicyType       { return PolicyType{Kind: PolicyDrop} }

// String renders the policy the way the lineage report and rewriter tables
// reference it: the bare masking strategy name, or "encryption"/"drop".
func (p PolicyType) String() string {
	switch p.Kind {
	case PolicyMasking:
		return string(p.Strategy)
	case PolicyEncryption:
		return "encryption"
	case PolicyDrop:
		return "drop"
	default:
		return ""
	}
}

// Column is a single projected field with its tests and optional policy.
type Column struct {
	Name    string
	Tests   []string
	Policy  *PolicyType
	HasPII  bool // set by fuzzy injection or explicit policy presence
}

// NodeConfig carries materialization and ownership metadata.
type NodeConfig struct {
	Materialization Materialization
	Schema          string
	TechOwner       string
	BusinessOwner   string
	Protected       bool
}

// ComplianceCheck names a single pre- or post-flight assertion.
type ComplianceCheck struct {
	Check    string
	Severity string // "error" | "warn"
	Params   map[string]string
}

// ComplianceConfig groups pre- and post-flight checks for a node.
type ComplianceConfig struct {
	PreFlight  []ComplianceCheck
	PostFlight []ComplianceCheck
}

// Node is a single discoverable artifact in the project graph.
type Node struct {
	Name            string
	ResourceType    ResourceType
	RelativePath    string
	SchemaPath      string
	RawTemplateBody string
	Refs            []string
	Config          NodeConfig
	Columns         []Column
	SecurityLevel   SecurityLevel
	Compliance      *ComplianceConfig

	// Version family bookkeeping, populated by the loader from schema YAML.
	Family  string
	Version int
	Status  LifecycleStatus
}

// Source is a named, file-backed or externally registered relation.
type Source struct {
	Name  string
	Path  string
	Owner string

	Public   bool
	PII      bool
	Security SecurityLevel
}

// Manifest is the project-wide, fully-resolved bundle.
type Manifest struct {
	ProjectName string
	Nodes       map[string]*Node
	Sources     map[string]*Source
}

func New(projectName string) *Manifest {
	return &Manifest{
		ProjectName: projectName,
		Nodes:       make(map[string]*Node),
		Sources:     make(map[string]*Source),
	}
}

// SortedNodeNames returns node names in lexicographic order, used wherever
// deterministic serialization is required (manifest.json, lineage reports).
func (m *Manifest) SortedNodeNames() []string {
	names := make([]string, 0, len(m.Nodes))
	for name := range m.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ColumnByName returns the column with the given (case-sensitive) name, or
// nil if the node has no such column.
func (n *Node) ColumnByName(name string) *Column {
	for i := range n.Columns {
		if n.Columns[i].Name == name {
			return &n.Columns[i]
		}
	}
	return nil
}
