package ports

import (
	"context"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
)

// ProjectConfig is the resolved form of the top-level project YAML (§6):
// name/version/profile/engine plus the path and default-layering fields
// the manifest loader and orchestrator both need.
type ProjectConfig struct {
	Name          string
	Version       string
	Profile       string
	Engine        string
	ConfigPaths   []string
	ModelPaths    []string
	TargetPath    string
	CleanTargets  []string
	Governance    GovernanceProjectConfig
	LayerDefaults map[string]LayerDefault
	Concurrency   int
	StrictMode    bool
}

// GovernanceProjectConfig carries the project-wide hash salt and any
// top-level governance toggles declared in the project YAML.
type GovernanceProjectConfig struct {
	Salt string
}

// LayerDefault is the per-directory (staging/intermediate/marts/...)
// default applied with lowest precedence during manifest resolution.
type LayerDefault struct {
	Materialization manifest.Materialization
	Schema          string
	Protected       bool
	SecurityLevel   manifest.SecurityLevel
}

// ManifestLoader discovers and resolves a project's Manifest (C1).
type ManifestLoader interface {
	Load(ctx context.Context, projectDir string, cfg ProjectConfig) (*manifest.Manifest, error)
}

// SchemaSource persists schema-file reconciliation: patching an existing
// YAML contract with undocumented columns, or creating a new versioned
// contract at v1 with fuzzy-injected policies.
type SchemaSource interface {
	PatchUndocumentedColumns(ctx context.Context, node *manifest.Node, undocumented []string) error
	CreateVersionedContract(ctx context.Context, node *manifest.Node) error
}

// TemplateEngine renders a node's raw SQL body, expanding ref()/source()
// macros (and blanking free variables) per §4.10 step 1.
type TemplateEngine interface {
	Render(body string) string
}
