// Package materialize implements C6: given rewritten SQL and a node
// config, emit the correct DDL — honoring the "protected" flag's
// never-destructive guarantee — and report the concrete kind used.
package materialize

import (
	"context"
	"fmt"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/ports"
)

// Result is the outcome of materializing a single node.
type Result struct {
	Kind    string // "ephemeral", "table", or "view"
	Warning string // non-empty when the spec's Incremental fallback applied
}

// Materialize applies config K's materialization policy for node name N
// with rewritten SQL S against connector.
func Materialize(ctx context.Context, connector ports.Connector, name, sql string, cfg manifest.NodeConfig) (Result, error) {
	materialization := cfg.Materialization
	if materialization == "" {
		materialization = manifest.MaterializationView
	}

	if materialization == manifest.MaterializationEphemeral {
		return Result{Kind: "ephemeral"}, nil
	}

	var warning string
	kind := ports.KindView
	switch materialization {
	case manifest.MaterializationTable:
		kind = ports.KindTable
	case manifest.MaterializationIncremental:
		kind = ports.KindTable
		warning = fmt.Sprintf("model %q requested incremental materialization; falling back to table", name)
	case manifest.MaterializationView:
		kind = ports.KindView
	}

	if cfg.Protected {
		ddlKind := "VIEW"
		if kind == ports.KindTable {
			ddlKind = "TABLE"
		}
		ddl := fmt.Sprintf("CREATE %s IF NOT EXISTS %s AS %s", ddlKind, name, sql)
		if err := connector.Execute(ctx, ddl); err != nil {
			return Result{}, err
		}
		return Result{Kind: string(kind), Warning: warning}, nil
	}

	applied, err := connector.Materialize(ctx, name, sql, kind)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: string(applied), Warning: warning}, nil
}
