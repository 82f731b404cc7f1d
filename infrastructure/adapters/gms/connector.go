// Package gms implements the Connector port (C3) against an embedded
// github.com/dolthub/go-mysql-server engine. Unlike the Postgres adapter,
// this engine supports plan-level governance (C5): RegisterGovernance
// installs an analyzer rule once per engine instance instead of rewriting
// SQL text per node.
package gms

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dolthub/go-mysql-server/memory"
	"github.com/dolthub/go-mysql-server/sql"
	gmssqle "github.com/dolthub/go-mysql-server"
	"github.com/dolthub/go-mysql-server/sql/analyzer"

	"github.com/axel-mauroy/verity-governance-as-code/domain/governance"
	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
	"github.com/axel-mauroy/verity-governance-as-code/ports"
)

// ruleID is the analyzer batch/rule identifier the governance rule is
// registered under, kept stable for log parity with the policy name.
const ruleID analyzer.RuleId = 9001

// Connector implements ports.Connector against an in-memory GMS engine.
type Connector struct {
	mu       sync.Mutex
	engine   *gmssqle.Engine
	db       *memory.Database
	provider *memory.DbProvider
	dbName   string
}

// New creates a Connector backed by a fresh in-memory database named
// dbName ("verity" if empty).
func New(dbName string) *Connector {
	if dbName == "" {
		dbName = "verity"
	}
	db := memory.NewDatabase(dbName)
	provider := memory.NewDBProvider(db)
	engine := gmssqle.NewDefault(provider)

	return &Connector{engine: engine, db: db, provider: provider, dbName: dbName}
}

func (c *Connector) ctx() *sql.Context {
	return sql.NewContext(context.Background(), sql.WithSession(sql.NewBaseSession()))
}

// Execute runs a statement with no result set.
func (c *Connector) Execute(ctx context.Context, query string) error {
	_, iter, _, err := c.engine.Query(c.ctx(), c.qualify(query))
	if err != nil {
		return verrors.Database("execute failed", err)
	}
	return drain(iter)
}

// FetchColumns introspects a realized table's schema via the provider,
// in column declaration order.
func (c *Connector) FetchColumns(ctx context.Context, table string) ([]ports.ColumnSchema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok, err := c.db.GetTableInsensitive(c.ctx(), table)
	if err != nil {
		return nil, verrors.Database("fetch_columns failed", err)
	}
	if !ok {
		return nil, verrors.Database("fetch_columns: table not found: "+table, nil)
	}

	schema := t.Schema()
	cols := make([]ports.ColumnSchema, 0, len(schema))
	for _, col := range schema {
		cols = append(cols, ports.ColumnSchema{
			Name:       col.Name,
			DataType:   col.Type.String(),
			IsNullable: col.Nullable,
		})
	}
	return cols, nil
}

// FetchSample returns up to limit rows from query as column-name-keyed maps.
func (c *Connector) FetchSample(ctx context.Context, query string, limit int) ([]map[string]any, error) {
	schema, iter, _, err := c.engine.Query(c.ctx(), fmt.Sprintf("SELECT * FROM (%s) AS verity_sample LIMIT %d", c.qualify(query), limit))
	if err != nil {
		return nil, verrors.Database("fetch_sample failed", err)
	}
	defer iter.Close(c.ctx())

	var out []map[string]any
	for {
		row, err := iter.Next(c.ctx())
		if err != nil {
			if err.Error() == "EOF" {
				break
			}
			break
		}
		m := make(map[string]any, len(schema))
		for i, col := range schema {
			if i < len(row) {
				m[col.Name] = row[i]
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// RegisterSource is a no-op that returns nil: the embedded engine has no
// native file-backed table provider, so no table is created for the file
// and source data is only queryable if it already exists in the engine.
func (c *Connector) RegisterSource(ctx context.Context, name, absolutePath string) error {
	return nil
}

// Materialize applies query under name as a table (the in-memory engine
// has no distinct view storage, so both kinds resolve to a table, same
// as the incremental fallback documented in §4.6).
func (c *Connector) Materialize(ctx context.Context, name, query string, kind ports.MaterializationKind) (ports.MaterializationKind, error) {
	stmt := fmt.Sprintf("CREATE TABLE %s AS %s", name, c.qualify(query))
	_, iter, _, err := c.engine.Query(c.ctx(), stmt)
	if err != nil {
		return "", verrors.Database("materialize failed", err)
	}
	if err := drain(iter); err != nil {
		return "", err
	}
	return ports.KindTable, nil
}

// QueryScalar runs query and returns its single result column as uint64.
func (c *Connector) QueryScalar(ctx context.Context, query string) (uint64, error) {
	_, iter, _, err := c.engine.Query(c.ctx(), c.qualify(query))
	if err != nil {
		return 0, verrors.Database("query_scalar failed", err)
	}
	defer iter.Close(c.ctx())

	row, err := iter.Next(c.ctx())
	if err != nil || len(row) == 0 {
		return 0, nil
	}
	return toUint64(row[0]), nil
}

// FetchColumnAverages computes mean(col) for every column in cols in a
// single query.
func (c *Connector) FetchColumnAverages(ctx context.Context, table string, cols []string) (map[string]float64, error) {
	if len(cols) == 0 {
		return map[string]float64{}, nil
	}
	selects := make([]string, 0, len(cols))
	for _, col := range cols {
		selects = append(selects, fmt.Sprintf("AVG(%s) AS %s", col, col))
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selects, ", "), table)

	_, iter, _, err := c.engine.Query(c.ctx(), c.qualify(query))
	if err != nil {
		return nil, verrors.Database("fetch_column_averages failed", err)
	}
	defer iter.Close(c.ctx())

	row, err := iter.Next(c.ctx())
	if err != nil {
		return nil, verrors.Database("fetch_column_averages: no rows", err)
	}
	out := make(map[string]float64, len(cols))
	for i, col := range cols {
		if i < len(row) {
			out[col] = toFloat64(row[i])
		}
	}
	return out, nil
}

// SupportsPlanGovernance reports true: this engine installs a real
// plan-rewrite analyzer rule rather than string-rewriting SQL.
func (c *Connector) SupportsPlanGovernance() bool { return true }

// RegisterGovernance installs the masking rule into the engine's
// analyzer, once per engine instance, bridging domain/governance's
// engine-agnostic Rule onto GMS's real sql.Node/sql.Expression types via
// the adapters in this package (node.go, expr.go, factory.go).
func (c *Connector) RegisterGovernance(policies manifest.GovernancePolicySet) error {
	rule := governance.NewRule(policies, exprFactory{})
	c.engine.Analyzer.Rules = append(c.engine.Analyzer.Rules, analyzer.Rule{
		Id: ruleID,
		Apply: func(gctx *sql.Context, a *analyzer.Analyzer, n sql.Node, scope *sql.Scope, sel analyzer.RuleSelector, qflags *sql.QueryFlags) (sql.Node, analyzer.TransformInfo, error) {
			rewritten, err := rule.Apply(wrapNode(n))
			if err != nil {
				return n, analyzer.TransformInfo{}, err
			}
			out, ok := unwrapNode(rewritten)
			if !ok {
				return n, analyzer.TransformInfo{}, nil
			}
			return out, analyzer.TransformInfo{}, nil
		},
	})
	return nil
}

func (c *Connector) EngineName() string { return "gms" }

// qualify is a no-op hook kept for symmetry with the Postgres adapter;
// the in-memory engine resolves unqualified table names against its one
// database directly.
func (c *Connector) qualify(query string) string { return query }

func drain(iter sql.RowIter) error {
	ctx := sql.NewContext(context.Background(), sql.WithSession(sql.NewBaseSession()))
	defer iter.Close(ctx)
	for {
		if _, err := iter.Next(ctx); err != nil {
			return nil
		}
	}
}

func toUint64(v any) uint64 {
	switch n := v.(type) {
	case int64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case int32:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case uint64:
		return n
	case float64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	default:
		return 0
	}
}
