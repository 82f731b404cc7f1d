package governance

import (
	"strings"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
)

// Expression is the minimal shape of a logical-plan expression node this
// package needs to inspect: whether it is a bare column reference or a
// top-level alias wrapping one. Modeled on go-mysql-server's
// sql.Expression / expression.GetField / expression.Alias; a thin adapter
// in infrastructure/adapters/gms implements this over the real types so
// this package stays testable without importing the engine.
type Expression interface {
	IsColumn() bool
	ColumnName() string // valid only when IsColumn()
	IsAlias() bool
	AliasName() string      // valid only when IsAlias()
	AliasChild() Expression // valid only when IsAlias()
}

// ProjectionNode is a plan node exposing its projected expression list, the
// GMS equivalent of sql.Expressioner (Expressions()/WithExpressions()).
type ProjectionNode interface {
	Expressions() []Expression
	WithExpressions(exprs ...Expression) (ProjectionNode, error)
}

// PlanNode is a generic logical-plan tree node, the minimal shape of
// go-mysql-server's sql.Node this package needs to walk the tree and
// rewrite the Projection nodes it finds.
type PlanNode interface {
	Children() []PlanNode
	WithChildren(children ...PlanNode) (PlanNode, error)
	// AsProjection reports whether this node is also a ProjectionNode that
	// WithChildren has already rebuilt into the new PlanNode value.
	AsProjection() (ProjectionNode, bool)
}

// ExpressionFactory builds the masked replacement expression for a given
// masking strategy. Concrete engines implement this against their own
// expression-construction API (e.g. go-mysql-server's expression package);
// this package only decides WHICH columns get WHICH strategy.
type ExpressionFactory interface {
	Hash(col Expression, salt string) Expression
	Redact() Expression
	MaskEmail(col Expression) Expression
	Nullify() Expression
	Partial(col Expression) Expression
	EntityPreserving(col Expression) Expression
	Alias(inner Expression, name string) Expression
}

// Rule is the plan-level governance rule (C5): for every Projection node in
// the tree, substitute masked expressions for columns named in policies,
// preserving the original output alias. If policies is empty the rule must
// be a complete no-op — it never touches the plan.
type Rule struct {
	Policies manifest.GovernancePolicySet
	Factory  ExpressionFactory
}

func NewRule(policies manifest.GovernancePolicySet, factory ExpressionFactory) *Rule {
	return &Rule{Policies: policies, Factory: factory}
}

// Name matches the Rust AnalyzerRule's identifier, kept for parity in logs.
func (r *Rule) Name() string { return "verity_governance_masking" }

// Apply walks root, rewriting every Projection node it finds. No node is
// added or removed; a Projection's expression count and alias names are
// preserved exactly.
func (r *Rule) Apply(root PlanNode) (PlanNode, error) {
	if len(r.Policies.ColumnPolicies) == 0 {
		return root, nil
	}
	return r.transform(root)
}

func (r *Rule) transform(node PlanNode) (PlanNode, error) {
	children := node.Children()
	newChildren := make([]PlanNode, len(children))
	changed := false
	for i, c := range children {
		nc, err := r.transform(c)
		if err != nil {
			return nil, err
		}
		newChildren[i] = nc
		if nc != c {
			changed = true
		}
	}

	result := node
	if changed {
		rebuilt, err := node.WithChildren(newChildren...)
		if err != nil {
			return nil, err
		}
		result = rebuilt
	}

	if proj, ok := result.AsProjection(); ok {
		newProj, err := r.rewriteProjection(proj)
		if err != nil {
			return nil, err
		}
		if pn, ok := newProj.(PlanNode); ok {
			return pn, nil
		}
	}
	return result, nil
}

func (r *Rule) rewriteProjection(proj ProjectionNode) (ProjectionNode, error) {
	exprs := proj.Expressions()
	newExprs := make([]Expression, len(exprs))
	changed := false
	for i, e := range exprs {
		newExprs[i] = r.rewriteExpr(e)
		if newExprs[i] != e {
			changed = true
		}
	}
	if !changed {
		return proj, nil
	}
	return proj.WithExpressions(newExprs...)
}

// rewriteExpr mirrors GovernanceRule::rewrite_expr in the original
// DataFusion implementation: bare columns and top-level column aliases are
// candidates; everything else passes through untouched.
func (r *Rule) rewriteExpr(e Expression) Expression {
	switch {
	case e.IsColumn():
		name := strings.ToLower(e.ColumnName())
		if strategy, ok := r.Policies.ColumnPolicies[name]; ok {
			return r.Factory.Alias(r.buildMaskExpr(strategy, e), e.ColumnName())
		}
		return e
	case e.IsAlias():
		inner := e.AliasChild()
		if inner != nil && inner.IsColumn() {
			name := strings.ToLower(inner.ColumnName())
			if strategy, ok := r.Policies.ColumnPolicies[name]; ok {
				return r.Factory.Alias(r.buildMaskExpr(strategy, inner), e.AliasName())
			}
		}
		return e
	default:
		return e
	}
}

func (r *Rule) buildMaskExpr(strategy manifest.MaskingStrategy, col Expression) Expression {
	switch strategy {
	case manifest.MaskHash:
		return r.Factory.Hash(col, r.Policies.Salt)
	case manifest.MaskRedact:
		return r.Factory.Redact()
	case manifest.MaskEmail:
		return r.Factory.MaskEmail(col)
	case manifest.MaskNullify:
		return r.Factory.Nullify()
	case manifest.MaskPartial:
		return r.Factory.Partial(col)
	case manifest.MaskEntityPreserving:
		return r.Factory.EntityPreserving(col)
	default:
		return r.Factory.Redact()
	}
}
