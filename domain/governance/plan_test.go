package governance

import (
	"testing"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
)

// fakeExpr is a minimal in-memory Expression used to test Rule without a
// real plan-bearing engine.
type fakeExpr struct {
	column string
	alias  string
	child  *fakeExpr
	tag    string // non-empty for factory-produced masked expressions
}

func (f *fakeExpr) IsColumn() bool    { return f.column != "" }
func (f *fakeExpr) ColumnName() string { return f.column }
func (f *fakeExpr) IsAlias() bool     { return f.alias != "" }
func (f *fakeExpr) AliasName() string { return f.alias }
func (f *fakeExpr) AliasChild() Expression {
	if f.child == nil {
		return nil
	}
	return f.child
}

type fakeFactory struct{}

func (fakeFactory) Hash(col Expression, salt string) Expression   { return &fakeExpr{tag: "hash:" + salt} }
func (fakeFactory) Redact() Expression                            { return &fakeExpr{tag: "redact"} }
func (fakeFactory) MaskEmail(col Expression) Expression           { return &fakeExpr{tag: "mask_email"} }
func (fakeFactory) Nullify() Expression                           { return &fakeExpr{tag: "nullify"} }
func (fakeFactory) Partial(col Expression) Expression             { return &fakeExpr{tag: "partial"} }
func (fakeFactory) EntityPreserving(col Expression) Expression    { return &fakeExpr{tag: "entity_preserving"} }
func (fakeFactory) Alias(inner Expression, name string) Expression {
	return &fakeExpr{alias: name, child: inner.(*fakeExpr)}
}

// fakeProjection is both a ProjectionNode and a PlanNode (a leaf, no
// children), mirroring a GMS *plan.Project over a table scan.
type fakeProjection struct {
	exprs []Expression
}

func (p *fakeProjection) Expressions() []Expression { return p.exprs }
func (p *fakeProjection) WithExpressions(exprs ...Expression) (ProjectionNode, error) {
	return &fakeProjection{exprs: exprs}, nil
}
func (p *fakeProjection) Children() []PlanNode { return nil }
func (p *fakeProjection) WithChildren(children ...PlanNode) (PlanNode, error) {
	return p, nil
}
func (p *fakeProjection) AsProjection() (ProjectionNode, bool) { return p, true }

func TestRule_EmptyPolicySetIsNoOp(t *testing.T) {
	root := &fakeProjection{exprs: []Expression{&fakeExpr{column: "email"}}}
	rule := NewRule(manifest.NewGovernancePolicySet(), fakeFactory{})
	out, err := rule.Apply(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != PlanNode(root) {
		t.Fatalf("expected the exact same node back for an empty policy set")
	}
}

func TestRule_RewritesBareColumn(t *testing.T) {
	policies := manifest.NewGovernancePolicySet()
	policies.ColumnPolicies["email"] = manifest.MaskHash

	root := &fakeProjection{exprs: []Expression{
		&fakeExpr{column: "email"},
		&fakeExpr{column: "id"},
	}}
	rule := NewRule(policies, fakeFactory{})
	out, err := rule.Apply(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	proj, ok := out.AsProjection()
	if !ok {
		t.Fatal("expected a projection back")
	}
	exprs := proj.Expressions()
	if len(exprs) != 2 {
		t.Fatalf("projection count changed: got %d", len(exprs))
	}
	rewritten := exprs[0].(*fakeExpr)
	if rewritten.alias != "email" {
		t.Fatalf("expected masked expression aliased back to 'email', got alias=%q", rewritten.alias)
	}
	if rewritten.child.tag != "hash:" {
		t.Fatalf("expected hash expression, got tag=%q", rewritten.child.tag)
	}
	// the untouched column passes through by identity
	if exprs[1].(*fakeExpr).column != "id" {
		t.Fatalf("expected id column untouched")
	}
}

func TestRule_RewritesAliasedColumn(t *testing.T) {
	policies := manifest.NewGovernancePolicySet()
	policies.ColumnPolicies["ssn"] = manifest.MaskRedact

	root := &fakeProjection{exprs: []Expression{
		&fakeExpr{alias: "social", child: &fakeExpr{column: "ssn"}},
	}}
	rule := NewRule(policies, fakeFactory{})
	out, _ := rule.Apply(root)
	proj, _ := out.AsProjection()
	rewritten := proj.Expressions()[0].(*fakeExpr)
	if rewritten.alias != "social" {
		t.Fatalf("expected original alias preserved, got %q", rewritten.alias)
	}
	if rewritten.child.tag != "redact" {
		t.Fatalf("expected redact expression, got %q", rewritten.child.tag)
	}
}

func TestRule_SaltAppliedToHash(t *testing.T) {
	policies := manifest.NewGovernancePolicySet()
	policies.ColumnPolicies["email"] = manifest.MaskHash
	policies.Salt = "pepper"

	root := &fakeProjection{exprs: []Expression{&fakeExpr{column: "email"}}}
	rule := NewRule(policies, fakeFactory{})
	out, _ := rule.Apply(root)
	proj, _ := out.AsProjection()
	rewritten := proj.Expressions()[0].(*fakeExpr)
	if rewritten.child.tag != "hash:pepper" {
		t.Fatalf("expected salt threaded into hash expression, got %q", rewritten.child.tag)
	}
}
