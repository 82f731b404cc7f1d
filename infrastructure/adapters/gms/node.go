package gms

import (
	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/plan"

	"github.com/axel-mauroy/verity-governance-as-code/domain/governance"
)

// planNode adapts a real sql.Node onto domain/governance.PlanNode.
type planNode struct {
	node sql.Node
}

func wrapNode(n sql.Node) governance.PlanNode { return planNode{node: n} }

func unwrapNode(p governance.PlanNode) (sql.Node, bool) {
	switch pn := p.(type) {
	case planNode:
		return pn.node, true
	case projectionNode:
		return pn.project, true
	default:
		return nil, false
	}
}

func (p planNode) Children() []governance.PlanNode {
	children := p.node.Children()
	out := make([]governance.PlanNode, len(children))
	for i, c := range children {
		out[i] = planNode{node: c}
	}
	return out
}

func (p planNode) WithChildren(children ...governance.PlanNode) (governance.PlanNode, error) {
	raw := make([]sql.Node, len(children))
	for i, c := range children {
		n, ok := unwrapNode(c)
		if !ok {
			return nil, errNotAPlanNode
		}
		raw[i] = n
	}
	rebuilt, err := p.node.WithChildren(raw...)
	if err != nil {
		return nil, err
	}
	return planNode{node: rebuilt}, nil
}

func (p planNode) AsProjection() (governance.ProjectionNode, bool) {
	proj, ok := p.node.(*plan.Project)
	if !ok {
		return nil, false
	}
	return projectionNode{project: proj}, true
}

// projectionNode adapts *plan.Project onto domain/governance.ProjectionNode.
type projectionNode struct {
	project *plan.Project
}

func (p projectionNode) Expressions() []governance.Expression {
	exprs := p.project.Expressions()
	out := make([]governance.Expression, len(exprs))
	for i, e := range exprs {
		out[i] = wrapExpr(e)
	}
	return out
}

func (p projectionNode) WithExpressions(exprs ...governance.Expression) (governance.ProjectionNode, error) {
	raw := make([]sql.Expression, len(exprs))
	for i, e := range exprs {
		raw[i] = unwrapExpr(e)
	}
	rebuilt, err := p.project.WithExpressions(raw...)
	if err != nil {
		return nil, err
	}
	newProject, ok := rebuilt.(*plan.Project)
	if !ok {
		return nil, errNotAProjection
	}
	return projectionNode{project: newProject}, nil
}

// projectionNode also satisfies governance.PlanNode so that, once
// rewritten, it can be returned directly as the new tree node by
// Rule.transform's type-assertion against PlanNode.
func (p projectionNode) Children() []governance.PlanNode {
	return planNode{node: p.project}.Children()
}

func (p projectionNode) WithChildren(children ...governance.PlanNode) (governance.PlanNode, error) {
	return planNode{node: p.project}.WithChildren(children...)
}

func (p projectionNode) AsProjection() (governance.ProjectionNode, bool) {
	return p, true
}
