package gms

import (
	"errors"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/expression"

	"github.com/axel-mauroy/verity-governance-as-code/domain/governance"
)

var (
	errNotAPlanNode   = errors.New("gms: expected a wrapped plan node")
	errNotAProjection = errors.New("gms: WithExpressions did not yield a *plan.Project")
)

// exprNode adapts a real sql.Expression onto domain/governance.Expression.
type exprNode struct {
	expr sql.Expression
}

func wrapExpr(e sql.Expression) governance.Expression { return exprNode{expr: e} }

func unwrapExpr(e governance.Expression) sql.Expression {
	en, ok := e.(exprNode)
	if !ok {
		return nil
	}
	return en.expr
}

func (e exprNode) IsColumn() bool {
	_, ok := e.expr.(*expression.GetField)
	return ok
}

func (e exprNode) ColumnName() string {
	gf, ok := e.expr.(*expression.GetField)
	if !ok {
		return ""
	}
	return gf.Name()
}

func (e exprNode) IsAlias() bool {
	_, ok := e.expr.(*expression.Alias)
	return ok
}

func (e exprNode) AliasName() string {
	al, ok := e.expr.(*expression.Alias)
	if !ok {
		return ""
	}
	return al.Name()
}

func (e exprNode) AliasChild() governance.Expression {
	al, ok := e.expr.(*expression.Alias)
	if !ok {
		return nil
	}
	children := al.Children()
	if len(children) == 0 {
		return nil
	}
	return wrapExpr(children[0])
}
