package gms

import (
	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/expression"
	"github.com/dolthub/go-mysql-server/sql/expression/function"

	"github.com/axel-mauroy/verity-governance-as-code/domain/governance"
)

// exprFactory builds masked replacement expressions against real GMS
// expression types, mirroring the masking table of §4.4 but as a logical
// plan rewrite instead of SQL text substitution.
type exprFactory struct{}

func lit(v any, t sql.Type) sql.Expression { return expression.NewLiteral(v, t) }

func col(e governance.Expression) sql.Expression { return unwrapExpr(e) }

func (f exprFactory) Hash(c governance.Expression, salt string) governance.Expression {
	salted := expression.NewConcat(col(c), lit(salt, sql.LongText))
	casted := expression.NewConvert(salted, expression.ConvertToChar)
	hashed := function.NewSHA2(casted, lit(int64(256), sql.Int64))
	return wrapExpr(hashed)
}

func (f exprFactory) Redact() governance.Expression {
	return wrapExpr(lit("REDACTED", sql.LongText))
}

func (f exprFactory) MaskEmail(c governance.Expression) governance.Expression {
	pattern := lit(`(^.).*(@.*$)`, sql.LongText)
	replacement := lit(`\1****\2`, sql.LongText)
	masked, _ := function.NewRegexpReplace(sql.NewEmptyContext(), col(c), pattern, replacement)
	return wrapExpr(masked)
}

func (f exprFactory) Nullify() governance.Expression {
	return wrapExpr(expression.NewLiteral(nil, sql.Null))
}

func (f exprFactory) Partial(c governance.Expression) governance.Expression {
	casted := expression.NewConvert(col(c), expression.ConvertToChar)
	left := function.NewSubstring(casted, lit(int64(1), sql.Int64), lit(int64(2), sql.Int64))
	suffix := lit("***", sql.LongText)
	return wrapExpr(expression.NewConcat(left, suffix))
}

func (f exprFactory) EntityPreserving(c governance.Expression) governance.Expression {
	casted := expression.NewConvert(col(c), expression.ConvertToChar)
	length := function.NewLength(casted)
	prefix := lit("[PRESERVED_", sql.LongText)
	suffix := lit("]", sql.LongText)
	concatenated := expression.NewConcat(prefix, expression.NewConcat(expression.NewConvert(length, expression.ConvertToChar), suffix))
	return wrapExpr(concatenated)
}

func (f exprFactory) Alias(inner governance.Expression, name string) governance.Expression {
	return wrapExpr(expression.NewAlias(name, col(inner)))
}
