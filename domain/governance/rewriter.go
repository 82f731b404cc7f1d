package governance

import (
	"fmt"
	"strings"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
)

const cteName = "verity_governance_cte"

// RewriteSQL implements the string-level policy rewriter (C4), used only
// when the engine reports supports_plan_governance() == false. It wraps the
// compiled SQL S in a CTE and emits one projection per node column, in
// column declaration order: masked (or omitted) when the node's PolicySet
// names the column, passed through unchanged otherwise.
func RewriteSQL(sql string, node *manifest.Node) string {
	ps := BuildPolicySet(node, "")
	if len(node.Columns) == 0 || ps.IsEmpty() {
		return sql
	}

	var projections []string
	for _, col := range node.Columns {
		policy, ok := ps.Columns[strings.ToLower(col.Name)]
		if !ok {
			projections = append(projections, fmt.Sprintf("%s AS %s", col.Name, col.Name))
			continue
		}
		expr, drop := maskExpression(&policy, col.Name)
		if drop {
			continue
		}
		projections = append(projections, expr)
	}

	if len(projections) == 0 {
		return fmt.Sprintf("WITH %s AS (%s) SELECT 1 AS _verity_empty FROM %s LIMIT 0", cteName, sql, cteName)
	}

	return fmt.Sprintf("WITH %s AS (%s) SELECT %s FROM %s", cteName, sql, strings.Join(projections, ", "), cteName)
}

// maskExpression returns the masked projection expression (aliased to col)
// for the given policy, per the §4.4 table. The second return value is true
// when the column must be omitted entirely (Drop).
func maskExpression(policy *manifest.PolicyType, col string) (string, bool) {
	switch policy.Kind {
	case manifest.PolicyDrop:
		return "", true
	case manifest.PolicyEncryption:
		return hashExpr(col), false
	case manifest.PolicyMasking:
		switch policy.Strategy {
		case manifest.MaskHash:
			return hashExpr(col), false
		case manifest.MaskRedact:
			return fmt.Sprintf("'REDACTED' AS %s", col), false
		case manifest.MaskEmail:
			return fmt.Sprintf(`regexp_replace(%s,'(^.).*(@.*$)','\1****\2') AS %s`, col, col), false
		case manifest.MaskNullify:
			return fmt.Sprintf("NULL AS %s", col), false
		case manifest.MaskPartial:
			return fmt.Sprintf("concat(left(CAST(%s AS VARCHAR),2),'***') AS %s", col, col), false
		case manifest.MaskEntityPreserving:
			return fmt.Sprintf("concat('[PRESERVED_', length(CAST(%s AS VARCHAR)),']') AS %s", col, col), false
		}
	}
	// Unreachable for well-formed policies; behave as Redact rather than
	// silently leak the raw column.
	return fmt.Sprintf("'REDACTED' AS %s", col), false
}

func hashExpr(col string) string {
	return fmt.Sprintf("encode(sha256(CAST(%s AS VARCHAR)), 'hex') AS %s", col, col)
}
