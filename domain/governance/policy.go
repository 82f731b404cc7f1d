// Package governance implements the two column-masking strategies of C4/C5:
// a string-level CTE wrap for engines without plan-level governance hooks,
// and a logical-plan rewrite rule for engines that expose one. Both read
// from the same PolicySet so they can never disagree about which columns
// are masked — only about the SQL dialect idiom used to express the mask.
package governance

import (
	"strings"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
)

// PolicySet is the per-node view of column policies, built once per
// node/run and shared by both rewrite strategies.
type PolicySet struct {
	// Columns maps lowercase column name -> policy. Both masking
	// strategies and Encryption/Drop are preserved here; the string
	// rewriter (C4) can express all three, the plan rule (C5) can only
	// express masking (see ToGovernancePolicySet).
	Columns map[string]manifest.PolicyType
	Salt    string
}

// BuildPolicySet collects every column with an explicit policy from node,
// lowercasing names for case-insensitive matching against rendered SQL.
func BuildPolicySet(node *manifest.Node, salt string) PolicySet {
	ps := PolicySet{Columns: make(map[string]manifest.PolicyType), Salt: salt}
	for _, col := range node.Columns {
		if col.Policy != nil {
			ps.Columns[strings.ToLower(col.Name)] = *col.Policy
		}
	}
	return ps
}

// IsEmpty reports whether no column carries a policy, in which case both
// rewrite strategies are required to be no-ops.
func (p PolicySet) IsEmpty() bool { return len(p.Columns) == 0 }

// ToGovernancePolicySet flattens p into the masking-only view the C3
// register_governance hook and the plan rule consume. Encryption falls
// back to Hash, matching the string rewriter's §4.4 fallback. Drop columns
// have no plan-level representation (the plan rule can only substitute an
// expression in place, never remove a projection) so they are omitted: on
// the plan-governance path a Drop column's projection is left unchanged,
// and only the lineage analyzer (C9) reports its propagation to children
// that declare the same column without a policy.
func (p PolicySet) ToGovernancePolicySet() manifest.GovernancePolicySet {
	out := manifest.NewGovernancePolicySet()
	out.Salt = p.Salt
	for name, policy := range p.Columns {
		switch policy.Kind {
		case manifest.PolicyMasking:
			out.ColumnPolicies[name] = policy.Strategy
		case manifest.PolicyEncryption:
			out.ColumnPolicies[name] = manifest.MaskHash
		case manifest.PolicyDrop:
			// unrepresentable at plan level; intentionally omitted.
		}
	}
	return out
}
