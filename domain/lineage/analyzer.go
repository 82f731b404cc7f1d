// Package lineage implements C9: a static, pure-function pre-flight walk
// over the manifest proving every PII column flow from parent to child is
// secured and that security levels never downgrade across an edge.
package lineage

import (
	"fmt"
	"sort"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
)

// ViolationKind distinguishes the two classes of lineage violation in §4.9.
type ViolationKind string

const (
	ViolationUnprotectedPII    ViolationKind = "unprotected_pii"
	ViolationSecurityDowngrade ViolationKind = "security_downgrade"
)

// Violation records a single lineage finding.
type Violation struct {
	Kind     ViolationKind
	Parent   string
	Child    string
	Column   string // "*" for a security-level downgrade
	Policy   string // parent's policy string, empty for downgrades
}

// Edge is a single parent -> child dependency surfaced in the report.
type Edge struct {
	From string
	To   string
}

// Report is the deterministic lineage analysis output: nodes sorted by
// name, edges sorted lexicographically by (from,to), violations sorted by
// (downstream_node, column).
type Report struct {
	Nodes      []string
	Edges      []Edge
	Violations []Violation
}

// HasViolations reports whether the --check CLI flag should exit non-zero.
func (r Report) HasViolations() bool { return len(r.Violations) > 0 }

// Analyze walks m, a pure function with no I/O, emitting every unprotected
// PII propagation and every security-level downgrade across a ref edge.
func Analyze(m *manifest.Manifest) Report {
	report := Report{Nodes: m.SortedNodeNames()}

	for _, childName := range report.Nodes {
		child := m.Nodes[childName]
		for _, parentName := range child.Refs {
			parent, ok := m.Nodes[parentName]
			if !ok {
				continue // dangling refs are the scheduler's concern, not lineage's
			}
			report.Edges = append(report.Edges, Edge{From: parentName, To: childName})

			for _, parentCol := range parent.Columns {
				if parentCol.Policy == nil {
					continue
				}
				childCol := child.ColumnByName(parentCol.Name)
				if childCol != nil && childCol.Policy == nil {
					report.Violations = append(report.Violations, Violation{
						Kind:   ViolationUnprotectedPII,
						Parent: parentName,
						Child:  childName,
						Column: parentCol.Name,
						Policy: parentCol.Policy.String(),
					})
				}
			}

			if child.SecurityLevel < parent.SecurityLevel {
				report.Violations = append(report.Violations, Violation{
					Kind:   ViolationSecurityDowngrade,
					Parent: parentName,
					Child:  childName,
					Column: "*",
				})
			}
		}
	}

	sort.Slice(report.Edges, func(i, j int) bool {
		if report.Edges[i].From != report.Edges[j].From {
			return report.Edges[i].From < report.Edges[j].From
		}
		return report.Edges[i].To < report.Edges[j].To
	})
	sort.Slice(report.Violations, func(i, j int) bool {
		if report.Violations[i].Child != report.Violations[j].Child {
			return report.Violations[i].Child < report.Violations[j].Child
		}
		return report.Violations[i].Column < report.Violations[j].Column
	})

	return report
}

// Summary renders a one-line human summary for the CLI's crisp failure
// banner, naming the first violation when any exist.
func (r Report) Summary() string {
	if !r.HasViolations() {
		return fmt.Sprintf("lineage clean: %d nodes, %d edges", len(r.Nodes), len(r.Edges))
	}
	v := r.Violations[0]
	if v.Kind == ViolationSecurityDowngrade {
		return fmt.Sprintf("%d violation(s); first: %s -> %s downgrades security level", len(r.Violations), v.Parent, v.Child)
	}
	return fmt.Sprintf("%d violation(s); first: column %q flows unsecured %s -> %s (parent policy %s)",
		len(r.Violations), v.Column, v.Parent, v.Child, v.Policy)
}
