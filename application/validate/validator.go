// Package validate implements C7: after materialization, introspect the
// realized relation's schema, detect undocumented columns, and run
// column-level data tests as engine-level assertions.
package validate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/ports"
)

// Result carries the schema-reconciliation and test-assertion outcome for
// one node.
type Result struct {
	// Undocumented holds realized columns absent from the declared
	// schema, lower-cased; not a failure condition, just data for
	// schema-file patching.
	Undocumented []string
}

// UnknownTestWarning is returned (never as a fatal error) when a column
// test name has no known assertion; callers should log and skip it.
type UnknownTestWarning struct {
	Column string
	Test   string
}

func (w UnknownTestWarning) String() string {
	return fmt.Sprintf("unknown data test %q on column %q: skipped", w.Test, w.Column)
}

// Validate runs C7 against node's materialized relation.
func Validate(ctx context.Context, connector ports.Connector, node *manifest.Node) (Result, []UnknownTestWarning, error) {
	realized, err := connector.FetchColumns(ctx, node.Name)
	if err != nil {
		return Result{}, nil, err
	}

	actual := make(map[string]bool, len(realized))
	for _, c := range realized {
		actual[strings.ToLower(c.Name)] = true
	}
	expected := make(map[string]bool, len(node.Columns))
	for _, c := range node.Columns {
		expected[strings.ToLower(c.Name)] = true
	}

	var undocumented []string
	for name := range actual {
		if !expected[name] {
			undocumented = append(undocumented, name)
		}
	}
	sort.Strings(undocumented)

	var warnings []UnknownTestWarning
	for _, col := range node.Columns {
		for _, test := range col.Tests {
			assertion, ok := buildAssertion(test, node.Name, col.Name)
			if !ok {
				warnings = append(warnings, UnknownTestWarning{Column: col.Name, Test: test})
				continue
			}
			if err := connector.Execute(ctx, assertion); err != nil {
				return Result{Undocumented: undocumented}, warnings, err
			}
		}
	}

	return Result{Undocumented: undocumented}, warnings, nil
}

// buildAssertion renders the two mandatory data tests into an SQL
// assertion that coerces a failure into an engine-level error via the
// error(msg) UDF the engine is expected to expose (§4.7).
func buildAssertion(test, table, column string) (string, bool) {
	switch test {
	case "not_null":
		return fmt.Sprintf(
			"SELECT CASE WHEN COUNT(*)>0 THEN error('column %s.%s has null values') ELSE 0 END FROM %s WHERE %s IS NULL",
			table, column, table, column,
		), true
	case "unique":
		return fmt.Sprintf(
			"SELECT CASE WHEN count(*)>0 THEN error('column %s.%s has duplicate values') ELSE 0 END FROM (SELECT %s FROM %s GROUP BY %s HAVING count(*)>1)",
			table, column, column, table, column,
		), true
	default:
		return "", false
	}
}
