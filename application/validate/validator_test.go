package validate

import (
	"context"
	"strings"
	"testing"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/ports"
)

type fakeConnector struct {
	ports.Connector
	columns  []ports.ColumnSchema
	executed []string
}

func (f *fakeConnector) FetchColumns(ctx context.Context, table string) ([]ports.ColumnSchema, error) {
	return f.columns, nil
}

func (f *fakeConnector) Execute(ctx context.Context, sql string) error {
	f.executed = append(f.executed, sql)
	return nil
}

func TestValidate_DetectsUndocumentedColumns(t *testing.T) {
	conn := &fakeConnector{columns: []ports.ColumnSchema{{Name: "id"}, {Name: "email"}, {Name: "extra_col"}}}
	node := &manifest.Node{Name: "n", Columns: []manifest.Column{{Name: "id"}, {Name: "email"}}}

	result, _, err := Validate(context.Background(), conn, node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Undocumented) != 1 || result.Undocumented[0] != "extra_col" {
		t.Fatalf("expected [extra_col], got %v", result.Undocumented)
	}
}

func TestValidate_RunsMandatoryAssertions(t *testing.T) {
	conn := &fakeConnector{columns: []ports.ColumnSchema{{Name: "id"}}}
	node := &manifest.Node{Name: "n", Columns: []manifest.Column{{Name: "id", Tests: []string{"not_null", "unique"}}}}

	_, warnings, err := Validate(context.Background(), conn, node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if len(conn.executed) != 2 {
		t.Fatalf("expected 2 assertion statements, got %d", len(conn.executed))
	}
	if !strings.Contains(conn.executed[0], "IS NULL") {
		t.Fatalf("expected not_null assertion first, got %q", conn.executed[0])
	}
}

func TestValidate_UnknownTestWarnsAndSkips(t *testing.T) {
	conn := &fakeConnector{columns: []ports.ColumnSchema{{Name: "id"}}}
	node := &manifest.Node{Name: "n", Columns: []manifest.Column{{Name: "id", Tests: []string{"bogus_test"}}}}

	_, warnings, err := Validate(context.Background(), conn, node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 || warnings[0].Test != "bogus_test" {
		t.Fatalf("expected one unknown-test warning, got %v", warnings)
	}
	if len(conn.executed) != 0 {
		t.Fatal("unknown test must not emit an assertion")
	}
}
