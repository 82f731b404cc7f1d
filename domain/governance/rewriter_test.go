package governance

import (
	"strings"
	"testing"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
)

func hashPolicy() *manifest.PolicyType {
	p := manifest.MaskingPolicy(manifest.MaskHash)
	return &p
}

func dropPolicy() *manifest.PolicyType {
	p := manifest.DropPolicy()
	return &p
}

func TestRewriteSQL_NoPolicyIsVerbatim(t *testing.T) {
	node := &manifest.Node{Columns: []manifest.Column{{Name: "id"}, {Name: "name"}}}
	sql := "SELECT id, name FROM raw_t"
	got := RewriteSQL(sql, node)
	if got != sql {
		t.Fatalf("expected verbatim passthrough, got %q", got)
	}
}

func TestRewriteSQL_Idempotence_NoPolicy(t *testing.T) {
	node := &manifest.Node{}
	sql := "SELECT 1"
	first := RewriteSQL(sql, node)
	second := RewriteSQL(first, node)
	if first != second {
		t.Fatalf("expected idempotent no-op, got %q then %q", first, second)
	}
}

func TestRewriteSQL_MaskNeverLeaks(t *testing.T) {
	node := &manifest.Node{Columns: []manifest.Column{
		{Name: "email", Policy: hashPolicy()},
		{Name: "name"},
	}}
	got := RewriteSQL("SELECT email, name FROM stg_users", node)
	if !strings.Contains(got, "sha256") {
		t.Fatalf("expected hash expression in output, got %q", got)
	}
	// The CTE body carries the input verbatim; only the outermost SELECT
	// (after the CTE's closing parenthesis) is the rewritten projection.
	outer := got[strings.LastIndex(got, ") SELECT ")+2:]
	if strings.Contains(outer, "SELECT email,") {
		t.Fatalf("raw email column leaked in outermost SELECT: %q", got)
	}
}

func TestRewriteSQL_DropOmitsColumn(t *testing.T) {
	node := &manifest.Node{Columns: []manifest.Column{
		{Name: "ssn", Policy: dropPolicy()},
		{Name: "name"},
	}}
	got := RewriteSQL("SELECT ssn, name FROM t", node)
	outer := got[strings.LastIndex(got, ") SELECT ")+2:]
	if strings.Contains(outer, "ssn") {
		t.Fatalf("dropped column must not appear in output: %q", got)
	}
	if !strings.Contains(outer, "name") {
		t.Fatalf("expected surviving column in output: %q", got)
	}
}

func TestRewriteSQL_AllDroppedEmitsEmptyProjection(t *testing.T) {
	node := &manifest.Node{Columns: []manifest.Column{{Name: "ssn", Policy: dropPolicy()}}}
	got := RewriteSQL("SELECT ssn FROM t", node)
	if !strings.Contains(got, "_verity_empty") || !strings.Contains(got, "LIMIT 0") {
		t.Fatalf("expected empty-projection fallback, got %q", got)
	}
}
