package quoter

import (
	"strings"
	"testing"
)

// Scenario S6.
func TestQuote_IdentifierQuotingScenario(t *testing.T) {
	input := `WITH cte_a AS (SELECT id FROM raw_t) SELECT COUNT(*), UPPER(name) FROM cte_a`
	got := Quote(input)

	for _, ident := range []string{`"cte_a"`, `"id"`, `"raw_t"`, `"name"`} {
		if !strings.Contains(got, ident) {
			t.Fatalf("expected %s to be quoted in output: %s", ident, got)
		}
	}
	for _, builtin := range []string{"COUNT", "UPPER"} {
		if strings.Contains(got, `"`+builtin+`"`) && !strings.Contains(got, `"`+strings.ToLower(builtin)+`"`) {
			t.Fatalf("builtin %s must not be quoted: %s", builtin, got)
		}
	}
	if !strings.Contains(got, "COUNT(*)") {
		t.Fatalf("expected COUNT(*) unquoted with * untouched: %s", got)
	}
}

func TestQuote_Idempotent(t *testing.T) {
	input := `SELECT "id", "name" FROM "raw_t" WHERE "id" > 10`
	got := Quote(input)
	if strings.TrimSpace(got) != strings.TrimSpace(input) {
		t.Fatalf("expected a no-op on already-quoted SQL, got:\n%s", got)
	}
}

func TestQuote_BuiltinExemption(t *testing.T) {
	for name := range builtinFuncsForTest() {
		sql := name + "(x)"
		got := Quote(sql)
		if !strings.HasPrefix(got, name+"(") {
			t.Fatalf("builtin %s must stay unquoted as the function head, got %q", name, got)
		}
	}
}

func TestQuote_LeavesKeywordsAlone(t *testing.T) {
	input := `SELECT a FROM t WHERE a IS NOT NULL GROUP BY a HAVING COUNT(*) > 1 QUALIFY ROW_NUMBER() OVER (PARTITION BY a ORDER BY a) = 1`
	got := Quote(input)
	for _, kw := range []string{"SELECT", "FROM", "WHERE", "IS", "NOT", "NULL", "GROUP", "BY", "HAVING", "QUALIFY", "OVER", "PARTITION", "ORDER"} {
		if strings.Contains(got, `"`+kw+`"`) {
			t.Fatalf("keyword %s must never be quoted, got: %s", kw, got)
		}
	}
}

func TestQuote_QualifiedNamePartsQuotedIndividually(t *testing.T) {
	got := Quote(`SELECT a.b, c."d" FROM schema.tbl`)
	if !strings.Contains(got, `"a"."b"`) {
		t.Fatalf("expected qualified name parts individually quoted, got %s", got)
	}
	if !strings.Contains(got, `"schema"."tbl"`) {
		t.Fatalf("expected schema-qualified table quoted, got %s", got)
	}
}

func TestQuote_StringLiteralsUntouched(t *testing.T) {
	got := Quote(`SELECT 'hello world', name FROM t WHERE name = 'O''Brien'`)
	if !strings.Contains(got, `'hello world'`) || !strings.Contains(got, `'O''Brien'`) {
		t.Fatalf("string literals must pass through unchanged, got %s", got)
	}
}

func TestQuote_CastTypeNameNeverQuoted(t *testing.T) {
	got := Quote(`SELECT CAST(amount AS DECIMAL(10,2)), CAST(x AS VARCHAR) FROM t`)
	for _, typ := range []string{"DECIMAL", "VARCHAR"} {
		if strings.Contains(got, `"`+typ+`"`) {
			t.Fatalf("type name %s must never be quoted in a CAST, got: %s", typ, got)
		}
	}
	for _, ident := range []string{`"amount"`, `"x"`, `"t"`} {
		if !strings.Contains(got, ident) {
			t.Fatalf("expected %s still quoted as an identifier, got: %s", ident, got)
		}
	}
}

func builtinFuncsForTest() map[string]bool { return builtinFuncs }
