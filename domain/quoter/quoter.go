// Package quoter implements C11: force double-quoted identifiers onto
// every table reference, column identifier, and alias in an arbitrary SQL
// statement, while leaving built-in function names, string/numeric
// literals, and already-quoted identifiers untouched.
//
// This is a hand-rolled single-pass tokenizer, not a grammar parser. A full
// MySQL-grammar AST (as go-mysql-server's vitess-derived parser implements)
// rejects valid analytic SQL this engine must accept, notably QUALIFY — so
// no parser in the example corpus can host this traversal. Instead every
// identifier-shaped token is quoted unless it is a reserved SQL keyword or
// a name in the built-in function exemption list; keywords are never
// identifier positions in valid SQL, so a keyword blacklist plus the
// spec's function whitelist is sufficient to cover every clause named in
// §4.11 (CTEs, set-ops, joins, GROUP BY/HAVING/QUALIFY/ORDER BY,
// LIMIT/OFFSET, window specs, CASE, lateral/derived tables, IN/BETWEEN/LIKE
// family, IS [NOT] checks, CAST, and function argument lists) without
// building a parse tree.
package quoter

import "strings"

// builtinFuncs is the exact exemption list from §4.10/§4.11: these names
// are left unquoted wherever they appear, so their engine-native function
// resolution keeps working.
var builtinFuncs = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
	"CAST": true, "COALESCE": true, "NOW": true, "CURRENT_TIMESTAMP": true,
	"CURRENT_DATE": true, "UPPER": true, "LOWER": true, "REPLACE": true,
	"REGEXP_REPLACE": true, "SHA256": true, "CONCAT": true, "ABS": true,
	"ROUND": true, "ROW_NUMBER": true, "RANK": true, "DENSE_RANK": true,
	"LAG": true, "LEAD": true, "FIRST_VALUE": true, "LAST_VALUE": true,
	"NTH_VALUE": true, "NTILE": true, "PERCENT_RANK": true, "CUME_DIST": true,
}

// reservedKeywords covers the SQL grammar words the quoter must never touch
// because they are never identifier positions: clause introducers,
// operators spelled as words, and literal keywords.
var reservedKeywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "AS": true, "JOIN": true,
	"INNER": true, "LEFT": true, "RIGHT": true, "FULL": true, "OUTER": true,
	"CROSS": true, "LATERAL": true, "ON": true, "USING": true, "GROUP": true,
	"BY": true, "HAVING": true, "QUALIFY": true, "ORDER": true, "ASC": true,
	"DESC": true, "LIMIT": true, "OFFSET": true, "WITH": true, "RECURSIVE": true,
	"UNION": true, "INTERSECT": true, "EXCEPT": true, "ALL": true, "DISTINCT": true,
	"CASE": true, "WHEN": true, "THEN": true, "ELSE": true, "END": true,
	"AND": true, "OR": true, "NOT": true, "IN": true, "EXISTS": true,
	"BETWEEN": true, "LIKE": true, "ILIKE": true, "RLIKE": true, "SIMILAR": true,
	"TO": true, "IS": true, "NULL": true, "TRUE": true, "FALSE": true,
	"UNKNOWN": true, "OVER": true, "PARTITION": true, "WINDOW": true,
	"ROWS": true, "RANGE": true, "PRECEDING": true, "FOLLOWING": true,
	"CURRENT": true, "ROW": true, "UNBOUNDED": true, "INSERT": true,
	"INTO": true, "VALUES": true, "UPDATE": true, "SET": true, "DELETE": true,
	"CREATE": true, "TABLE": true, "VIEW": true, "IF": true,
	"TEMPORARY": true, "TEMP": true, "INDEX": true, "PRIMARY": true, "KEY": true,
	"FOREIGN": true, "REFERENCES": true, "CONSTRAINT": true, "DEFAULT": true,
	"NULLS": true, "FIRST": true, "LAST": true, "FILTER": true, "WITHIN": true,
	"GROUPING": true, "SETS": true, "CUBE": true, "ROLLUP": true, "ARRAY": true,
}

// sqlTypeNames covers the data-type keywords that appear as the target of a
// CAST(expr AS <type>) (§4.11): since this tokenizer has no AST DataType
// node to exempt from identifier rewriting, every type name the engine
// recognizes must be listed here too, or CAST produces invalid SQL like
// CAST(amount AS "DECIMAL"(10,2)).
var sqlTypeNames = map[string]bool{
	"VARCHAR": true, "CHAR": true, "CHARACTER": true, "TEXT": true, "STRING": true,
	"INT": true, "INTEGER": true, "SMALLINT": true, "BIGINT": true, "TINYINT": true,
	"DECIMAL": true, "NUMERIC": true, "FLOAT": true, "DOUBLE": true, "REAL": true,
	"BOOLEAN": true, "BOOL": true, "DATE": true, "DATETIME": true, "TIMESTAMP": true,
	"TIME": true, "BLOB": true, "BYTES": true, "BINARY": true, "VARBINARY": true,
	"JSON": true, "JSONB": true, "UUID": true, "SIGNED": true, "UNSIGNED": true,
	"PRECISION": true, "INTERVAL": true,
}

func neverQuote(upper string) bool {
	return reservedKeywords[upper] || builtinFuncs[upper] || sqlTypeNames[upper]
}

// Quote parses sql token-by-token and returns an equivalent statement with
// every non-keyword, non-builtin identifier forced to a double-quoted
// form. Already double-quoted identifiers, string/numeric literals, and
// comments pass through unchanged.
func Quote(sql string) string {
	runes := []rune(sql)
	n := len(runes)
	var out strings.Builder
	out.Grow(n + n/4)

	for i := 0; i < n; {
		c := runes[i]
		switch {
		case c == '"':
			j := scanQuoted(runes, i, '"')
			out.WriteString(string(runes[i:j]))
			i = j
		case c == '\'':
			j := scanQuoted(runes, i, '\'')
			out.WriteString(string(runes[i:j]))
			i = j
		case c == '-' && i+1 < n && runes[i+1] == '-':
			j := i
			for j < n && runes[j] != '\n' {
				j++
			}
			out.WriteString(string(runes[i:j]))
			i = j
		case c == '/' && i+1 < n && runes[i+1] == '*':
			j := i + 2
			for j+1 < n && !(runes[j] == '*' && runes[j+1] == '/') {
				j++
			}
			j = min(j+2, n)
			out.WriteString(string(runes[i:j]))
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < n && isIdentPart(runes[j]) {
				j++
			}
			word := string(runes[i:j])
			if neverQuote(strings.ToUpper(word)) {
				out.WriteString(word)
			} else {
				out.WriteByte('"')
				out.WriteString(strings.ReplaceAll(word, `"`, `""`))
				out.WriteByte('"')
			}
			i = j
		case isDigit(c):
			j := scanNumber(runes, i)
			out.WriteString(string(runes[i:j]))
			i = j
		default:
			out.WriteRune(c)
			i++
		}
	}
	return out.String()
}

// scanQuoted consumes a delimiter-quoted run starting at i (runes[i] ==
// quote), honoring the SQL-standard doubled-quote escape, and returns the
// index just past the closing delimiter.
func scanQuoted(runes []rune, i int, quote rune) int {
	n := len(runes)
	j := i + 1
	for j < n {
		if runes[j] == quote {
			if j+1 < n && runes[j+1] == quote {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return n
}

// scanNumber consumes an integer, decimal, or exponent-form numeric
// literal starting at i.
func scanNumber(runes []rune, i int) int {
	n := len(runes)
	j := i + 1
	for j < n && isDigit(runes[j]) {
		j++
	}
	if j < n && runes[j] == '.' {
		j++
		for j < n && isDigit(runes[j]) {
			j++
		}
	}
	if j < n && (runes[j] == 'e' || runes[j] == 'E') {
		k := j + 1
		if k < n && (runes[k] == '+' || runes[k] == '-') {
			k++
		}
		if k < n && isDigit(runes[k]) {
			j = k
			for j < n && isDigit(runes[j]) {
				j++
			}
		}
	}
	return j
}

func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c rune) bool { return c >= '0' && c <= '9' }
