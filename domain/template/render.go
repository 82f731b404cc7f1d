// Package template implements the render step of C10: expand ref('X') and
// source('D','N') macros into quoted identifiers. No other templating
// syntax is prescribed by the spec; any other {{ ... }} placeholder is a
// free variable and resolves to the empty string.
package template

import (
	"fmt"
	"regexp"

	"github.com/axel-mauroy/verity-governance-as-code/domain/quoter"
)

// Both patterns accept the macro either bare (ref('x')) or wrapped in a
// Jinja-style placeholder ({{ ref('x') }}), consuming the surrounding
// braces in the same match so the generic free-variable pass below never
// sees — and so never blanks — an already-resolved macro.
var (
	refPattern     = regexp.MustCompile(`\{\{\s*ref\(\s*'([^']*)'\s*\)\s*\}\}|ref\(\s*'([^']*)'\s*\)`)
	sourcePattern  = regexp.MustCompile(`\{\{\s*source\(\s*'([^']*)'\s*,\s*'([^']*)'\s*\)\s*\}\}|source\(\s*'([^']*)'\s*,\s*'([^']*)'\s*\)`)
	freeVarPattern = regexp.MustCompile(`\{\{[^}]*\}\}`)
)

// Engine implements ports.TemplateEngine against the package-level Render
// function, letting the orchestrator depend on the port rather than this
// package directly.
type Engine struct{}

func (Engine) Render(body string) string { return Render(body) }

// Render expands every ref()/source() macro in body and blanks any
// remaining {{ ... }} free variable.
func Render(body string) string {
	out := sourcePattern.ReplaceAllStringFunc(body, func(match string) string {
		groups := sourcePattern.FindStringSubmatch(match)
		database, name := groups[1], groups[2]
		if database == "" && name == "" {
			database, name = groups[3], groups[4]
		}
		combined := fmt.Sprintf("%s_%s", database, name)
		return quoter.Quote(combined)
	})
	out = refPattern.ReplaceAllStringFunc(out, func(match string) string {
		groups := refPattern.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		return quoter.Quote(name)
	})
	out = freeVarPattern.ReplaceAllString(out, "")
	return out
}
