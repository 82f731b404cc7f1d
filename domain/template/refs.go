package template

// refNamePattern matches only the ref() macro, bare or brace-wrapped, and
// captures just the referenced name — used at discovery time (§4.1),
// before any rendering happens.
var refNamePattern = refPattern

// ExtractRefs returns every name referenced via ref('X') in body, in
// first-occurrence order with duplicates removed.
func ExtractRefs(body string) []string {
	matches := refNamePattern.FindAllStringSubmatch(body, -1)
	seen := make(map[string]bool, len(matches))
	var refs []string
	for _, groups := range matches {
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		refs = append(refs, name)
	}
	return refs
}
