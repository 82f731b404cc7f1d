// Package catalog renders the documentation artifact (`docs` CLI command):
// target/catalog.json and a minimal static target/index.html. This is
// collaborator glue, not core pipeline logic (spec.md §1 explicitly scopes
// catalog HTML rendering out of the core), so it stays deliberately thin.
package catalog

import (
	"encoding/json"
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/fs"
)

type entry struct {
	Name            string   `json:"name"`
	ResourceType    string   `json:"resource_type"`
	Materialization string   `json:"materialization"`
	SecurityLevel   string   `json:"security_level"`
	Owner           string   `json:"owner"`
	Refs            []string `json:"refs"`
	Columns         []string `json:"columns"`
}

type document struct {
	ProjectName string  `json:"project_name"`
	Nodes       []entry `json:"nodes"`
}

// Generate writes target/catalog.json and target/index.html describing m.
func Generate(targetDir string, m *manifest.Manifest) error {
	doc := document{ProjectName: m.ProjectName}
	for _, name := range m.SortedNodeNames() {
		n := m.Nodes[name]
		cols := make([]string, 0, len(n.Columns))
		for _, c := range n.Columns {
			cols = append(cols, c.Name)
		}
		doc.Nodes = append(doc.Nodes, entry{
			Name:            n.Name,
			ResourceType:    string(n.ResourceType),
			Materialization: string(n.Config.Materialization),
			SecurityLevel:   n.SecurityLevel.String(),
			Owner:           n.Config.BusinessOwner,
			Refs:            n.Refs,
			Columns:         cols,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return verrors.IO("failed to marshal catalog.json", err)
	}
	if err := fs.WriteAtomic(filepath.Join(targetDir, "catalog.json"), data, 0o644); err != nil {
		return err
	}

	return fs.WriteAtomic(filepath.Join(targetDir, "index.html"), []byte(renderHTML(doc)), 0o644)
}

func renderHTML(doc document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html><head><title>%s catalog</title></head><body>\n", html.EscapeString(doc.ProjectName))
	fmt.Fprintf(&b, "<h1>%s</h1>\n<table border=\"1\">\n", html.EscapeString(doc.ProjectName))
	b.WriteString("<tr><th>Name</th><th>Type</th><th>Materialization</th><th>Security</th><th>Owner</th><th>Refs</th></tr>\n")
	for _, n := range doc.Nodes {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			html.EscapeString(n.Name), html.EscapeString(n.ResourceType), html.EscapeString(n.Materialization),
			html.EscapeString(n.SecurityLevel), html.EscapeString(n.Owner), html.EscapeString(strings.Join(n.Refs, ", ")))
	}
	b.WriteString("</table>\n</body></html>\n")
	return b.String()
}
