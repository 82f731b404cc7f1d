// Package discovery implements the Manifest Loader (C1): it walks a
// project's models tree, parses SQL template bodies for ref() macros,
// fuses each node with its YAML contract, and resolves configuration
// with node > layer-default > project-default precedence.
package discovery

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/domain/template"
	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/config"
	"github.com/axel-mauroy/verity-governance-as-code/ports"
)

// Loader implements ports.ManifestLoader against the local filesystem.
type Loader struct {
	// ColumnPolicies holds the fuzzy-injection rules (§4.1), evaluated in
	// order against any column left without an explicit policy after
	// YAML-contract fusion.
	ColumnPolicies []config.CompiledColumnPolicy
	Sources        []manifest.Source
}

// NewLoader builds a Loader from a resolved AppConfig.
func NewLoader(appCfg config.AppConfig) *Loader {
	return &Loader{
		ColumnPolicies: appCfg.Policies.CompileColumnPolicies(),
		Sources:        appCfg.Sources.ToManifestSources(),
	}
}

// Load implements ports.ManifestLoader.
func (l *Loader) Load(ctx context.Context, projectDir string, cfg ports.ProjectConfig) (*manifest.Manifest, error) {
	m := manifest.New(cfg.Name)
	for _, src := range l.Sources {
		s := src
		m.Sources[s.Name] = &s
	}

	modelPaths := cfg.ModelPaths
	if len(modelPaths) == 0 {
		modelPaths = []string{"models"}
	}

	var sqlFiles []string
	for _, rel := range modelPaths {
		root := filepath.Join(projectDir, rel)
		found, err := walkSQLFiles(root)
		if err != nil {
			return nil, err
		}
		sqlFiles = append(sqlFiles, found...)
	}
	sort.Strings(sqlFiles)

	// Centralized schema files (any *.yml/*.yaml not itself a sibling of a
	// discovered .sql file) are parsed once and indexed by model_name so
	// rule (b) of §4.1 can look a node up without re-reading the file per
	// node.
	centralized, err := loadCentralizedSchemas(modelPaths, projectDir, sqlFiles)
	if err != nil {
		return nil, err
	}

	for _, path := range sqlFiles {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		node, err := l.buildNode(projectDir, modelPaths, path, cfg, centralized)
		if err != nil {
			return nil, err
		}
		m.Nodes[node.Name] = node
	}

	return m, nil
}

func (l *Loader) buildNode(projectDir string, modelPaths []string, path string, cfg ports.ProjectConfig, centralized map[string]SchemaEntryYAML) (*manifest.Node, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, verrors.ManifestError("failed to read model file " + path + ": " + err.Error())
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	rel, _ := filepath.Rel(projectDir, path)
	layer := layerOf(projectDir, modelPaths, path)

	node := &manifest.Node{
		Name:            stem,
		ResourceType:    manifest.ResourceModel,
		RelativePath:    rel,
		RawTemplateBody: string(body),
		Refs:            template.ExtractRefs(string(body)),
		Status:          manifest.LifecycleActive,
		Version:         1,
		Family:          stem,
	}

	// Project defaults (lowest precedence).
	node.Config.Materialization = manifest.MaterializationView

	// Layer defaults.
	if def, ok := cfg.LayerDefaults[layer]; ok {
		if def.Materialization != "" {
			node.Config.Materialization = def.Materialization
		}
		node.Config.Schema = def.Schema
		node.Config.Protected = def.Protected
		node.SecurityLevel = def.SecurityLevel
	} else {
		node.SecurityLevel = manifest.SecurityInternal
	}

	// Node-specific YAML contract (highest precedence): sibling file first,
	// then a centralized schema file naming this node.
	siblingPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".yml"
	if _, statErr := os.Stat(siblingPath); statErr == nil {
		node.SchemaPath = siblingPath
		file, loadErr := LoadSchemaFile(siblingPath)
		if loadErr != nil {
			return nil, loadErr
		}
		if entry := file.EntryByModelName(stem); entry != nil {
			ApplyToNode(node, *entry)
		}
	} else if entry, ok := centralized[stem]; ok {
		ApplyToNode(node, entry)
	}

	l.applyFuzzyPolicies(node)

	return node, nil
}

// applyFuzzyPolicies attaches a policy to every column left without one
// after YAML-contract fusion, evaluating ColumnPolicies in declaration
// order; the first regex match wins (§4.1).
func (l *Loader) applyFuzzyPolicies(node *manifest.Node) {
	for i := range node.Columns {
		col := &node.Columns[i]
		if col.Policy != nil {
			continue
		}
		for _, cp := range l.ColumnPolicies {
			if cp.Pattern.MatchString(col.Name) {
				policy := cp.Policy
				col.Policy = &policy
				col.HasPII = true
				break
			}
		}
	}
}

// layerOf returns the first path component beneath whichever configured
// models root contains path.
func layerOf(projectDir string, modelPaths []string, path string) string {
	for _, rel := range modelPaths {
		root := filepath.Join(projectDir, rel)
		under, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(under, "..") {
			continue
		}
		parts := strings.Split(filepath.ToSlash(under), "/")
		if len(parts) > 1 {
			return parts[0]
		}
	}
	return ""
}

func walkSQLFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".sql") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, verrors.ManifestError("failed to walk models tree " + root + ": " + err.Error())
	}
	return out, nil
}

// loadCentralizedSchemas parses every *.yml/*.yaml file under the model
// paths that is not itself a sibling of a discovered .sql file, indexing
// every contained entry by model_name.
func loadCentralizedSchemas(modelPaths []string, projectDir string, sqlFiles []string) (map[string]SchemaEntryYAML, error) {
	siblings := make(map[string]bool, len(sqlFiles))
	for _, f := range sqlFiles {
		siblings[strings.TrimSuffix(f, filepath.Ext(f))+".yml"] = true
	}

	out := make(map[string]SchemaEntryYAML)
	for _, rel := range modelPaths {
		root := filepath.Join(projectDir, rel)
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() || siblings[path] {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".yml" && ext != ".yaml" {
				return nil
			}
			file, loadErr := LoadSchemaFile(path)
			if loadErr != nil {
				return loadErr
			}
			for _, entry := range file.Schema {
				out[entry.ModelName] = entry
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
