// Package schemastore implements ports.SchemaSource: reconciling
// undocumented columns back into a node's YAML contract, and creating a
// new versioned contract for a previously-undocumented model, enforcing
// the versioned-family lifecycle invariants at write time (§4.1, §9).
package schemastore

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/config"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/discovery"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/fs"
)

// Store implements ports.SchemaSource against the local filesystem.
type Store struct {
	ProjectDir     string
	ColumnPolicies []config.CompiledColumnPolicy
}

// NewStore builds a Store rooted at projectDir, with the same
// fuzzy-injection rules the manifest loader uses.
func NewStore(projectDir string, appCfg config.AppConfig) *Store {
	return &Store{ProjectDir: projectDir, ColumnPolicies: appCfg.Policies.CompileColumnPolicies()}
}

// PatchUndocumentedColumns appends undocumented (lower-cased) columns to
// node's existing contract, fuzzy-injecting a policy for each, and
// rewrites the file atomically. A node with no SchemaPath gets a fresh
// sibling file created alongside its SQL source.
func (s *Store) PatchUndocumentedColumns(ctx context.Context, node *manifest.Node, undocumented []string) error {
	if len(undocumented) == 0 {
		return nil
	}

	path := node.SchemaPath
	if path == "" {
		path = s.siblingPathFor(node)
	}

	file, err := loadOrEmpty(path)
	if err != nil {
		return err
	}

	entry := file.EntryByModelName(node.Name)
	if entry == nil {
		file.Schema = append(file.Schema, discovery.SchemaEntryYAML{ModelName: node.Name})
		entry = &file.Schema[len(file.Schema)-1]
	}

	existing := make(map[string]bool, len(entry.Columns))
	for _, c := range entry.Columns {
		existing[strings.ToLower(c.Name)] = true
	}

	sorted := append([]string(nil), undocumented...)
	sort.Strings(sorted)
	for _, name := range sorted {
		if existing[name] {
			continue
		}
		col := discovery.ColumnYAML{Name: name}
		if policy, ok := s.fuzzyMatch(name); ok {
			col.Policy = policy
		}
		entry.Columns = append(entry.Columns, col)
	}

	return s.write(path, file)
}

// CreateVersionedContract creates a brand-new v1 contract for node with
// fuzzy-injected policies on every column, when node has no existing
// schema file. If a contract already exists for node's family, the new
// version must be exactly the next contiguous version number and there
// must be at most one Active entry in the family once the new entry is
// written (§9 resolution: enforced only at schema-write time).
func (s *Store) CreateVersionedContract(ctx context.Context, node *manifest.Node) error {
	path := node.SchemaPath
	if path == "" {
		path = s.siblingPathFor(node)
	}

	file, err := loadOrEmpty(path)
	if err != nil {
		return err
	}

	if file.EntryByModelName(node.Name) != nil {
		return nil // contract already exists; nothing to create
	}

	family := node.Family
	if family == "" {
		family = node.Name
	}
	versions, activeCount := familyState(file, family)

	nextVersion := 1
	if len(versions) > 0 {
		nextVersion = versions[len(versions)-1] + 1
	}
	if !isContiguous(append(versions, nextVersion)) {
		return verrors.SchemaError("versioned family " + family + " would have a gap after adding version " + strconv.Itoa(nextVersion))
	}
	if activeCount > 0 {
		return verrors.SchemaError("versioned family " + family + " already has an Active version; deprecate it before activating a new one")
	}

	columns := make([]discovery.ColumnYAML, 0, len(node.Columns))
	for _, c := range node.Columns {
		col := discovery.ColumnYAML{Name: c.Name, Tests: c.Tests}
		if c.Policy != nil {
			col.Policy = c.Policy.String()
		} else if policy, ok := s.fuzzyMatch(c.Name); ok {
			col.Policy = policy
		}
		columns = append(columns, col)
	}

	file.Schema = append(file.Schema, discovery.SchemaEntryYAML{
		ModelName: node.Name,
		Config: discovery.NodeConfigYAML{
			Materialized: string(node.Config.Materialization),
			Version:      nextVersion,
			Status:       string(manifest.LifecycleActive),
			Governance: discovery.GovernanceYAML{
				TechOwner:     node.Config.TechOwner,
				BusinessOwner: node.Config.BusinessOwner,
				SecurityLevel: node.SecurityLevel.String(),
			},
		},
		Columns: columns,
	})

	return s.write(path, file)
}

func (s *Store) fuzzyMatch(column string) (string, bool) {
	for _, cp := range s.ColumnPolicies {
		if cp.Pattern.MatchString(column) {
			return cp.Policy.String(), true
		}
	}
	return "", false
}

func (s *Store) siblingPathFor(node *manifest.Node) string {
	sqlPath := filepath.Join(s.ProjectDir, node.RelativePath)
	return strings.TrimSuffix(sqlPath, filepath.Ext(sqlPath)) + ".yml"
}

func (s *Store) write(path string, file discovery.SchemaFileYAML) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return verrors.Yaml("failed to marshal schema contract", err)
	}
	return fs.WriteAtomic(path, data, 0o644)
}

func loadOrEmpty(path string) (discovery.SchemaFileYAML, error) {
	if _, err := os.Stat(path); err != nil {
		return discovery.SchemaFileYAML{}, nil
	}
	return discovery.LoadSchemaFile(path)
}

// familyState scans file for every entry belonging to family (by
// name-prefix match against FamilyAndVersion), returning the sorted
// version numbers present and the count currently Active.
func familyState(file discovery.SchemaFileYAML, family string) (versions []int, activeCount int) {
	for _, entry := range file.Schema {
		entryFamily, version := discovery.FamilyAndVersion(entry.ModelName, entry.Config.Version)
		if entryFamily != family {
			continue
		}
		versions = append(versions, version)
		if manifest.LifecycleStatus(entry.Config.Status) == manifest.LifecycleActive {
			activeCount++
		}
	}
	sort.Ints(versions)
	return versions, activeCount
}

func isContiguous(versions []int) bool {
	sort.Ints(versions)
	for i, v := range versions {
		if v != i+1 {
			return false
		}
	}
	return true
}

