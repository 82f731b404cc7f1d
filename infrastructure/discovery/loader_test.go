package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/config"
	"github.com/axel-mauroy/verity-governance-as-code/ports"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_ExtractsRefsAndAppliesLayerDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "models", "staging", "stg_users.sql"), `SELECT * FROM raw_users`)
	writeFile(t, filepath.Join(dir, "models", "marts", "dim_users.sql"), `SELECT * FROM {{ ref('stg_users') }}`)

	loader := NewLoader(config.AppConfig{})
	cfg := ports.ProjectConfig{
		Name:       "p",
		ModelPaths: []string{"models"},
		LayerDefaults: map[string]ports.LayerDefault{
			"marts": {Materialization: manifest.MaterializationTable, SecurityLevel: manifest.SecurityRestricted, Protected: true},
		},
	}

	m, err := loader.Load(context.Background(), dir, cfg)
	require.NoError(t, err)
	require.Contains(t, m.Nodes, "stg_users")
	require.Contains(t, m.Nodes, "dim_users")

	assert.Equal(t, []string{"stg_users"}, m.Nodes["dim_users"].Refs)
	assert.Equal(t, manifest.MaterializationTable, m.Nodes["dim_users"].Config.Materialization)
	assert.Equal(t, manifest.SecurityRestricted, m.Nodes["dim_users"].SecurityLevel)
	assert.True(t, m.Nodes["dim_users"].Config.Protected)

	assert.Equal(t, manifest.MaterializationView, m.Nodes["stg_users"].Config.Materialization)
}

func TestLoad_FusesSiblingYAMLContractWithFuzzyPolicy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "models", "staging", "stg_users.sql"), `SELECT id, email FROM raw_users`)
	writeFile(t, filepath.Join(dir, "models", "staging", "stg_users.yml"), `
schema:
  - model_name: stg_users
    config:
      materialized: table
      governance:
        security_level: confidential
    columns:
      - name: id
        tests: [not_null, unique]
      - name: email
`)

	appCfg := config.AppConfig{
		Policies: config.PoliciesYAML{
			ColumnPolicies: []config.ColumnPolicyYAML{{Pattern: `(?i)email`, Policy: "mask_email"}},
		},
	}
	loader := NewLoader(appCfg)
	cfg := ports.ProjectConfig{Name: "p", ModelPaths: []string{"models"}}

	m, err := loader.Load(context.Background(), dir, cfg)
	require.NoError(t, err)

	node := m.Nodes["stg_users"]
	require.NotNil(t, node)
	assert.Equal(t, manifest.MaterializationTable, node.Config.Materialization)
	assert.Equal(t, manifest.SecurityConfidential, node.SecurityLevel)

	idCol := node.ColumnByName("id")
	require.NotNil(t, idCol)
	assert.Nil(t, idCol.Policy)
	assert.Equal(t, []string{"not_null", "unique"}, idCol.Tests)

	emailCol := node.ColumnByName("email")
	require.NotNil(t, emailCol)
	require.NotNil(t, emailCol.Policy)
	assert.Equal(t, manifest.MaskEmail, emailCol.Policy.Strategy)
	assert.True(t, emailCol.HasPII)
}

func TestLoad_CentralizedSchemaFileAppliesToNamedModel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "models", "marts", "dim_orders.sql"), `SELECT * FROM raw_orders`)
	writeFile(t, filepath.Join(dir, "models", "marts", "schema.yml"), `
schema:
  - model_name: dim_orders
    config:
      version: 2
      status: Active
`)

	loader := NewLoader(config.AppConfig{})
	cfg := ports.ProjectConfig{Name: "p", ModelPaths: []string{"models"}}

	m, err := loader.Load(context.Background(), dir, cfg)
	require.NoError(t, err)

	node := m.Nodes["dim_orders"]
	require.NotNil(t, node)
	assert.Equal(t, "dim_orders", node.Family)
	assert.Equal(t, 2, node.Version)
	assert.Equal(t, manifest.LifecycleActive, node.Status)
}

func TestLoad_SourcesAreRegistered(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "models", "staging", "stg_users.sql"), `SELECT 1`)

	appCfg := config.AppConfig{
		Sources: config.SourcesYAML{Sources: []config.SourceYAML{{Name: "raw_users", Path: "public.users"}}},
	}
	loader := NewLoader(appCfg)
	cfg := ports.ProjectConfig{Name: "p", ModelPaths: []string{"models"}}

	m, err := loader.Load(context.Background(), dir, cfg)
	require.NoError(t, err)
	require.Contains(t, m.Sources, "raw_users")
}

func TestFamilyAndVersion_DetectsVersionSuffix(t *testing.T) {
	family, version := FamilyAndVersion("users_v2", 1)
	assert.Equal(t, "users", family)
	assert.Equal(t, 2, version)

	family, version = FamilyAndVersion("users", 3)
	assert.Equal(t, "users", family)
	assert.Equal(t, 3, version)
}
