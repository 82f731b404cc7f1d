package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFilesPresent(t *testing.T) {
	dir := t.TempDir()

	cfg := Load(dir)

	assert.Equal(t, "verity_project", cfg.Project.Name)
	assert.Equal(t, "target", cfg.Project.TargetPath)
	assert.Equal(t, 8, cfg.Project.Concurrency)
	assert.False(t, cfg.Project.StrictMode)
	assert.Empty(t, cfg.Sources.Sources)
}

func TestLoad_ParsesProjectFileAndLayerDefaults(t *testing.T) {
	dir := t.TempDir()
	projectYAML := `
name: analytics
version: "2"
profile: prod
engine: postgres
target_path: build
concurrency: 4
governance:
  salt: s3cr3t
defaults:
  marts:
    materialized: table
    protected: true
    security_level: restricted
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "verity_project.yaml"), []byte(projectYAML), 0o644))

	cfg := Load(dir)

	assert.Equal(t, "analytics", cfg.Project.Name)
	assert.Equal(t, "build", cfg.Project.TargetPath)
	assert.Equal(t, 4, cfg.Project.Concurrency)
	assert.Equal(t, "s3cr3t", cfg.Project.Governance.Salt)

	marts, ok := cfg.Project.LayerDefaults["marts"]
	require.True(t, ok)
	assert.True(t, marts.Protected)
}

func TestLoad_EnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "verity_project.yaml"), []byte("target_path: build\n"), 0o644))

	t.Setenv("VERITY_STRICT", "1")
	t.Setenv("VERITY_TARGET_PATH", "/tmp/override")
	t.Setenv("VERITY_PROFILE", "ci")

	cfg := Load(dir)

	assert.True(t, cfg.Project.StrictMode)
	assert.Equal(t, "/tmp/override", cfg.Project.TargetPath)
	assert.Equal(t, "ci", cfg.Project.Profile)
}

func TestLoad_ParsesSourcesAndPolicies(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "models"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))

	sourcesYAML := `
sources:
  - name: raw_users
    path: public.users
    owner: data-eng
    governance:
      public: false
      pii: true
      security: confidential
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models", "sources.yaml"), []byte(sourcesYAML), 0o644))

	policiesYAML := `
column_policies:
  - pattern: "(?i)ssn"
    policy: hash
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "policies.yml"), []byte(policiesYAML), 0o644))

	cfg := Load(dir)

	require.Len(t, cfg.Sources.Sources, 1)
	assert.Equal(t, "raw_users", cfg.Sources.Sources[0].Name)

	manifestSources := cfg.Sources.ToManifestSources()
	require.Len(t, manifestSources, 1)
	assert.True(t, manifestSources[0].PII)

	compiled := cfg.Policies.CompileColumnPolicies()
	require.Len(t, compiled, 1)
	assert.True(t, compiled[0].Pattern.MatchString("user_ssn"))
}
