package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoader_Precedence(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	work := filepath.Join(project, "sub", "dir")
	require.NoError(t, os.MkdirAll(work, 0755))

	writeConfig(t, filepath.Join(home, UserConfigDir, UserConfigFile), `
dsl:
  path: user.fkl
log:
  level: debug
`)
	writeConfig(t, filepath.Join(project, ProjectConfigFile), `
log:
  format: json
source:
  roots: [src]
`)

	cfg, err := NewLoader(nil, WithHomeDir(home), WithWorkDir(work)).Load("")
	require.NoError(t, err)

	// user overrides defaults, project overrides user, unset keys fall through
	assert.Equal(t, "user.fkl", cfg.DSL.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"src"}, cfg.Source.Roots)
	assert.Equal(t, []string{"**/generated/**"}, cfg.Source.Exclude)
	// the project file's directory becomes the repo root
	assert.Equal(t, project, cfg.Source.RepoRoot)
	assert.Equal(t, filepath.Join(project, "user.fkl"), cfg.DSLPath())
}

func TestLoader_RelativeRepoRoot(t *testing.T) {
	project := t.TempDir()
	writeConfig(t, filepath.Join(project, ProjectConfigFile), `
source:
  repo_root: ..
`)

	cfg, err := NewLoader(nil, WithHomeDir(t.TempDir()), WithWorkDir(project)).Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(project), cfg.Source.RepoRoot)
}

func TestLoader_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "custom.yaml")
	writeConfig(t, explicit, "dsl:\n  path: custom.fkl\n")

	cfg, err := NewLoader(nil, WithHomeDir(t.TempDir()), WithWorkDir(t.TempDir())).Load(explicit)
	require.NoError(t, err)
	assert.Equal(t, "custom.fkl", cfg.DSL.Path)
	assert.Equal(t, dir, cfg.Source.RepoRoot)

	_, err = NewLoader(nil, WithHomeDir(t.TempDir())).Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoader_InvalidProjectConfig(t *testing.T) {
	project := t.TempDir()
	writeConfig(t, filepath.Join(project, ProjectConfigFile), "log:\n  level: loud\n")

	_, err := NewLoader(nil, WithHomeDir(t.TempDir()), WithWorkDir(project)).Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestLoader_EnsureProjectConfig(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(nil)

	path, created, err := loader.EnsureProjectConfig(dir)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, filepath.Join(dir, ProjectConfigFile), path)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().DSL.Path, cfg.DSL.Path)

	_, created, err = loader.EnsureProjectConfig(dir)
	require.NoError(t, err)
	assert.False(t, created)
}
