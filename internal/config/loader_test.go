package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNoFile(t *testing.T) {
	cfg, meta, err := Load([]string{t.TempDir()}, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxAgents, cfg.MaxAgents)
	assert.Equal(t, SourceDefault, meta.Source("max_agents"))
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	content := "max_agents: 42\nmax_depth: 5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arachnid.yaml"), []byte(content), 0o644))

	cfg, meta, err := Load([]string{dir}, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.MaxAgents)
	assert.Equal(t, 5, cfg.MaxDepth)
	assert.Equal(t, SourceFile, meta.Source("max_agents"))
}

func TestLoadOverrideWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arachnid.yaml"), []byte("max_agents: 42\n"), 0o644))

	maxAgents := 7
	cfg, meta, err := Load([]string{dir}, Overrides{MaxAgents: &maxAgents})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxAgents)
	assert.Equal(t, SourceOverride, meta.Source("max_agents"))
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arachnid.yaml"), []byte("max_agents: 0\n"), 0o644))

	_, _, err := Load([]string{dir}, Overrides{})
	require.Error(t, err)
}
