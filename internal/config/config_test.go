package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Equal(t, 15, cfg.CacheTTLMinutes)
	assert.Equal(t, 100, cfg.CacheCapacity)
	assert.Equal(t, "agent", cfg.Launcher)
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RuntimeConfig)
	}{
		{"zero concurrency", func(c *RuntimeConfig) { c.MaxConcurrency = 0 }},
		{"huge concurrency", func(c *RuntimeConfig) { c.MaxConcurrency = 100 }},
		{"zero ttl", func(c *RuntimeConfig) { c.CacheTTLMinutes = 0 }},
		{"zero capacity", func(c *RuntimeConfig) { c.CacheCapacity = 0 }},
		{"empty launcher", func(c *RuntimeConfig) { c.Launcher = "" }},
		{"negative rate", func(c *RuntimeConfig) { c.SpawnRatePerSecond = -1 }},
		{"tiny output cap", func(c *RuntimeConfig) { c.MaxOutputBytes = 100 }},
		{"zero stale hours", func(c *RuntimeConfig) { c.SandboxStaleHours = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAllCommandsIncludesLauncher(t *testing.T) {
	cfg := Default()
	assert.Contains(t, cfg.AllCommands(), "agent")
	assert.Contains(t, cfg.AllCommands(), "git")
	assert.Contains(t, cfg.AllCommands(), "mkdir")

	// Launcher already in the list is not duplicated.
	cfg.AllowedCommands = []string{"git", "agent"}
	assert.Len(t, cfg.AllCommands(), 2)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "revue.yaml")
	content := `max_concurrency: 8
cache_ttl_minutes: 30
launcher: reviewer
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, 30, cfg.CacheTTLMinutes)
	assert.Equal(t, "reviewer", cfg.Launcher)
	assert.Equal(t, 100, cfg.CacheCapacity, "unset fields keep defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REVUE_MAX_CONCURRENCY", "2")
	t.Setenv("REVUE_LAUNCHER", "custom-agent")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxConcurrency)
	assert.Equal(t, "custom-agent", cfg.Launcher)
}

func TestLoadEnvInvalid(t *testing.T) {
	t.Setenv("REVUE_MAX_CONCURRENCY", "lots")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadEnvOutOfRange(t *testing.T) {
	t.Setenv("REVUE_MAX_CONCURRENCY", "500")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_concurrency: [not an int"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}
