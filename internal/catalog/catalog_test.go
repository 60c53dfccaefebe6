package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revuekit/revue/internal/types"
)

const validCatalog = `workers:
  - id: sec-review
    display_name: Security Review
    model_tag: sonnet
    category: security
    tier: critical
    error_types: [injection, crypto]
    can_auto_fix: true
    allowed_subcommands: [git]
    timeout: 5m
  - id: doc-review
    display_name: Documentation Review
    model_tag: haiku
    category: documentation
    tier: low
    timeout: 90s
`

func TestParseValid(t *testing.T) {
	workers, err := Parse([]byte(validCatalog))
	require.NoError(t, err)
	require.Len(t, workers, 2)

	sec := workers[0]
	assert.Equal(t, "sec-review", sec.ID)
	assert.Equal(t, types.CategorySecurity, sec.Category)
	assert.Equal(t, types.TierCritical, sec.Tier)
	assert.Equal(t, 5*time.Minute, sec.Timeout)
	assert.True(t, sec.CanAutoFix)
	assert.Equal(t, []string{"git"}, sec.AllowedSubcommands)

	doc := workers[1]
	assert.Equal(t, types.TierLow, doc.Tier)
	assert.Equal(t, 90*time.Second, doc.Timeout)
}

func TestParseDefaultTimeout(t *testing.T) {
	workers, err := Parse([]byte(`workers:
  - id: w1
    display_name: W One
    model_tag: sonnet
    category: style
    tier: medium
`))
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, DefaultTimeout, workers[0].Timeout)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty document", ""},
		{"no workers", "workers: []"},
		{"bad yaml", "workers: [not"},
		{"missing id", "workers:\n  - display_name: X\n    model_tag: m\n    category: style\n    tier: low\n"},
		{"invalid tier", "workers:\n  - id: a\n    display_name: X\n    model_tag: m\n    category: style\n    tier: urgent\n"},
		{"invalid category", "workers:\n  - id: a\n    display_name: X\n    model_tag: m\n    category: cooking\n    tier: low\n"},
		{"invalid timeout", "workers:\n  - id: a\n    display_name: X\n    model_tag: m\n    category: style\n    tier: low\n    timeout: soonish\n"},
		{"duplicate ids", "workers:\n  - id: a\n    display_name: X\n    model_tag: m\n    category: style\n    tier: low\n  - id: a\n    display_name: Y\n    model_tag: m\n    category: style\n    tier: low\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validCatalog), 0644))

	workers, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, workers, 2)

	_, err = Load(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}
