// Package catalog loads the worker catalog from YAML. Catalog records
// are validated once here; past this boundary the rest of the system
// treats them as pre-validated, immutable input.
package catalog

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/revuekit/revue/internal/types"
)

// record is the YAML shape of one catalog entry. Timeouts are written
// as duration strings ("5m", "90s").
type record struct {
	ID                 string         `yaml:"id"`
	DisplayName        string         `yaml:"display_name"`
	ModelTag           string         `yaml:"model_tag"`
	Category           types.Category `yaml:"category"`
	ErrorTypes         []string       `yaml:"error_types"`
	CanAutoFix         bool           `yaml:"can_auto_fix"`
	Tier               types.Tier     `yaml:"tier"`
	AllowedSubcommands []string       `yaml:"allowed_subcommands"`
	Timeout            string         `yaml:"timeout"`
}

// file is the top-level YAML document
type file struct {
	Workers []record `yaml:"workers"`
}

// DefaultTimeout applies when a record omits its timeout
const DefaultTimeout = 5 * time.Minute

// Load reads and validates a worker catalog. Any invalid record fails
// the whole load; a half-validated catalog is worse than none.
func Load(path string) ([]types.Worker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML
func Parse(data []byte) ([]types.Worker, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(f.Workers) == 0 {
		return nil, fmt.Errorf("catalog contains no workers")
	}

	seen := make(map[string]struct{}, len(f.Workers))
	workers := make([]types.Worker, 0, len(f.Workers))
	for i, rec := range f.Workers {
		timeout := DefaultTimeout
		if rec.Timeout != "" {
			parsed, err := time.ParseDuration(rec.Timeout)
			if err != nil {
				return nil, fmt.Errorf("worker %d (%s): invalid timeout %q: %w", i, rec.ID, rec.Timeout, err)
			}
			timeout = parsed
		}

		w := types.Worker{
			ID:                 rec.ID,
			DisplayName:        rec.DisplayName,
			ModelTag:           rec.ModelTag,
			Category:           rec.Category,
			ErrorTypes:         rec.ErrorTypes,
			CanAutoFix:         rec.CanAutoFix,
			Tier:               rec.Tier,
			AllowedSubcommands: rec.AllowedSubcommands,
			Timeout:            timeout,
		}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("catalog record %d: %w", i, err)
		}
		if _, dup := seen[w.ID]; dup {
			return nil, fmt.Errorf("catalog record %d: duplicate worker id %s", i, w.ID)
		}
		seen[w.ID] = struct{}{}
		workers = append(workers, w)
	}
	return workers, nil
}
