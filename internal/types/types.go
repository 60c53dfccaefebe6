package types

import (
	"fmt"
	"path/filepath"
	"time"
)

// Tier is one of the four fixed priority buckets governing execution order.
// Tiers always execute critical first and low last.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
)

// TierOrder lists all tiers in strict execution order.
var TierOrder = []Tier{TierCritical, TierHigh, TierMedium, TierLow}

// IsValid checks if the tier value is valid
func (t Tier) IsValid() bool {
	switch t {
	case TierCritical, TierHigh, TierMedium, TierLow:
		return true
	}
	return false
}

// Category classifies what kind of analysis a worker performs
type Category string

const (
	CategorySecurity      Category = "security"
	CategoryCorrectness   Category = "correctness"
	CategoryPerformance   Category = "performance"
	CategoryStyle         Category = "style"
	CategoryDocumentation Category = "documentation"
)

// IsValid checks if the category value is valid
func (c Category) IsValid() bool {
	switch c {
	case CategorySecurity, CategoryCorrectness, CategoryPerformance, CategoryStyle, CategoryDocumentation:
		return true
	}
	return false
}

// Level is the severity of a single finding
type Level string

const (
	LevelError      Level = "error"
	LevelWarning    Level = "warning"
	LevelInfo       Level = "info"
	LevelSuggestion Level = "suggestion"
)

// IsValid checks if the level value is valid
func (l Level) IsValid() bool {
	switch l {
	case LevelError, LevelWarning, LevelInfo, LevelSuggestion:
		return true
	}
	return false
}

// Worker describes one external analysis worker from the catalog.
// Records are validated once at load time and immutable afterwards;
// this core only ever reads them.
type Worker struct {
	ID                 string        `json:"id"`
	DisplayName        string        `json:"display_name"`
	ModelTag           string        `json:"model_tag"`
	Category           Category      `json:"category"`
	ErrorTypes         []string      `json:"error_types,omitempty"`
	CanAutoFix         bool          `json:"can_auto_fix"`
	Tier               Tier          `json:"tier"`
	AllowedSubcommands []string      `json:"allowed_subcommands,omitempty"`
	Timeout            time.Duration `json:"timeout"`
}

// Validate checks if the worker record has valid field values.
// A record that fails validation is rejected at catalog load time
// rather than tripping checks ad hoc at each use site.
func (w *Worker) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("worker id is required")
	}
	if len(w.ID) > 64 {
		return fmt.Errorf("worker id must be 64 characters or less (got %d)", len(w.ID))
	}
	if w.DisplayName == "" {
		return fmt.Errorf("worker %s: display_name is required", w.ID)
	}
	if w.ModelTag == "" {
		return fmt.Errorf("worker %s: model_tag is required", w.ID)
	}
	if !w.Category.IsValid() {
		return fmt.Errorf("worker %s: invalid category: %s", w.ID, w.Category)
	}
	if !w.Tier.IsValid() {
		return fmt.Errorf("worker %s: invalid tier: %s", w.ID, w.Tier)
	}
	if w.Timeout <= 0 {
		return fmt.Errorf("worker %s: timeout must be positive (got %s)", w.ID, w.Timeout)
	}
	return nil
}

// FileSet is an ordered sequence of already-validated absolute paths.
// Ownership stays with the caller for the duration of one invocation.
type FileSet []string

// Validate checks that every path in the set is absolute
func (f FileSet) Validate() error {
	for _, p := range f {
		if p == "" {
			return fmt.Errorf("file set contains an empty path")
		}
		if !filepath.IsAbs(p) {
			return fmt.Errorf("file set contains a relative path: %s", p)
		}
	}
	return nil
}

// Issue is one structured finding extracted from a worker's output.
// Instances are created by the findings parser and immutable thereafter.
type Issue struct {
	Level            Level  `json:"level"`
	Message          string `json:"message"`
	Category         string `json:"category"`
	Priority         int    `json:"priority"`
	SourceWorkerID   string `json:"source_worker_id"`
	File             string `json:"file,omitempty"`
	Line             int    `json:"line,omitempty"`
	Type             string `json:"type"`
	AutoFixAvailable bool   `json:"auto_fix_available"`
}

// ExecutionResult is the uniform record produced by one sandbox run.
// One instance exists per (worker, iteration); the scheduler owns it
// after creation and downstream consumers treat it as read-only.
type ExecutionResult struct {
	WorkerID        string  `json:"worker_id"`
	WorkerName      string  `json:"worker_name"`
	Issues          []Issue `json:"issues"`
	RawOutputDigest string  `json:"raw_output_digest"`
	ExecutionTimeMs int64   `json:"execution_time_ms"`
	Error           string  `json:"error,omitempty"`
	SandboxID       string  `json:"sandbox_id"`
}

// Clone returns a deep copy of the result. The cache stores and returns
// clones so caller mutation never reaches the cached value.
func (r *ExecutionResult) Clone() *ExecutionResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.Issues != nil {
		out.Issues = make([]Issue, len(r.Issues))
		copy(out.Issues, r.Issues)
	}
	return &out
}

// Failed reports whether the run produced an error instead of findings
func (r *ExecutionResult) Failed() bool {
	return r.Error != ""
}
