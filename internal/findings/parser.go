// Package findings extracts structured issues from the free-text output
// of an external worker. The upstream text comes from a non-deterministic
// process, so extraction is best-effort by design: the parser is a
// replaceable strategy behind the Parser interface, and every bound here
// exists to keep pathological input from turning best-effort into
// worst-case.
package findings

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/revuekit/revue/internal/sanitize"
	"github.com/revuekit/revue/internal/types"
)

const (
	// maxInputBytes truncates raw output before any pattern runs
	maxInputBytes = 1 << 20 // 1 MiB

	// maxMessageBytes bounds the captured message per match
	maxMessageBytes = 500

	// maxPerSeverity caps matches for one severity class
	maxPerSeverity = 100

	// maxTotal caps matches across all severity classes
	maxTotal = 1000

	// defaultIssueType is used when no taxonomy entry matches
	defaultIssueType = "general"
)

// Parser extracts issues from raw worker output. Implementations must be
// safe for concurrent use; one parser instance is shared across a tier's
// fan-out. A structured-output protocol can replace the regex strategy
// without touching the sandbox or scheduler contracts.
type Parser interface {
	Parse(raw string, w types.Worker) []types.Issue
}

// severityPattern pairs one severity level with its marker pattern and
// downstream priority.
type severityPattern struct {
	level    types.Level
	priority int
	re       *regexp.Regexp
}

// RegexParser is the default line-oriented Parser. Markers are recognized
// in English, Spanish, and as emoji aliases. Message captures are length
// bounded in the pattern itself so repeated marker lines cannot trigger
// pathological backtracking.
type RegexParser struct {
	patterns []severityPattern
	location *regexp.Regexp
}

// NewRegexParser compiles the marker patterns
func NewRegexParser() *RegexParser {
	bounded := `[:\s]+(.{1,` + strconv.Itoa(maxMessageBytes) + `})`
	return &RegexParser{
		patterns: []severityPattern{
			{types.LevelError, 0, regexp.MustCompile(`(?im)^\s*(?:ERROR|✖|❌)` + bounded)},
			{types.LevelWarning, 1, regexp.MustCompile(`(?im)^\s*(?:WARNING|ADVERTENCIA|⚠️?)` + bounded)},
			{types.LevelInfo, 2, regexp.MustCompile(`(?im)^\s*(?:INFO|INFORMACIÓN|ℹ️?)` + bounded)},
			{types.LevelSuggestion, 3, regexp.MustCompile(`(?im)^\s*(?:SUGGESTION|SUGERENCIA|💡)` + bounded)},
		},
		// path:line embedded anywhere in the message, both bounded
		location: regexp.MustCompile(`([A-Za-z0-9_./\\-]{1,256})[:(](\d{1,6})`),
	}
}

// Parse scans raw output for severity markers and returns one issue per
// match, capped per severity and in total. All extracted text passes
// through the output sanitizer before it is returned.
func (p *RegexParser) Parse(raw string, w types.Worker) []types.Issue {
	if len(raw) > maxInputBytes {
		raw = raw[:maxInputBytes]
	}

	var issues []types.Issue
	for _, sp := range p.patterns {
		if len(issues) >= maxTotal {
			break
		}
		remaining := maxTotal - len(issues)
		limit := maxPerSeverity
		if remaining < limit {
			limit = remaining
		}

		for _, match := range sp.re.FindAllStringSubmatch(raw, limit) {
			message := strings.TrimSpace(match[1])
			if message == "" {
				continue
			}

			issue := types.Issue{
				Level:            sp.level,
				Message:          sanitize.Sanitize(message),
				Category:         string(w.Category),
				Priority:         sp.priority,
				SourceWorkerID:   w.ID,
				Type:             classify(message, w.ErrorTypes),
				AutoFixAvailable: w.CanAutoFix,
			}
			if file, line, ok := p.extractLocation(message); ok {
				issue.File = sanitize.Sanitize(file)
				issue.Line = line
			}
			issues = append(issues, issue)
		}
	}

	return issues
}

// extractLocation pulls an embedded path:line reference out of a message
func (p *RegexParser) extractLocation(message string) (string, int, bool) {
	match := p.location.FindStringSubmatch(message)
	if match == nil {
		return "", 0, false
	}
	line, err := strconv.Atoi(match[2])
	if err != nil || line <= 0 {
		return "", 0, false
	}
	return match[1], line, true
}

// classify maps a message onto the worker's declared error-type taxonomy
// by case-insensitive substring match, defaulting to a generic type.
func classify(message string, taxonomy []string) string {
	lower := strings.ToLower(message)
	for _, t := range taxonomy {
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			return t
		}
	}
	return defaultIssueType
}
