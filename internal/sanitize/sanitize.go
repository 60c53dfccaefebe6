// Package sanitize redacts credential-shaped substrings and home-directory
// fragments from worker output before it reaches any human-facing layer.
// All security-classified error messages route through here as well.
package sanitize

import (
	"os"
	"regexp"
	"strings"
)

const homePlaceholder = "[HOME]"

// credentialPattern pairs a detection regex with its per-category
// redaction marker. Patterns are ordered so that the more specific
// markers (bearer) win over the generic token pattern.
type credentialPattern struct {
	re          *regexp.Regexp
	replacement string
}

var credentialPatterns = []credentialPattern{
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]{8,}`), "[REDACTED-BEARER]"},
	{regexp.MustCompile(`(?i)api[_-]?key["']?\s*[:=]\s*["']?[A-Za-z0-9._~+/=-]{4,}["']?`), "[REDACTED-APIKEY]"},
	{regexp.MustCompile(`(?i)password["']?\s*[:=]\s*["']?[^\s"']{1,128}["']?`), "[REDACTED-PASSWORD]"},
	{regexp.MustCompile(`(?i)token["']?\s*[:=]\s*["']?[A-Za-z0-9._~+/=-]{4,}["']?`), "[REDACTED-TOKEN]"},
}

// homePatterns match home directory fragments for the common platforms.
// The running user's own $HOME is handled separately since it may not
// match these shapes (e.g. /root).
var homePatterns = []*regexp.Regexp{
	regexp.MustCompile(`/home/[A-Za-z0-9._-]+`),
	regexp.MustCompile(`/Users/[A-Za-z0-9._-]+`),
	regexp.MustCompile(`(?i)C:\\Users\\[A-Za-z0-9._-]+`),
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Sanitize redacts credential-shaped substrings and home-directory
// fragments. It is idempotent: sanitizing already-sanitized text is a
// no-op, so output can safely pass through multiple layers.
func Sanitize(text string) string {
	if text == "" {
		return text
	}

	out := text
	if home := os.Getenv("HOME"); home != "" && home != "/" {
		out = strings.ReplaceAll(out, home, homePlaceholder)
	}
	for _, re := range homePatterns {
		out = re.ReplaceAllString(out, homePlaceholder)
	}
	for _, p := range credentialPatterns {
		out = p.re.ReplaceAllStringFunc(out, func(match string) string {
			// Redaction markers themselves must survive a second pass.
			if strings.Contains(match, "[REDACTED-") {
				return match
			}
			return p.replacement
		})
	}
	return out
}

// SanitizeHTML sanitizes and additionally escapes the five HTML-special
// characters for markup destinations. Unlike Sanitize it is not
// idempotent (escaping escapes), so it is applied exactly once at the
// markup boundary.
func SanitizeHTML(text string) string {
	return htmlEscaper.Replace(Sanitize(text))
}
