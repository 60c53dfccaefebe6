// Package pathguard validates that candidate paths stay inside a declared
// root before any file is read through the sandbox façade. It rejects
// traversal and injection patterns outright rather than trying to repair
// them; a rejected path is fatal to the single operation that used it.
package pathguard

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathViolation is returned when a candidate path escapes the root or
// matches a deny pattern. Callers check it with errors.Is; the message is
// passed through the output sanitizer before reaching any human-facing layer.
var ErrPathViolation = errors.New("path violation")

// DefaultMaxPathLen bounds the resolved path length. Most filesystems cap
// paths at 4096 bytes; anything longer is rejected before resolution.
const DefaultMaxPathLen = 4096

// deniedSymbols are shell-significant characters that never appear in
// legitimate analysis targets.
const deniedSymbols = ";|&$<>`\"'*?"

// reservedDeviceNames are Windows device names that resolve to devices
// rather than files regardless of directory.
var reservedDeviceNames = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {},
	"com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {},
	"lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// Guard validates candidate paths against a single resolved root.
type Guard struct {
	root       string
	maxPathLen int
}

// New creates a guard for the given root directory. The root is resolved
// once at construction; candidates are checked against the resolved form.
func New(root string) (*Guard, error) {
	if root == "" {
		return nil, fmt.Errorf("root cannot be empty")
	}
	resolved, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	return &Guard{
		root:       filepath.Clean(resolved),
		maxPathLen: DefaultMaxPathLen,
	}, nil
}

// Root returns the resolved root the guard validates against
func (g *Guard) Root() string {
	return g.root
}

// Validate checks a candidate path and returns its resolved form if it
// stays strictly inside the root. Any traversal segment, home-reference
// marker, control character, denied symbol, or reserved device name fails
// with ErrPathViolation. The only filesystem interaction is one path
// resolution call; there are no retries and no fallback to a default path.
func (g *Guard) Validate(candidate string) (string, error) {
	if candidate == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathViolation)
	}
	if len(candidate) > g.maxPathLen {
		return "", fmt.Errorf("%w: path exceeds %d bytes", ErrPathViolation, g.maxPathLen)
	}

	for _, r := range candidate {
		if r == 0 || r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("%w: path contains control characters", ErrPathViolation)
		}
	}
	if strings.ContainsAny(candidate, deniedSymbols) {
		return "", fmt.Errorf("%w: path contains disallowed symbols", ErrPathViolation)
	}
	if strings.Contains(candidate, "~") {
		return "", fmt.Errorf("%w: path contains home reference", ErrPathViolation)
	}

	// Check traversal on the raw input, before Clean can collapse it away.
	for _, seg := range strings.FieldsFunc(candidate, func(r rune) bool {
		return r == '/' || r == '\\'
	}) {
		if seg == ".." {
			return "", fmt.Errorf("%w: path contains traversal segment", ErrPathViolation)
		}
		base := strings.ToLower(seg)
		if dot := strings.IndexByte(base, '.'); dot >= 0 {
			base = base[:dot]
		}
		if _, reserved := reservedDeviceNames[base]; reserved {
			return "", fmt.Errorf("%w: path contains reserved device name", ErrPathViolation)
		}
	}

	resolved := candidate
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(g.root, resolved)
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: failed to resolve path: %v", ErrPathViolation, err)
	}
	abs = filepath.Clean(abs)

	if len(abs) > g.maxPathLen {
		return "", fmt.Errorf("%w: resolved path exceeds %d bytes", ErrPathViolation, g.maxPathLen)
	}
	if abs != g.root && !strings.HasPrefix(abs, g.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path resolves outside root", ErrPathViolation)
	}

	return abs, nil
}
