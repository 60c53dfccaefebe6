// Package cmdguard is the single choke point for spawning external
// processes. Commands must be allow-listed, arguments are passed as a
// vector and never concatenated into a shell string, and every call is
// bounded by a timeout and an output-size cap.
package cmdguard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrCommandRejected is returned for commands not in the allow-list.
	// The process is never spawned.
	ErrCommandRejected = errors.New("command rejected")

	// ErrCommandTimeout is returned when a call exceeds its timeout.
	// The call is abandoned and never auto-retried.
	ErrCommandTimeout = errors.New("command timeout")

	// ErrCommandBufferExceeded is returned when a process produces more
	// output than the configured cap. The process is killed.
	ErrCommandBufferExceeded = errors.New("command output buffer exceeded")
)

const (
	// DefaultTimeout bounds a call when the caller does not set one
	DefaultTimeout = 5 * time.Minute

	// DefaultMaxOutputBytes caps captured stdout and stderr, each
	DefaultMaxOutputBytes = 10 * 1024 * 1024
)

// shellMetachars are stripped from every argument even though no shell is
// ever invoked. Argument-vector execution already prevents interpretation;
// stripping is a second layer in case an argument is later re-logged or
// re-used in a context that does interpret it.
const shellMetachars = ";|&$><`\n\r\x00"

// envDenySubstrings filters credential-shaped variables out of the child
// environment. Matching is case-insensitive on the variable name.
var envDenySubstrings = []string{
	"KEY", "TOKEN", "SECRET", "PASSWORD", "PASSWD", "CREDENTIAL", "AUTH",
}

// ExecOpts bounds a single Execute call
type ExecOpts struct {
	// Timeout for the whole call. Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxOutputBytes caps stdout and stderr separately. Zero means
	// DefaultMaxOutputBytes.
	MaxOutputBytes int64

	// Cwd is the working directory for the child. Empty means the
	// caller's working directory.
	Cwd string
}

// ExecResult holds the captured output of a completed call
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// spawnFunc runs a fully-constructed command. It exists so tests can
// verify that rejected commands never reach the spawn primitive.
type spawnFunc func(cmd *exec.Cmd) error

// Guard executes allow-listed commands under resource bounds
type Guard struct {
	allow   map[string]struct{}
	limiter *rate.Limiter
	spawn   spawnFunc
	environ func() []string
}

// Config holds guard configuration
type Config struct {
	// AllowedCommands is the static allow-list. Commands are matched by
	// the exact string passed to Execute and by base name.
	AllowedCommands []string

	// SpawnRate throttles process launches per second across the guard.
	// Zero means unlimited.
	SpawnRate float64

	// SpawnBurst is the burst size for SpawnRate. Zero means 1.
	SpawnBurst int
}

// New creates a command guard with the given allow-list
func New(cfg Config) (*Guard, error) {
	if len(cfg.AllowedCommands) == 0 {
		return nil, fmt.Errorf("allow-list cannot be empty")
	}

	allow := make(map[string]struct{}, len(cfg.AllowedCommands))
	for _, c := range cfg.AllowedCommands {
		if c == "" {
			return nil, fmt.Errorf("allow-list cannot contain empty commands")
		}
		allow[c] = struct{}{}
	}

	limit := rate.Inf
	burst := 0
	if cfg.SpawnRate > 0 {
		limit = rate.Limit(cfg.SpawnRate)
		burst = cfg.SpawnBurst
		if burst <= 0 {
			burst = 1
		}
	}

	return &Guard{
		allow:   allow,
		limiter: rate.NewLimiter(limit, burst),
		spawn:   func(cmd *exec.Cmd) error { return cmd.Run() },
		environ: os.Environ,
	}, nil
}

// Allowed reports whether a command would pass the allow-list check
func (g *Guard) Allowed(command string) bool {
	if _, ok := g.allow[command]; ok {
		return true
	}
	_, ok := g.allow[filepath.Base(command)]
	return ok
}

// Execute runs an allow-listed command with a bounded argument vector.
// Arguments are passed directly to the process; no shell is involved.
// Fails with ErrCommandRejected, ErrCommandTimeout, or
// ErrCommandBufferExceeded; any other error is a spawn failure.
func (g *Guard) Execute(ctx context.Context, command string, args []string, opts ExecOpts) (*ExecResult, error) {
	if !g.Allowed(command) {
		return nil, fmt.Errorf("%w: %s is not allow-listed", ErrCommandRejected, command)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = DefaultMaxOutputBytes
	}

	cleanArgs := make([]string, len(args))
	for i, a := range args {
		cleanArgs[i] = stripMetachars(a)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("spawn rate limit: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command, cleanArgs...)
	cmd.Dir = opts.Cwd
	cmd.Env = filterEnv(g.environ())

	stdout := &cappedBuffer{max: opts.MaxOutputBytes, cancel: cancel}
	stderr := &cappedBuffer{max: opts.MaxOutputBytes, cancel: cancel}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := g.spawn(cmd)
	result := &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if stdout.overflowed() || stderr.overflowed() {
		return result, fmt.Errorf("%w: output exceeded %d bytes", ErrCommandBufferExceeded, opts.MaxOutputBytes)
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return result, fmt.Errorf("%w: %s exceeded %s", ErrCommandTimeout, command, opts.Timeout)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to run %s: %w", command, runErr)
	}

	return result, nil
}

// stripMetachars removes shell-significant characters from one argument
func stripMetachars(arg string) string {
	if !strings.ContainsAny(arg, shellMetachars) {
		return arg
	}
	var b strings.Builder
	b.Grow(len(arg))
	for _, r := range arg {
		if !strings.ContainsRune(shellMetachars, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// filterEnv returns a copy of env with credential-shaped variables removed
func filterEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		upper := strings.ToUpper(name)
		denied := false
		for _, sub := range envDenySubstrings {
			if strings.Contains(upper, sub) {
				denied = true
				break
			}
		}
		if !denied {
			out = append(out, kv)
		}
	}
	return out
}

// cappedBuffer captures output up to max bytes, then cancels the run.
// Writes past the cap are swallowed so the child sees no pipe error
// while the kill propagates.
type cappedBuffer struct {
	max      int64
	buf      bytes.Buffer
	overflow bool
	cancel   context.CancelFunc
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.overflow {
		return len(p), nil
	}
	remain := b.max - int64(b.buf.Len())
	if int64(len(p)) > remain {
		b.buf.Write(p[:remain])
		b.overflow = true
		if b.cancel != nil {
			b.cancel()
		}
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string   { return b.buf.String() }
func (b *cappedBuffer) overflowed() bool { return b.overflow }
