// Package sandbox runs one external worker against one file set for one
// iteration inside a logical façade: a read-only file view scoped by the
// path guard and a sub-command façade routed through the command guard.
// A run never returns an error; every failure mode is folded into the
// returned result so the scheduler's batch can always continue.
package sandbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/revuekit/revue/internal/cmdguard"
	"github.com/revuekit/revue/internal/findings"
	"github.com/revuekit/revue/internal/pathguard"
	"github.com/revuekit/revue/internal/sanitize"
	"github.com/revuekit/revue/internal/types"
)

// maxLauncherArgs bounds the argument vector passed to the launcher
const maxLauncherArgs = 1024

// Runner creates sandboxes and executes worker runs inside them.
// A mutex-guarded registry tracks every sandbox it has created so
// stale ones can be inspected and swept.
type Runner struct {
	root     string
	launcher string
	guard    *cmdguard.Guard
	pguard   *pathguard.Guard
	parser   findings.Parser
	maxOut   int64

	mu        sync.RWMutex
	sandboxes map[string]*Sandbox
}

// Config holds runner configuration
type Config struct {
	// Root is the declared root directory all file reads must resolve under
	Root string

	// Launcher is the external worker launcher command. It must be on the
	// command guard's allow-list.
	Launcher string

	// Guard is the command guard all process invocations route through
	Guard *cmdguard.Guard

	// Parser extracts issues from worker output. Defaults to the regex parser.
	Parser findings.Parser

	// MaxOutputBytes caps launcher output. Zero means the guard default.
	MaxOutputBytes int64
}

// NewRunner creates a sandbox runner with the provided configuration
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("root cannot be empty")
	}
	if cfg.Launcher == "" {
		return nil, fmt.Errorf("launcher cannot be empty")
	}
	if cfg.Guard == nil {
		return nil, fmt.Errorf("command guard is required")
	}
	if !cfg.Guard.Allowed(cfg.Launcher) {
		return nil, fmt.Errorf("launcher %q is not allow-listed", cfg.Launcher)
	}

	pg, err := pathguard.New(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}

	parser := cfg.Parser
	if parser == nil {
		parser = findings.NewRegexParser()
	}

	return &Runner{
		root:      pg.Root(),
		launcher:  cfg.Launcher,
		guard:     cfg.Guard,
		pguard:    pg,
		parser:    parser,
		maxOut:    cfg.MaxOutputBytes,
		sandboxes: make(map[string]*Sandbox),
	}, nil
}

// Run executes one worker against one file set for one iteration.
// It never returns an error: path violations, rejected commands,
// timeouts, spawn failures, and panics all land in the result's Error
// field with the issue list empty. Failures are data, not control flow,
// at this boundary.
func (r *Runner) Run(ctx context.Context, w types.Worker, files types.FileSet, iteration int) (result types.ExecutionResult) {
	sb := r.create(w, iteration)
	result = types.ExecutionResult{
		WorkerID:   w.ID,
		WorkerName: w.DisplayName,
		SandboxID:  sb.ID,
	}

	start := time.Now()
	defer func() {
		result.ExecutionTimeMs = time.Since(start).Milliseconds()
		if rec := recover(); rec != nil {
			r.setStatus(sb.ID, StatusFailed)
			result.Issues = nil
			result.Error = sanitize.Sanitize(fmt.Sprintf("sandbox panic: %v", rec))
		}
	}()

	view, err := NewFileView(r.pguard, files)
	if err != nil {
		r.setStatus(sb.ID, StatusFailed)
		result.Error = sanitize.Sanitize(err.Error())
		return result
	}
	sb.Files = view
	sb.Subcommands = NewSubcommandFacade(r.guard, w.AllowedSubcommands, r.root)

	r.setStatus(sb.ID, StatusRunning)

	res, err := r.guard.Execute(ctx, r.launcher, r.launcherArgs(w, view, iteration), cmdguard.ExecOpts{
		Timeout:        w.Timeout,
		MaxOutputBytes: r.maxOut,
		Cwd:            r.root,
	})
	if err != nil {
		if errors.Is(err, cmdguard.ErrCommandTimeout) {
			// Abandoned, never retried here.
			r.setStatus(sb.ID, StatusTimedOut)
		} else {
			r.setStatus(sb.ID, StatusFailed)
		}
		result.Error = sanitize.Sanitize(err.Error())
		return result
	}
	if res.ExitCode != 0 {
		r.setStatus(sb.ID, StatusFailed)
		msg := fmt.Sprintf("worker %s exited %d", w.ID, res.ExitCode)
		if res.Stderr != "" {
			msg += ": " + truncate(res.Stderr, 512)
		}
		result.Error = sanitize.Sanitize(msg)
		return result
	}

	digest := sha256.Sum256([]byte(res.Stdout))
	result.RawOutputDigest = hex.EncodeToString(digest[:])
	result.Issues = r.parser.Parse(res.Stdout, w)

	r.setStatus(sb.ID, StatusCompleted)
	return result
}

// launcherArgs builds the bounded argument vector for the launcher:
// worker identity, root, file list, iteration, and resource hints.
func (r *Runner) launcherArgs(w types.Worker, view *FileView, iteration int) []string {
	maxOut := r.maxOut
	if maxOut <= 0 {
		maxOut = cmdguard.DefaultMaxOutputBytes
	}

	args := []string{
		"--worker", w.ID,
		"--model", w.ModelTag,
		"--root", r.root,
		"--iteration", strconv.Itoa(iteration),
		"--timeout-seconds", strconv.Itoa(int(w.Timeout / time.Second)),
		"--max-output-bytes", strconv.FormatInt(maxOut, 10),
	}
	for _, f := range view.Paths() {
		if len(args) >= maxLauncherArgs-1 {
			fmt.Fprintf(os.Stderr, "warning: sandbox %s: file list truncated at %d arguments\n", w.ID, maxLauncherArgs)
			break
		}
		args = append(args, "--file", f)
	}
	return args
}

// create registers a new sandbox in the Created state
func (r *Runner) create(w types.Worker, iteration int) *Sandbox {
	sb := &Sandbox{
		ID:        fmt.Sprintf("sb-%s-%s", w.ID, uuid.NewString()[:8]),
		WorkerID:  w.ID,
		Iteration: iteration,
		Status:    StatusCreated,
		Created:   time.Now(),
	}
	r.mu.Lock()
	r.sandboxes[sb.ID] = sb
	r.mu.Unlock()
	return sb
}

// setStatus updates a sandbox's lifecycle state
func (r *Runner) setStatus(id string, status Status) {
	r.mu.Lock()
	if sb, ok := r.sandboxes[id]; ok {
		sb.Status = status
	}
	r.mu.Unlock()
}

// Get retrieves a sandbox by ID, or nil if it does not exist
func (r *Runner) Get(id string) *Sandbox {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sandboxes[id]
}

// List returns all sandboxes the runner has created
func (r *Runner) List() []*Sandbox {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Sandbox, 0, len(r.sandboxes))
	for _, sb := range r.sandboxes {
		out = append(out, sb)
	}
	return out
}

// CleanupStale drops finished sandboxes older than the given age from
// the registry. Running sandboxes are never removed.
func (r *Runner) CleanupStale(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, sb := range r.sandboxes {
		if sb.Status == StatusRunning || sb.Status == StatusCreated {
			continue
		}
		if sb.Created.Before(cutoff) {
			delete(r.sandboxes, id)
			removed++
		}
	}
	return removed
}

// truncate bounds a string for inclusion in an error message
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
