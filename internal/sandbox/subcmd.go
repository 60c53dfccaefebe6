package sandbox

import (
	"context"
	"fmt"

	"github.com/revuekit/revue/internal/cmdguard"
)

// SubcommandFacade restricts which sub-commands a sandbox run may invoke.
// Everything it permits is additionally routed through the command guard,
// so a sub-command that passes the worker's allow-list still has to pass
// the global allow-list, timeout, and output bounds.
type SubcommandFacade struct {
	guard   *cmdguard.Guard
	allowed map[string]struct{}
	cwd     string
}

// NewSubcommandFacade scopes a façade to the worker's allowed sub-commands
func NewSubcommandFacade(guard *cmdguard.Guard, allowed []string, cwd string) *SubcommandFacade {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return &SubcommandFacade{guard: guard, allowed: set, cwd: cwd}
}

// Allowed reports whether the façade would permit a sub-command
func (f *SubcommandFacade) Allowed(name string) bool {
	_, ok := f.allowed[name]
	return ok
}

// Run invokes one permitted sub-command through the command guard
func (f *SubcommandFacade) Run(ctx context.Context, name string, args []string, opts cmdguard.ExecOpts) (*cmdguard.ExecResult, error) {
	if !f.Allowed(name) {
		return nil, fmt.Errorf("%w: %s is not permitted in this sandbox", cmdguard.ErrCommandRejected, name)
	}
	if opts.Cwd == "" {
		opts.Cwd = f.cwd
	}
	return f.guard.Execute(ctx, name, args, opts)
}
