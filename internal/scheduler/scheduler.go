// Package scheduler partitions workers into priority tiers, runs tiers in
// strict order, and fans out runs within a tier up to a concurrency cap.
// The join at each tier is all-settled: one worker's failure or timeout
// never cancels or blocks its siblings, and a lower tier never starts
// before the previous non-empty tier has fully drained. Strict ordering
// trades some throughput for fast visibility of critical findings.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/revuekit/revue/internal/cache"
	"github.com/revuekit/revue/internal/sanitize"
	"github.com/revuekit/revue/internal/types"
)

// DefaultMaxConcurrency caps concurrent worker runs within one tier
const DefaultMaxConcurrency = 4

// SandboxRunner executes one worker run. Satisfied by sandbox.Runner;
// tests substitute recording fakes.
type SandboxRunner interface {
	Run(ctx context.Context, w types.Worker, files types.FileSet, iteration int) types.ExecutionResult
}

// Scheduler coordinates a batch of worker runs across priority tiers.
// The result cache is the only state shared across concurrent runs;
// everything else is per-run.
type Scheduler struct {
	runner         SandboxRunner
	cache          *cache.ResultCache
	maxConcurrency int
}

// Config holds scheduler configuration
type Config struct {
	// Runner executes individual worker runs
	Runner SandboxRunner

	// Cache is consulted before each run and populated after successful
	// runs. Optional: nil disables caching.
	Cache *cache.ResultCache

	// MaxConcurrency caps concurrent runs within one tier. The effective
	// cap is further bounded by tier size. Zero means the default.
	MaxConcurrency int
}

// New creates a scheduler with the provided configuration
func New(cfg Config) (*Scheduler, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Scheduler{
		runner:         cfg.Runner,
		cache:          cfg.Cache,
		maxConcurrency: maxConcurrency,
	}, nil
}

// ExecuteAll runs every worker against the file set for one iteration.
// Tiers execute strictly in critical→high→medium→low order; within a
// tier, runs fan out up to the concurrency cap. The returned list always
// reflects input worker order, never completion order, and always holds
// one result per worker regardless of individual failures.
func (s *Scheduler) ExecuteAll(ctx context.Context, workers []types.Worker, files types.FileSet, iteration int) []types.ExecutionResult {
	results := make([]types.ExecutionResult, 0, len(workers))
	for _, tier := range types.TierOrder {
		var tierWorkers []types.Worker
		for _, w := range workers {
			if w.Tier == tier {
				tierWorkers = append(tierWorkers, w)
			}
		}
		if len(tierWorkers) == 0 {
			continue
		}
		// Tier N+1 does not begin until every worker in tier N has a result.
		results = append(results, s.runTier(ctx, tierWorkers, files, iteration)...)
	}
	return results
}

// runTier fans out one tier's workers with a bounded pool and waits for
// all of them. Slots are indexed by input position so the returned slice
// preserves worker order.
func (s *Scheduler) runTier(ctx context.Context, workers []types.Worker, files types.FileSet, iteration int) []types.ExecutionResult {
	limit := int64(s.maxConcurrency)
	if n := int64(len(workers)); n < limit {
		limit = n
	}
	sem := semaphore.NewWeighted(limit)

	results := make([]types.ExecutionResult, len(workers))
	var wg sync.WaitGroup
	for i, w := range workers {
		wg.Add(1)
		go func(slot int, w types.Worker) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[slot] = types.ExecutionResult{
					WorkerID:   w.ID,
					WorkerName: w.DisplayName,
					Error:      sanitize.Sanitize(fmt.Sprintf("run not started: %v", err)),
				}
				return
			}
			defer sem.Release(1)
			results[slot] = s.runOne(ctx, w, files, iteration)
		}(i, w)
	}
	wg.Wait()
	return results
}

// runOne executes a single worker, consulting the cache first. A cache
// hit skips the sandbox entirely; only successful runs are written back.
func (s *Scheduler) runOne(ctx context.Context, w types.Worker, files types.FileSet, iteration int) types.ExecutionResult {
	var key string
	if s.cache != nil {
		key = s.cache.Key(w, files, iteration)
		if cached, ok := s.cache.Get(key); ok {
			return *cached
		}
	}

	result := s.runner.Run(ctx, w, files, iteration)

	if s.cache != nil && !result.Failed() {
		s.cache.Put(key, &result)
	}
	return result
}
