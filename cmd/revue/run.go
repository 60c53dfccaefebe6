package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/revuekit/revue/internal/cache"
	"github.com/revuekit/revue/internal/catalog"
	"github.com/revuekit/revue/internal/cmdguard"
	"github.com/revuekit/revue/internal/config"
	"github.com/revuekit/revue/internal/sandbox"
	"github.com/revuekit/revue/internal/scheduler"
	"github.com/revuekit/revue/internal/types"
)

var (
	runRoot      string
	runCatalog   string
	runConfig    string
	runIteration int
)

var runCmd = &cobra.Command{
	Use:   "run [files...]",
	Short: "Run all catalog workers against the given files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(runConfig)
		if err != nil {
			return err
		}

		workers, err := catalog.Load(runCatalog)
		if err != nil {
			return err
		}

		guard, err := cmdguard.New(cmdguard.Config{
			AllowedCommands: cfg.AllCommands(),
			SpawnRate:       cfg.SpawnRatePerSecond,
		})
		if err != nil {
			return err
		}

		runner, err := sandbox.NewRunner(sandbox.Config{
			Root:           runRoot,
			Launcher:       cfg.Launcher,
			Guard:          guard,
			MaxOutputBytes: cfg.MaxOutputBytes,
		})
		if err != nil {
			return err
		}

		sched, err := scheduler.New(scheduler.Config{
			Runner: runner,
			Cache: cache.New(
				cache.WithTTL(time.Duration(cfg.CacheTTLMinutes)*time.Minute),
				cache.WithCapacity(cfg.CacheCapacity),
			),
			MaxConcurrency: cfg.MaxConcurrency,
		})
		if err != nil {
			return err
		}

		files := make(types.FileSet, len(args))
		copy(files, args)

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("\n%s\n\n", cyan("=== revue: running workers ==="))
		fmt.Printf("Root:      %s\n", runRoot)
		fmt.Printf("Workers:   %d\n", len(workers))
		fmt.Printf("Files:     %d\n", len(files))
		fmt.Printf("Iteration: %d\n\n", runIteration)

		start := time.Now()
		results := sched.ExecuteAll(context.Background(), workers, files, runIteration)

		printSummary(results, time.Since(start))

		runner.CleanupStale(time.Duration(cfg.SandboxStaleHours) * time.Hour)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runRoot, "root", ".", "root directory all file reads must resolve under")
	runCmd.Flags().StringVar(&runCatalog, "catalog", "workers.yaml", "worker catalog file")
	runCmd.Flags().StringVar(&runConfig, "config", "", "runtime config file (optional)")
	runCmd.Flags().IntVar(&runIteration, "iteration", 1, "analysis iteration")
}

// printSummary renders one line per worker result plus totals
func printSummary(results []types.ExecutionResult, elapsed time.Duration) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	totalIssues := 0
	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
			fmt.Printf("  %s %-24s %s\n", red("✗"), r.WorkerID, red(r.Error))
			continue
		}
		totalIssues += len(r.Issues)
		icon := green("✓")
		count := fmt.Sprintf("%d issue(s)", len(r.Issues))
		if len(r.Issues) > 0 {
			icon = yellow("●")
		}
		fmt.Printf("  %s %-24s %s %s\n", icon, r.WorkerID, count,
			gray(fmt.Sprintf("(%dms, %s)", r.ExecutionTimeMs, r.SandboxID)))
	}

	fmt.Println()
	fmt.Printf("%d worker(s), %d issue(s), %d failure(s) in %s\n",
		len(results), totalIssues, failed, elapsed.Round(time.Millisecond))
}
