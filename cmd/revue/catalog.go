package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/revuekit/revue/internal/catalog"
	"github.com/revuekit/revue/internal/types"
)

var catalogFile string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Validate and list a worker catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		workers, err := catalog.Load(catalogFile)
		if err != nil {
			return fmt.Errorf("catalog %s: %w", catalogFile, err)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf("=== %s: %d worker(s) ===", catalogFile, len(workers))))

		byTier := make(map[types.Tier][]types.Worker)
		for _, w := range workers {
			byTier[w.Tier] = append(byTier[w.Tier], w)
		}
		for _, tier := range types.TierOrder {
			tierWorkers := byTier[tier]
			if len(tierWorkers) == 0 {
				continue
			}
			fmt.Printf("%s:\n", tierColor(tier)(string(tier)))
			for _, w := range tierWorkers {
				fmt.Printf("  %-24s %-12s %s %s\n", w.ID, w.Category,
					w.DisplayName, gray(fmt.Sprintf("(%s, %s)", w.ModelTag, w.Timeout)))
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	catalogCmd.Flags().StringVar(&catalogFile, "catalog", "workers.yaml", "worker catalog file")
}

func tierColor(tier types.Tier) func(a ...interface{}) string {
	switch tier {
	case types.TierCritical:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case types.TierHigh:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case types.TierMedium:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	default:
		return color.New(color.FgWhite).SprintFunc()
	}
}
