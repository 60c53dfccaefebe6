// revue runs a catalog of external analysis workers against a file set
// and aggregates their findings. The heavy lifting lives in internal/;
// this binary is the thin surface that parses flags, loads the catalog,
// and renders a summary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "revue",
	Short: "Orchestrate sandboxed analysis workers",
	Long: `revue validates a file set, fans analysis workers out across
priority tiers inside a sandboxed execution façade, caches results by
file content, and aggregates findings with strict failure isolation.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(catalogCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
