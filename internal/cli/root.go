// Package cli implements the DriftWatch command-line interface using
// Cobra. Each subcommand maps to one daemon capability (serve, models,
// drift, logs).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "driftwatch",
	Short: "DriftWatch — model lifecycle and drift monitoring",
	Long: `DriftWatch validates and deploys pushed ML models, logs their
predictions, and watches live traffic for distribution drift against
each model's reference baseline.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
