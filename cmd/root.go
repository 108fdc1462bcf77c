package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "speedrun-go",
	Short: "Cross-chain intent protocol node",
	Long: `speedrun-go hosts the intent protocol: spoke-chain intent contracts
that lock value and record fulfillments, and the hub router that routes
intents to their destination chain and emits settlements.

Examples:
  speedrun-go run --topology topology.yaml
  speedrun-go demo`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
