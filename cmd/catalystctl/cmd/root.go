package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "catalystctl",
	Short: "Operate a catalyst orchestrator",
	Long: `catalystctl talks to a running catalyst API server to submit
pipeline tasks and inspect their progress, and connects to the broker
directly to bootstrap its topology.`,
}

func init() {
	rootCmd.PersistentFlags().String("server", "http://127.0.0.1:8080", "catalyst API base URL")

	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(topologyCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
