package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "beehive",
	Short: "Supervisor orchestration for platform agents",
	Long: `beehive coordinates a user task across agents. A supervisor reasoning
agent decomposes the task and delegates sub-tasks to agents listed by the
remote platform, streaming its answer back as it is produced.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./beehive.yaml or ~/.config/beehive/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(versionCmd)
}
