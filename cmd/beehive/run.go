package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/engine"
)

var (
	runAgents   []string
	runNoAgents bool
	runStream   bool
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a single task through the supervisor",
	Long: `Run a single task through the supervisor and print its answer.

Without --agents every platform agent is available. --no-agents runs the
supervisor with no platform agents at all.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := loadApp(ctx, os.Stderr)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

		req := engine.Request{
			Text:            strings.Join(args, " "),
			AvailableAgents: allowList(cmd.Flags().Changed("agents"), runAgents, runNoAgents),
		}
		out := cmd.OutOrStdout()

		var onProgress func(core.ProgressNotification)
		if runStream {
			req.ProgressToken = "cli"
			onProgress = func(n core.ProgressNotification) {
				fmt.Fprint(out, n.DeltaValue)
			}
		}

		res, err := a.hive.Run(ctx, req, onProgress)
		if err != nil {
			return err
		}
		if runStream {
			fmt.Fprintln(out)
			return nil
		}
		fmt.Fprintln(out, res.Text)
		return nil
	},
}

// allowList turns the agent flags into an allow-list: nil when no filter
// was requested, empty when every agent is excluded.
func allowList(changed bool, agents []string, none bool) []string {
	if none {
		return []string{}
	}
	if !changed {
		return nil
	}
	out := make([]string, 0, len(agents))
	for _, a := range agents {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func init() {
	runCmd.Flags().StringSliceVar(&runAgents, "agents", nil, "platform agents the supervisor may use (comma separated)")
	runCmd.Flags().BoolVar(&runNoAgents, "no-agents", false, "run without platform agents")
	runCmd.Flags().BoolVar(&runStream, "stream", false, "print the answer while it is produced")
}
