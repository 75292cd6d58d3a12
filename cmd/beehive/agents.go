package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/engine"
)

var agentsAllow []string

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the agents the supervisor can use",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := loadApp(ctx, os.Stderr)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

		if err := a.platform.Init(ctx, allowList(cmd.Flags().Changed("allow"), agentsAllow, false), true); err != nil {
			return err
		}
		remotes, err := a.platform.ListAgents(ctx)
		if err != nil {
			return err
		}
		cfgs := engine.MergeConfigs(engine.OperatorConfigs(remotes, a.cfg.Engine.OperatorPoolSize), a.fixtures)
		return printAgents(cmd.OutOrStdout(), cfgs)
	},
}

func printAgents(w io.Writer, cfgs []core.AgentConfig) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tKIND\tPOOL\tDESCRIPTION")
	for _, c := range cfgs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.AgentType, c.AgentKind, c.MaxPoolSize, c.Description)
	}
	return tw.Flush()
}

func init() {
	agentsCmd.Flags().StringSliceVar(&agentsAllow, "allow", nil, "only list these agents")
}
