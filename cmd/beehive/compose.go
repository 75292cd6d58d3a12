package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/beehive/compose"
	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/engine"
	"github.com/hupe1980/beehive/registry"
)

var composeAgents []string

var composeCmd = &cobra.Command{
	Use:   "compose <input>",
	Short: "Run platform agents in sequence, each on the previous output",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(composeAgents) == 0 {
			return fmt.Errorf("at least one --agent is required")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := loadApp(ctx, os.Stderr)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

		if err := a.platform.Init(ctx, composeAgents, true); err != nil {
			return err
		}
		remotes, err := a.platform.ListAgents(ctx)
		if err != nil {
			return err
		}

		reg := registry.New(a.factory, nil, core.SingleShotSwitches(), func(o *registry.Options) {
			o.Logger = a.logger.WithComponent("registry")
		})
		if err := reg.RegisterAll(engine.MergeConfigs(engine.OperatorConfigs(remotes, a.cfg.Engine.OperatorPoolSize), a.fixtures)...); err != nil {
			return err
		}

		pipeline := compose.New(reg, func(o *compose.Options) {
			o.Logger = a.logger.WithComponent("compose")
		})
		for _, name := range composeAgents {
			cfg, ok := reg.Config(strings.ToLower(name))
			if !ok {
				cfg, ok = reg.Config(name)
			}
			if !ok {
				return core.NewError("compose", core.ErrUnknownAgent, fmt.Sprintf("agent %q", name))
			}
			if err := pipeline.Add(cfg); err != nil {
				return err
			}
		}

		go func() {
			<-ctx.Done()
			pipeline.Cancel()
		}()

		out, err := pipeline.Submit(ctx, strings.Join(args, " "))
		printSlots(cmd.ErrOrStderr(), pipeline.Slots())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func printSlots(w io.Writer, slots []compose.Slot) {
	now := time.Now()
	for i, s := range slots {
		var elapsed time.Duration
		if s.Stats != nil {
			elapsed = s.Stats.Elapsed(now)
		}
		fmt.Fprintf(w, "[%d] %s pending=%t elapsed=%s logs=%d\n", i, s.Config.AgentType, s.IsPending, elapsed.Round(time.Millisecond), len(s.Logs))
	}
}

func init() {
	composeCmd.Flags().StringArrayVarP(&composeAgents, "agent", "a", nil, "agent to add to the composition (repeatable, in order)")
}
