package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/beehive/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the supervisor as an MCP tool over SSE",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := loadApp(ctx, os.Stderr)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

		addr := a.cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		srv := server.New(a.engine, func(o *server.Options) {
			o.Version = version
			o.BaseURL = a.cfg.Server.BaseURL
			o.Logger = a.logger.WithComponent("server")
		})
		return srv.ServeSSE(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}
