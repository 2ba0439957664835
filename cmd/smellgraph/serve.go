package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/DeusData/smellgraph/internal/metrics"
	"github.com/DeusData/smellgraph/internal/tools"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the graph and detectors as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			a.serveMetrics(ctx)

			slog.Info("mcp.serve", "db", s.Path())
			return tools.NewServer(s, a.cfg, &sync.Mutex{}).Run(ctx)
		},
	}
}

// serveMetrics starts the metrics listener in the background when an
// address is configured. It stops with ctx.
func (a *app) serveMetrics(ctx context.Context) {
	addr := a.cfg.Metrics.Addr
	if addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, addr); err != nil {
			slog.Error("metrics.serve", "addr", addr, "err", err)
		}
	}()
}
