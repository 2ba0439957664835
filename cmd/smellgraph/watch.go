package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/DeusData/smellgraph/internal/pipeline"
	"github.com/DeusData/smellgraph/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [path]",
		Short: "Build the graph and rebuild it incrementally when files change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, project, err := resolveRoot(args)
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			a.serveMetrics(ctx)

			dopts := a.cfg.DiscoverOptions()
			popts := a.cfg.PipelineOptions()
			popts.Incremental = true

			var mu sync.Mutex
			build := func(ctx context.Context, root string) error {
				mu.Lock()
				defer mu.Unlock()
				rep, err := pipeline.New(s, project, root, popts).Run(ctx, dopts)
				if err != nil {
					return err
				}
				slog.Info("watch.build", "project", project,
					"processed", rep.FilesProcessed, "skipped", rep.FilesSkipped, "failed", rep.FilesFailed)
				return nil
			}

			if err := build(ctx, root); err != nil {
				return err
			}
			slog.Info("watch.start", "path", root, "project", project)
			watcher.New(root, dopts, build).Run(ctx)
			return nil
		},
	}
}
