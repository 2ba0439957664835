package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/DeusData/smellgraph/internal/pipeline"
)

func newBuildCmd(a *app) *cobra.Command {
	var (
		incremental bool
		concurrency int
		batchSize   int
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "build [path]",
		Short: "Parse a repository and write its code graph",
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

			opts := a.cfg.PipelineOptions()
			if cmd.Flags().Changed("incremental") {
				opts.Incremental = incremental
			}
			if cmd.Flags().Changed("concurrency") {
				opts.Concurrency = concurrency
			}
			if cmd.Flags().Changed("batch-size") {
				opts.BatchSize = batchSize
			}

			rep, err := pipeline.New(s, project, root, opts).Run(cmd.Context(), a.cfg.DiscoverOptions())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return rep.WriteText(cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.BoolVar(&incremental, "incremental", false, "only reprocess files changed since the last build")
	f.IntVar(&concurrency, "concurrency", pipeline.DefaultConcurrency, "files parsed and batches written in parallel")
	f.IntVar(&batchSize, "batch-size", pipeline.DefaultBatchSize, "statements per write transaction")
	f.BoolVar(&asJSON, "json", false, "print the build report as JSON")
	return cmd
}
