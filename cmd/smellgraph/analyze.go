package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/DeusData/smellgraph/internal/cypher"
	"github.com/DeusData/smellgraph/internal/pipeline"
	"github.com/DeusData/smellgraph/internal/report"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		project    string
		build      bool
		format     string
		output     string
		include    []string
		exclude    []string
		thresholds map[string]string
		repoURL    string
		branch     string
	)
	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Run smell detectors over a built graph and print a report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, name, err := resolveRoot(args)
			if err != nil {
				return err
			}
			if project != "" {
				name = project
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if build {
				if _, err := pipeline.New(s, name, root, a.cfg.PipelineOptions()).Run(cmd.Context(), a.cfg.DiscoverOptions()); err != nil {
					return err
				}
			}
			proj, err := s.GetProject(name)
			if err != nil {
				return err
			}
			if proj == nil {
				return fmt.Errorf("project %s has no graph; run smellgraph build first", name)
			}

			opts := report.Options{
				Include:     a.cfg.Detect.Include,
				Exclude:     a.cfg.Detect.Exclude,
				Thresholds:  map[string]float64{},
				Concurrency: a.cfg.Detect.Concurrency,
				Timeout:     time.Duration(a.cfg.Detect.Timeout),
				Links:       a.cfg.Links(),
			}
			for k, v := range a.cfg.Detect.Thresholds {
				opts.Thresholds[k] = v
			}
			for k, v := range thresholds {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return fmt.Errorf("threshold %s: %q is not a number", k, v)
				}
				opts.Thresholds[k] = f
			}
			if cmd.Flags().Changed("include") {
				opts.Include = include
			}
			if cmd.Flags().Changed("exclude") {
				opts.Exclude = exclude
			}
			if repoURL != "" {
				opts.Links.RepoURL = repoURL
			}
			if branch != "" {
				opts.Links.Branch = branch
			}
			if format == "" {
				format = a.cfg.Report.Format
			}

			exec := &cypher.Executor{Store: s, Project: name}
			r, err := report.Analyze(cmd.Context(), exec, name, opts)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := r.Write(w, format); err != nil {
				return err
			}
			if r.Failed() {
				return fmt.Errorf("%d detectors failed", len(r.Errors))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&project, "project", "", "project name (default derived from path)")
	f.BoolVar(&build, "build", false, "build the graph before analyzing")
	f.StringVar(&format, "format", "", "report format: text, html or json (default from config)")
	f.StringVarP(&output, "output", "o", "", "write the report to a file instead of stdout")
	f.StringSliceVar(&include, "include", nil, "detectors to run (default all)")
	f.StringSliceVar(&exclude, "exclude", nil, "detectors to skip")
	f.StringToStringVar(&thresholds, "threshold", nil, "threshold override, e.g. --threshold fan_in=8")
	f.StringVar(&repoURL, "repo-url", "", "repository URL used for source links")
	f.StringVar(&branch, "branch", "", "branch used for source links (default main)")
	return cmd
}
