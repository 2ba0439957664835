package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/DeusData/smellgraph/internal/detect"
)

// Options configures one analysis run.
type Options struct {
	Include     []string
	Exclude     []string
	Thresholds  map[string]float64
	Concurrency int
	Timeout     time.Duration
	Links       Links
}

// Analyze validates opts, runs the selected detectors against q and
// aggregates the result. Configuration errors are returned before any
// detector runs; detector failures are reported inside the Report.
func Analyze(ctx context.Context, q detect.Querier, project string, opts Options) (*Report, error) {
	ds, err := detect.Default().Select(opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}
	th := detect.DefaultThresholds()
	if err := th.Apply(opts.Thresholds); err != nil {
		return nil, err
	}
	runner := &detect.Runner{Querier: q, Concurrency: opts.Concurrency, Timeout: opts.Timeout}
	res := runner.Run(ctx, ds, th)
	r := Aggregate(project, res, opts.Links)
	slog.Info("analyze.done", "run_id", r.RunID, "project", project, "findings", r.Total, "errors", len(r.Errors))
	return r, nil
}
