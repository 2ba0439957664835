package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/smellgraph/internal/metrics"
)

// DefaultConcurrency caps concurrent detectors.
const DefaultConcurrency = 4

var tracer = otel.Tracer("smellgraph/detect")

// Runner executes detectors on a bounded worker pool.
type Runner struct {
	Querier     Querier
	Concurrency int
	// Timeout bounds each detector; zero means no limit.
	Timeout time.Duration
}

// Result is the raw outcome of one run, in detector name order.
type Result struct {
	RunID     string
	Detectors []string
	Findings  []Finding
	Errors    []*QueryError
	Elapsed   time.Duration
}

// Run executes detectors with th. A failing, timed-out or panicking
// detector is recorded as a QueryError and the rest still report.
func (r *Runner) Run(ctx context.Context, detectors []Detector, th Thresholds) *Result {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	if th == nil {
		th = DefaultThresholds()
	}
	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	ctx, span := tracer.Start(ctx, "Runner.Run", trace.WithAttributes(
		attribute.String("run_id", res.RunID),
		attribute.Int("detectors", len(detectors)),
	))
	defer span.End()
	log := slog.With("run_id", res.RunID)

	findings := make([][]Finding, len(detectors))
	errs := make([]*QueryError, len(detectors))
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for i, d := range detectors {
		res.Detectors = append(res.Detectors, d.Name())
		g.Go(func() error {
			findings[i], errs[i] = r.runOne(ctx, d, th, log)
			return nil
		})
	}
	_ = g.Wait()

	for i := range detectors {
		res.Findings = append(res.Findings, findings[i]...)
		if errs[i] != nil {
			res.Errors = append(res.Errors, errs[i])
		}
	}
	res.Elapsed = time.Since(start)
	span.SetAttributes(attribute.Int("findings", len(res.Findings)), attribute.Int("errors", len(res.Errors)))
	if len(res.Errors) > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d detectors failed", len(res.Errors)))
	}
	log.Info("detect.done", "detectors", len(detectors), "findings", len(res.Findings),
		"errors", len(res.Errors), "elapsed", res.Elapsed)
	return res
}

func (r *Runner) runOne(ctx context.Context, d Detector, th Thresholds, log *slog.Logger) (out []Finding, qerr *QueryError) {
	name := d.Name()
	start := time.Now()
	ctx, span := tracer.Start(ctx, "detect."+name, trace.WithAttributes(attribute.String("detector", name)))
	defer span.End()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			out, qerr = nil, &QueryError{Detector: name, Err: fmt.Errorf("panic: %v", p)}
		}
		status := "ok"
		if qerr != nil {
			status = "error"
			span.RecordError(qerr)
			span.SetStatus(codes.Error, qerr.Error())
			log.Warn("detect.err", "detector", name, "err", qerr.Err)
		}
		metrics.DetectorRunsTotal.WithLabelValues(name, status).Inc()
		metrics.DetectorDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		return nil, &QueryError{Detector: name, Err: err}
	}
	findings, err := d.Detect(ctx, r.Querier, th)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		var qe *QueryError
		if errors.As(err, &qe) {
			return nil, qe
		}
		return nil, &QueryError{Detector: name, Err: err}
	}
	for i := range findings {
		findings[i].Detector = name
		metrics.FindingsTotal.WithLabelValues(string(findings[i].Severity)).Inc()
	}
	span.SetAttributes(attribute.Int("findings", len(findings)))
	log.Info("detect.run", "detector", name, "findings", len(findings), "elapsed", time.Since(start))
	return findings, nil
}
