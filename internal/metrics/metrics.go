// Package metrics holds the Prometheus collectors shared by the build
// pipeline and the detector runner.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FilesTotal counts processed files by result ("ok", "parse_error", "write_error", "skipped").
	FilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smellgraph_build_files_total",
		Help: "Files handled by the build pipeline by result",
	}, []string{"result"})

	// BatchWritesTotal counts write batches by status.
	BatchWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smellgraph_batch_writes_total",
		Help: "Write batches by status",
	}, []string{"stage", "status"})

	// BatchDuration tracks the latency of one write transaction.
	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "smellgraph_batch_write_duration_seconds",
		Help:    "Write batch duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	// BuildDuration tracks whole builds.
	BuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smellgraph_build_duration_seconds",
		Help:    "Build duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"mode"})

	// DetectorRunsTotal counts detector executions by status.
	DetectorRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smellgraph_detector_runs_total",
		Help: "Detector runs by detector and status",
	}, []string{"detector", "status"})

	// DetectorDuration tracks detector latency.
	DetectorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smellgraph_detector_duration_seconds",
		Help:    "Detector duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"detector"})

	// FindingsTotal counts emitted findings by severity.
	FindingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smellgraph_findings_total",
		Help: "Findings by severity",
	}, []string{"severity"})
)

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics.listen", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
