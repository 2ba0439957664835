package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/DeusData/smellgraph/internal/cypher"
	"github.com/DeusData/smellgraph/internal/metrics"
)

// statement is one write attributed to the file it was built for.
type statement struct {
	file string
	text string
}

// batchResult is what a stage of writes produced.
type batchResult struct {
	stats  cypher.WriteStats
	failed map[string]bool
	errs   []error
}

// batchExecutor writes statements in fixed-size batches, one transaction
// per batch. Batches run on a bounded worker pool; the store serializes the
// transactions themselves. A failing batch is not retried and does not stop
// the others.
type batchExecutor struct {
	exec        *cypher.Executor
	size        int
	concurrency int
	timeout     time.Duration
	limiter     *rate.Limiter
}

func newBatchExecutor(exec *cypher.Executor, opts Options) *batchExecutor {
	b := &batchExecutor{
		exec:        exec,
		size:        opts.BatchSize,
		concurrency: opts.Concurrency,
		timeout:     opts.BatchTimeout,
	}
	if opts.WritesPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(opts.WritesPerSecond), 1)
	}
	return b
}

// split cuts statements into batches of at most size.
func split(stmts []statement, size int) [][]statement {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]statement
	for start := 0; start < len(stmts); start += size {
		end := start + size
		if end > len(stmts) {
			end = len(stmts)
		}
		out = append(out, stmts[start:end])
	}
	return out
}

// run writes one stage. Statements within a stage must not depend on each
// other; stages run one after another.
func (b *batchExecutor) run(ctx context.Context, stage string, stmts []statement) batchResult {
	res := batchResult{stats: cypher.WriteStats{}, failed: map[string]bool{}}
	batches := split(stmts, b.size)
	if len(batches) == 0 {
		return res
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(b.concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			stats, err := b.write(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				werr := &WriteError{Stage: stage, Batch: i, Files: batchFiles(batch), Statements: len(batch), Err: err}
				for _, f := range werr.Files {
					res.failed[f] = true
				}
				res.errs = append(res.errs, werr)
				metrics.BatchWritesTotal.WithLabelValues(stage, "error").Inc()
				slog.Warn("batch.write.err", "stage", stage, "batch", i, "statements", len(batch), "err", err)
				return nil
			}
			res.stats.Add(stats)
			metrics.BatchWritesTotal.WithLabelValues(stage, "ok").Inc()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.errs, func(i, j int) bool {
		return res.errs[i].(*WriteError).Batch < res.errs[j].(*WriteError).Batch
	})
	return res
}

func (b *batchExecutor) write(ctx context.Context, batch []statement) (cypher.WriteStats, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return cypher.WriteStats{}, err
		}
	}
	bctx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	texts := make([]string, len(batch))
	for i, s := range batch {
		texts[i] = s.text
	}
	start := time.Now()
	stats, err := b.exec.Write(bctx, texts)
	metrics.BatchDuration.Observe(time.Since(start).Seconds())
	return stats, err
}

func batchFiles(batch []statement) []string {
	seen := map[string]bool{}
	var files []string
	for _, s := range batch {
		if !seen[s.file] {
			seen[s.file] = true
			files = append(files, s.file)
		}
	}
	sort.Strings(files)
	return files
}
