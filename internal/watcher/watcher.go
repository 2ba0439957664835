// Package watcher polls a repository for changes and triggers incremental
// graph builds.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DeusData/smellgraph/internal/discover"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// BuildFunc runs an incremental build of root.
type BuildFunc func(ctx context.Context, root string) error

// Watcher polls one repository root and calls its BuildFunc when the set of
// discovered files or their mtime or size changes. Filesystem notifications,
// when available, only make the next poll happen sooner.
type Watcher struct {
	root    string
	opts    *discover.Options
	buildFn BuildFunc

	snapshot map[string]fileSnapshot
	interval time.Duration
	nextPoll time.Time
}

// New creates a Watcher for root. opts filters discovery the same way the
// build does.
func New(root string, opts *discover.Options, buildFn BuildFunc) *Watcher {
	return &Watcher{root: root, opts: opts, buildFn: buildFn, interval: baseInterval}
}

// Run blocks until ctx is cancelled. It ticks at baseInterval and polls when
// the adaptive interval has elapsed or a filesystem event arrived.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(baseInterval)
	defer ticker.Stop()

	events := w.notifications(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-events:
			w.nextPoll = time.Time{}
		case <-ticker.C:
		}
		if !time.Now().Before(w.nextPoll) {
			w.poll(ctx)
		}
	}
}

// notifications returns a channel that receives on filesystem writes below
// the root, or nil when notifications are unavailable.
func (w *Watcher) notifications(ctx context.Context) <-chan struct{} {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Debug("watcher.notify.unavailable", "err", err)
		return nil
	}
	dirs := map[string]bool{w.root: true}
	if files, err := discover.Discover(ctx, w.root, w.opts); err == nil {
		for _, f := range files {
			dirs[filepath.Dir(f.Path)] = true
		}
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			slog.Debug("watcher.notify.add", "dir", d, "err", err)
		}
	}

	out := make(chan struct{}, 1)
	go func() {
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-fw.Events:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				slog.Debug("watcher.notify.err", "err", err)
			}
		}
	}()
	return out
}

// poll captures a snapshot and compares it with the previous one. The first
// poll only records a baseline.
func (w *Watcher) poll(ctx context.Context) {
	if _, err := os.Stat(w.root); err != nil {
		slog.Warn("watcher.root_gone", "path", w.root)
		w.nextPoll = time.Now().Add(maxInterval)
		return
	}

	snap, err := captureSnapshot(ctx, w.root, w.opts)
	if err != nil {
		slog.Warn("watcher.snapshot", "path", w.root, "err", err)
		w.nextPoll = time.Now().Add(w.interval)
		return
	}
	interval := pollInterval(len(snap))

	if w.snapshot == nil {
		slog.Debug("watcher.baseline", "path", w.root, "files", len(snap))
		w.snapshot = snap
		w.interval = interval
		w.nextPoll = time.Now().Add(interval)
		return
	}

	if snapshotsEqual(w.snapshot, snap) {
		w.interval = interval
		w.nextPoll = time.Now().Add(interval)
		return
	}

	slog.Info("watcher.changed", "path", w.root, "files", len(snap))
	if err := w.buildFn(ctx, w.root); err != nil {
		slog.Warn("watcher.build", "path", w.root, "err", err)
		// Keep the old snapshot so the change is retried.
		w.nextPoll = time.Now().Add(interval)
		return
	}

	w.snapshot = snap
	w.interval = interval
	w.nextPoll = time.Now().Add(interval)
}

// captureSnapshot records mtime and size of every discovered file.
func captureSnapshot(ctx context.Context, root string, opts *discover.Options) (map[string]fileSnapshot, error) {
	files, err := discover.Discover(ctx, root, opts)
	if err != nil {
		return nil, err
	}
	snap := make(map[string]fileSnapshot, len(files))
	for _, f := range files {
		snap[f.RelPath] = fileSnapshot{modTime: f.ModTime, size: f.Size}
	}
	return snap, nil
}

// snapshotsEqual returns true if two snapshots have identical files with same mtime+size.
func snapshotsEqual(a, b map[string]fileSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for path, aSnap := range a {
		bSnap, ok := b[path]
		if !ok {
			return false
		}
		if !aSnap.modTime.Equal(bSnap.modTime) || aSnap.size != bSnap.size {
			return false
		}
	}
	return true
}

// pollInterval computes the adaptive interval from file count.
// 1s base + 1s per 500 files, capped at 60s.
func pollInterval(fileCount int) time.Duration {
	d := baseInterval + time.Duration(fileCount/500)*time.Second
	return min(d, maxInterval)
}
