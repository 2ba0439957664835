// Package pipeline builds the code graph of a repository: it parses files,
// turns them into write statements, resolves cross-file edges and writes
// everything to the store in batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/smellgraph/internal/cypher"
	"github.com/DeusData/smellgraph/internal/discover"
	"github.com/DeusData/smellgraph/internal/metrics"
	"github.com/DeusData/smellgraph/internal/parser"
	"github.com/DeusData/smellgraph/internal/querybuild"
	"github.com/DeusData/smellgraph/internal/resolve"
	"github.com/DeusData/smellgraph/internal/store"
)

// Defaults for Options.
const (
	DefaultConcurrency  = 4
	DefaultBatchSize    = 10
	DefaultFileTimeout  = 30 * time.Second
	DefaultBatchTimeout = 60 * time.Second
)

var tracer = otel.Tracer("smellgraph/pipeline")

// Options tunes a build. Zero values fall back to the defaults.
type Options struct {
	Concurrency  int
	BatchSize    int
	FileTimeout  time.Duration
	BatchTimeout time.Duration
	// WritesPerSecond throttles batch transactions; zero means unlimited.
	WritesPerSecond float64
	// Incremental skips files whose content hash matches the previous build.
	Incremental bool
	// Extensions tried when resolving extensionless imports; nil means every
	// supported extension.
	Extensions []string
}

// DefaultOptions returns the default build options.
func DefaultOptions() Options {
	return Options{
		Concurrency:  DefaultConcurrency,
		BatchSize:    DefaultBatchSize,
		FileTimeout:  DefaultFileTimeout,
		BatchTimeout: DefaultBatchTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.FileTimeout <= 0 {
		o.FileTimeout = DefaultFileTimeout
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = DefaultBatchTimeout
	}
	return o
}

// Builder writes the graph of one project.
type Builder struct {
	Store   *store.Store
	Project string
	Root    string
	Adapter parser.Adapter
	Options Options
}

// New returns a builder using the tree-sitter adapter.
func New(s *store.Store, project, root string, opts Options) *Builder {
	return &Builder{
		Store:   s,
		Project: project,
		Root:    root,
		Adapter: parser.NewTreeSitter(),
		Options: opts,
	}
}

// ProjectNameFromPath derives a unique project name from an absolute path
// by replacing path separators with dashes.
func ProjectNameFromPath(absPath string) string {
	cleaned := filepath.ToSlash(filepath.Clean(absPath))
	name := strings.ReplaceAll(cleaned, "/", "-")
	name = strings.TrimLeft(name, "-")
	if name == "" {
		return "root"
	}
	return name
}

// Run discovers the files under the builder's root and builds them. Only a
// discovery failure is returned as an error; everything else is in the
// report.
func (b *Builder) Run(ctx context.Context, opts *discover.Options) (*BuildReport, error) {
	files, err := discover.Discover(ctx, b.Root, opts)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	return b.Build(ctx, files), nil
}

// parsed is one file that went through the parser.
type parsed struct {
	info   discover.FileInfo
	result *parser.Result
	err    error
	relink bool     // unchanged importer of a rewritten file: edges only
	deps   []string // resolved import targets
}

// Build processes files and writes them to the store. A failing file or
// batch is reported and never stops the others; the run always completes.
func (b *Builder) Build(ctx context.Context, files []discover.FileInfo) *BuildReport {
	opts := b.Options.withDefaults()
	start := time.Now()
	mode := "full"
	if opts.Incremental {
		mode = "incremental"
	}
	rep := &BuildReport{RunID: uuid.NewString(), Project: b.Project, Incremental: opts.Incremental}

	ctx, span := tracer.Start(ctx, "Builder.Build", trace.WithAttributes(
		attribute.String("project", b.Project),
		attribute.String("run_id", rep.RunID),
		attribute.String("mode", mode),
		attribute.Int("files", len(files)),
	))
	defer span.End()

	log := slog.With("run_id", rep.RunID, "project", b.Project)
	log.Info("pipeline.start", "files", len(files), "mode", mode)
	defer func() {
		rep.Elapsed = time.Since(start)
		metrics.BuildDuration.WithLabelValues(mode).Observe(rep.Elapsed.Seconds())
		span.SetAttributes(
			attribute.Int("files_processed", rep.FilesProcessed),
			attribute.Int("files_failed", rep.FilesFailed),
		)
		if len(rep.Errors) > 0 {
			span.SetStatus(codes.Error, fmt.Sprintf("%d errors", len(rep.Errors)))
		}
		log.Info("pipeline.done",
			"processed", rep.FilesProcessed,
			"failed", rep.FilesFailed,
			"skipped", rep.FilesSkipped,
			"symbols", rep.SymbolsCreated,
			"relationships", rep.RelationshipsCreated,
			"elapsed", rep.Elapsed)
	}()

	abort := func(err error) *BuildReport {
		log.Error("pipeline.abort", "err", err)
		rep.Errors = append(rep.Errors, err)
		rep.FilesFailed = len(files)
		for _, f := range files {
			rep.Failed = append(rep.Failed, f.RelPath)
		}
		return rep
	}

	if b.Adapter == nil {
		b.Adapter = parser.NewTreeSitter()
	}
	if err := b.Store.UpsertProject(b.Project, b.Root); err != nil {
		return abort(fmt.Errorf("upsert project: %w", err))
	}

	t := time.Now()
	c, err := classify(ctx, b.Store, b.Project, files)
	if err != nil {
		return abort(fmt.Errorf("classify: %w", err))
	}

	var process []discover.FileInfo
	var touched []string
	inProcess := map[string]bool{}
	for _, f := range files {
		state := c.states[f.RelPath]
		if opts.Incremental && state == stateUnchanged {
			rep.FilesSkipped++
			metrics.FilesTotal.WithLabelValues("skipped").Inc()
			continue
		}
		process = append(process, f)
		inProcess[f.RelPath] = true
		if state != stateUnchanged {
			touched = append(touched, f.RelPath)
		}
	}

	var relinkPaths []string
	if opts.Incremental {
		relinkPaths, err = dependents(b.Store, b.Project, c, touched, inProcess)
		if err != nil {
			return abort(fmt.Errorf("find dependents: %w", err))
		}
	}
	log.Info("pass.timing", "pass", "classify", "process", len(process), "changed", len(touched),
		"deleted", len(c.deleted), "relink", len(relinkPaths), "elapsed", time.Since(t))

	if len(process) == 0 && len(c.deleted) == 0 {
		log.Info("incremental.noop", "reason", "no_changes")
		return rep
	}

	if err := b.cleanup(ctx, touched, c.deleted, relinkPaths); err != nil {
		return abort(fmt.Errorf("cleanup: %w", err))
	}
	rep.FilesDeleted = len(c.deleted)

	byRel := make(map[string]discover.FileInfo, len(files))
	for _, f := range files {
		byRel[f.RelPath] = f
	}
	units := make([]*parsed, 0, len(process)+len(relinkPaths))
	for _, f := range process {
		units = append(units, &parsed{info: f})
	}
	for _, rel := range relinkPaths {
		units = append(units, &parsed{info: byRel[rel], relink: true})
	}

	t = time.Now()
	b.parseAll(ctx, units, opts)
	log.Info("pass.timing", "pass", "parse", "files", len(units), "elapsed", time.Since(t))

	failed := map[string]bool{}
	for _, u := range units {
		if u.err != nil {
			failed[u.info.RelPath] = true
			rep.Errors = append(rep.Errors, u.err)
			metrics.FilesTotal.WithLabelValues("parse_error").Inc()
			log.Warn("parse.err", "path", u.info.RelPath, "err", u.err)
		}
	}

	t = time.Now()
	stages := b.statements(ctx, units, files, opts, rep)
	log.Info("pass.timing", "pass", "resolve", "elapsed", time.Since(t))

	exec := &cypher.Executor{Store: b.Store, Project: b.Project}
	be := newBatchExecutor(exec, opts)
	stats := cypher.WriteStats{}
	for _, st := range stages {
		t = time.Now()
		var pending []statement
		for _, s := range st.stmts {
			if !failed[s.file] {
				pending = append(pending, s)
			}
		}
		sctx, sspan := tracer.Start(ctx, "pipeline.write", trace.WithAttributes(
			attribute.String("stage", st.name),
			attribute.Int("statements", len(pending)),
		))
		res := be.run(sctx, st.name, pending)
		sspan.End()
		stats.Add(res.stats)
		for f := range res.failed {
			if !failed[f] {
				failed[f] = true
				metrics.FilesTotal.WithLabelValues("write_error").Inc()
			}
		}
		rep.Errors = append(rep.Errors, res.errs...)
		log.Info("pass.timing", "pass", st.name, "statements", len(pending), "errors", len(res.errs), "elapsed", time.Since(t))
	}

	if err := b.storeHashes(ctx, units, c, failed); err != nil {
		rep.Errors = append(rep.Errors, fmt.Errorf("store hashes: %w", err))
	}

	for _, u := range units {
		rel := u.info.RelPath
		switch {
		case failed[rel]:
			rep.FilesFailed++
			rep.Failed = append(rep.Failed, rel)
		case u.relink:
			rep.FilesRelinked++
		default:
			rep.FilesProcessed++
			metrics.FilesTotal.WithLabelValues("ok").Inc()
		}
	}
	sort.Strings(rep.Failed)
	for label, n := range stats.CreatedByLabel {
		if label != "File" {
			rep.SymbolsCreated += n
		}
	}
	rep.RelationshipsCreated = stats.EdgesCreated
	return rep
}

// cleanup removes what the build is about to rewrite. Rewritten and deleted
// files lose their nodes (edges touching them cascade) and their hash, so
// an interrupted build is retried next time. Importers of those files lose
// their outgoing cross-file edges, which are rebuilt from a fresh parse.
func (b *Builder) cleanup(ctx context.Context, touched, deleted, relink []string) error {
	return b.Store.WithTransaction(ctx, func(tx *store.Store) error {
		for _, rel := range append(append([]string(nil), touched...), deleted...) {
			if err := tx.DeleteNodesByFile(b.Project, rel); err != nil {
				return fmt.Errorf("delete nodes %s: %w", rel, err)
			}
			if err := tx.DeleteFileHash(b.Project, rel); err != nil {
				return fmt.Errorf("delete hash %s: %w", rel, err)
			}
		}
		for _, rel := range relink {
			if err := tx.DeleteEdgesBySourceFile(b.Project, rel,
				querybuild.RelImports, querybuild.RelCalls, querybuild.RelReferences); err != nil {
				return fmt.Errorf("delete edges %s: %w", rel, err)
			}
		}
		if len(deleted) > 0 {
			slog.Info("incremental.deleted", "files", len(deleted))
		}
		return nil
	})
}

// parseAll parses units on a bounded pool. Each file gets its own timeout.
func (b *Builder) parseAll(ctx context.Context, units []*parsed, opts Options) {
	g := new(errgroup.Group)
	g.SetLimit(opts.Concurrency)
	for _, u := range units {
		g.Go(func() error {
			res, err := b.parseFile(ctx, u.info, opts.FileTimeout)
			if err != nil {
				u.err = &ParseError{Path: u.info.RelPath, Err: err}
				return nil
			}
			u.result = res
			return nil
		})
	}
	_ = g.Wait()
}

func (b *Builder) parseFile(ctx context.Context, f discover.FileInfo, timeout time.Duration) (*parser.Result, error) {
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	content, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	type outcome struct {
		res *parser.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := b.Adapter.Parse(fctx, f.RelPath, content, f.Language)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		if o.res == nil {
			return nil, errors.New("parser returned no result")
		}
		return o.res, nil
	case <-fctx.Done():
		return nil, fmt.Errorf("timeout after %s: %w", timeout, fctx.Err())
	}
}

// stage is one ordered group of write statements. A stage only depends on
// nodes written by earlier stages.
type stage struct {
	name  string
	stmts []statement
}

// statements builds every write of the run: node fragments for the
// processed files, then IMPORTS edges and resolved CALLS and REFERENCES for
// processed and relinked files.
func (b *Builder) statements(ctx context.Context, units []*parsed, all []discover.FileInfo, opts Options, rep *BuildReport) []stage {
	_, span := tracer.Start(ctx, "pipeline.resolve")
	defer span.End()

	fileStage := stage{name: "files"}
	symbolStage := stage{name: "symbols"}
	containsStage := stage{name: "contains"}
	importStage := stage{name: "imports"}
	refStage := stage{name: "references"}

	table := resolve.NewTable()
	for _, u := range units {
		if u.err != nil {
			continue
		}
		rel := u.info.RelPath
		table.Set(rel, resolve.DefsFromSymbols(u.result.Symbols))
		if u.relink {
			continue
		}
		frag := querybuild.Build(querybuild.File{
			Path:     rel,
			Language: string(u.info.Language),
			Size:     u.info.Size,
		}, u.result.Symbols)
		n := 1 + len(frag.Symbols)
		fileStage.stmts = append(fileStage.stmts, statement{rel, frag.Statements[0]})
		for _, s := range frag.Statements[1:n] {
			symbolStage.stmts = append(symbolStage.stmts, statement{rel, s})
		}
		for _, s := range frag.Statements[n:] {
			containsStage.stmts = append(containsStage.stmts, statement{rel, s})
		}
		for _, w := range frag.Warnings {
			rep.Warnings = append(rep.Warnings, w.String())
		}
	}

	rels := make([]string, len(all))
	for i, f := range all {
		rels[i] = f.RelPath
	}
	importer := resolve.NewImporter(rels, opts.Extensions)

	var resolveUnits []resolve.Unit
	needed := map[string]bool{}
	for _, u := range units {
		if u.err != nil {
			continue
		}
		rel := u.info.RelPath
		var targets []string
		seen := map[string]bool{}
		modules := map[string][]string{}
		for _, spec := range u.result.Imports {
			got := importer.Resolve(rel, spec)
			if len(got) == 0 {
				rep.UnresolvedImports++
				continue
			}
			name := resolve.ImportName(spec)
			modules[name] = append(modules[name], got...)
			for _, target := range got {
				if seen[target] {
					continue
				}
				seen[target] = true
				targets = append(targets, target)
				importStage.stmts = append(importStage.stmts, statement{rel,
					querybuild.Edge(querybuild.RelImports, querybuild.FileRef{Path: rel}, querybuild.FileRef{Path: target})})
				needed[target] = true
			}
		}
		u.deps = targets
		resolveUnits = append(resolveUnits, resolve.Unit{
			Path:      rel,
			Usages:    u.result.Usages,
			Imports:   targets,
			Modules:   modules,
			Receivers: u.result.Receivers,
		})
	}

	// Import targets that were not parsed this run resolve against the
	// symbols already in the store.
	parsedOK := map[string]bool{}
	for _, u := range units {
		if u.err == nil {
			parsedOK[u.info.RelPath] = true
		}
	}
	for target := range needed {
		if parsedOK[target] {
			continue
		}
		defs, err := b.storedDefs(target)
		if err != nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: load symbols: %v", target, err))
			continue
		}
		table.Set(target, defs)
	}

	for _, u := range resolveUnits {
		res := resolve.References(u, table)
		rep.UnresolvedCalls += res.Unresolved
		for _, ref := range res.References {
			refStage.stmts = append(refStage.stmts, statement{u.Path, ref.Statement()})
		}
	}
	sort.Strings(rep.Warnings)

	return []stage{fileStage, symbolStage, containsStage, importStage, refStage}
}

func (b *Builder) storedDefs(file string) ([]resolve.Def, error) {
	nodes, err := b.Store.FindNodesByFile(b.Project, file)
	if err != nil {
		return nil, err
	}
	var defs []resolve.Def
	for _, n := range nodes {
		if n.Label == "File" {
			continue
		}
		defs = append(defs, resolve.Def{Label: n.Label, Name: n.Name, StartLine: n.StartLine, EndLine: n.EndLine})
	}
	return defs, nil
}

// storeHashes records the hash of every file written successfully. Failed
// files have no hash, so the next build retries them. So do files importing
// a failed file, since their edges into it could not be written.
func (b *Builder) storeHashes(ctx context.Context, units []*parsed, c *classified, failed map[string]bool) error {
	return b.Store.WithTransaction(ctx, func(tx *store.Store) error {
		for _, u := range units {
			rel := u.info.RelPath
			if failed[rel] || importsFailed(u, failed) {
				if err := tx.DeleteFileHash(b.Project, rel); err != nil {
					return err
				}
				continue
			}
			h, ok := c.hashes[rel]
			if !ok || u.relink {
				continue
			}
			if err := tx.UpsertFileHash(b.Project, rel, h); err != nil {
				return err
			}
		}
		return nil
	})
}

func importsFailed(u *parsed, failed map[string]bool) bool {
	for _, d := range u.deps {
		if failed[d] {
			return true
		}
	}
	return false
}
