package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"sort"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/smellgraph/internal/discover"
	"github.com/DeusData/smellgraph/internal/lang"
	"github.com/DeusData/smellgraph/internal/store"
)

// fileState is how a discovered file compares to the previous build.
type fileState int

const (
	stateNew fileState = iota
	stateChanged
	stateUnchanged
)

// classified is the outcome of comparing discovered files to stored hashes.
type classified struct {
	hashes  map[string]string // rel path -> current hash, files that could be hashed
	states  map[string]fileState
	deleted []string // stored files that are no longer discovered
}

// classify hashes every file and compares it to the stored hashes. A file
// that cannot be hashed counts as changed so it is retried.
func classify(ctx context.Context, s *store.Store, project string, files []discover.FileInfo) (*classified, error) {
	stored, err := s.GetFileHashes(project)
	if err != nil {
		return nil, fmt.Errorf("get file hashes: %w", err)
	}

	hashes := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			h, herr := fileHash(f.Path)
			if herr == nil {
				hashes[i] = h
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := &classified{
		hashes: make(map[string]string, len(files)),
		states: make(map[string]fileState, len(files)),
	}
	seen := make(map[string]bool, len(files))
	for i, f := range files {
		seen[f.RelPath] = true
		if hashes[i] != "" {
			c.hashes[f.RelPath] = hashes[i]
		}
		prev, ok := stored[f.RelPath]
		switch {
		case !ok:
			c.states[f.RelPath] = stateNew
		case hashes[i] != "" && prev == hashes[i]:
			c.states[f.RelPath] = stateUnchanged
		default:
			c.states[f.RelPath] = stateChanged
		}
	}
	for rel := range stored {
		if !seen[rel] {
			c.deleted = append(c.deleted, rel)
		}
	}
	sort.Strings(c.deleted)
	return c, nil
}

// dependents returns the unchanged files whose outgoing edges point into
// files that are about to be rewritten or removed. It must run before their
// nodes are deleted.
func dependents(s *store.Store, project string, c *classified, touched []string, skip map[string]bool) ([]string, error) {
	targets := append([]string(nil), touched...)
	targets = append(targets, c.deleted...)

	// A file added to a package directory joins a package its importers
	// already point at through the other files of that directory.
	byDir := map[string][]string{}
	for rel := range c.states {
		byDir[path.Dir(rel)] = append(byDir[path.Dir(rel)], rel)
	}
	for _, rel := range touched {
		if c.states[rel] != stateNew {
			continue
		}
		ls := lang.ForExtension(path.Ext(rel))
		if ls == nil || !ls.PackageImports {
			continue
		}
		for _, sib := range byDir[path.Dir(rel)] {
			if c.states[sib] == stateUnchanged {
				targets = append(targets, sib)
			}
		}
	}

	set := map[string]bool{}
	for _, t := range targets {
		importers, err := s.FindImporters(project, t)
		if err != nil {
			return nil, err
		}
		for _, imp := range importers {
			if !skip[imp] && c.states[imp] == stateUnchanged {
				set[imp] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

// fileHash returns the hex xxh3 hash of a file's content.
func fileHash(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
