package detect

import (
	"context"
	"fmt"
	"path"
	"sort"
)

func detectFeatureEnvy(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	g, err := loadImportGraph(ctx, q)
	if err != nil {
		return nil, err
	}
	limit := th.Float(FeatureEnvyImports)
	var out []Finding
	for _, f := range g.files {
		n := float64(g.fanOut(f))
		if n == 0 || n <= limit {
			continue
		}
		sev := SeverityMedium
		if n > 15 {
			sev = SeverityHigh
		}
		out = append(out, Finding{
			Severity:       sev,
			Description:    fmt.Sprintf("%s depends on %d other files (threshold %g)", f, int(n), limit),
			Locations:      []Location{{File: f}},
			Metrics:        map[string]float64{"external_dependencies": n, "threshold": limit},
			Recommendation: "Move the functionality closer to the data it uses.",
		})
	}
	return out, nil
}

// directory is the folder a file lives in; "." for the repository root.
func directory(file string) string {
	return path.Dir(file)
}

func detectCrossDirectoryCoupling(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	g, err := loadImportGraph(ctx, q)
	if err != nil {
		return nil, err
	}
	limit := th.Float(CrossDirectoryCount)
	var out []Finding
	for _, f := range g.files {
		own := directory(f)
		dirs := map[string]bool{}
		for _, t := range g.out[f] {
			if d := directory(t); d != own {
				dirs[d] = true
			}
		}
		n := float64(len(dirs))
		if n == 0 || n < limit {
			continue
		}
		out = append(out, Finding{
			Severity:       SeverityMedium,
			Description:    fmt.Sprintf("%s imports from %d other directories (threshold %g)", f, int(n), limit),
			Locations:      []Location{{File: f}},
			Metrics:        map[string]float64{"distinct_dirs": n, "threshold": limit},
			Recommendation: "Import through a stable boundary or reduce coupling across feature folders.",
		})
	}
	return out, nil
}

// callable is a function or method with its outgoing CALLS and REFERENCES.
type callable struct {
	id, name, file string
	line           int
	internal       int
	external       int
	calledFiles    map[string]bool // files other than its own it calls into
}

// loadCallables returns every function and method that uses another
// symbol, ordered by file and line.
func loadCallables(ctx context.Context, q Querier) ([]*callable, error) {
	rows, err := query(ctx, q, `MATCH (m:Function|Method)-[r:CALLS|REFERENCES]->(t)
		RETURN m.qualified_name AS id, m.name AS name, m.file_path AS file, m.start_line AS line,
			r.type AS rel, t.qualified_name AS target, t.file_path AS target_file`, nil)
	if err != nil {
		return nil, err
	}
	byID := map[string]*callable{}
	seen := map[string]bool{}
	for _, r := range rows {
		id := str(r, "id")
		key := id + "\x00" + str(r, "rel") + "\x00" + str(r, "target")
		if seen[key] {
			continue
		}
		seen[key] = true
		c := byID[id]
		if c == nil {
			c = &callable{id: id, name: str(r, "name"), file: str(r, "file"), line: integer(r, "line"), calledFiles: map[string]bool{}}
			byID[id] = c
		}
		target := str(r, "target_file")
		if target == c.file {
			c.internal++
			continue
		}
		c.external++
		if str(r, "rel") == "CALLS" {
			c.calledFiles[target] = true
		}
	}
	out := make([]*callable, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].file != out[j].file {
			return out[i].file < out[j].file
		}
		if out[i].line != out[j].line {
			return out[i].line < out[j].line
		}
		return out[i].id < out[j].id
	})
	return out, nil
}

func (c *callable) location() Location {
	return Location{File: c.file, Symbol: c.name, Line: c.line}
}

func detectFeatureEnvyAdvanced(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	callables, err := loadCallables(ctx, q)
	if err != nil {
		return nil, err
	}
	limit := th.Float(FeatureEnvyExternalCalls)
	var out []Finding
	for _, c := range callables {
		ext, in := float64(c.external), float64(c.internal)
		if ext == 0 || ext < limit || ext <= in {
			continue
		}
		sev := SeverityMedium
		if ext >= 10 {
			sev = SeverityHigh
		}
		out = append(out, Finding{
			Severity:       sev,
			Description:    fmt.Sprintf("%s uses external code %d times and its own file %d times", c.name, c.external, c.internal),
			Locations:      []Location{c.location()},
			Metrics:        map[string]float64{"external_calls": ext, "internal_calls": in, "threshold": limit},
			Recommendation: "Move the behavior closer to the data it uses, or put a facade in front of it.",
		})
	}
	return out, nil
}

func detectLawOfDemeter(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	callables, err := loadCallables(ctx, q)
	if err != nil {
		return nil, err
	}
	limit := th.Float(DemeterExternalFiles)
	var out []Finding
	for _, c := range callables {
		n := float64(len(c.calledFiles))
		if n == 0 || n < limit {
			continue
		}
		sev := SeverityMedium
		if n >= 5 {
			sev = SeverityHigh
		}
		out = append(out, Finding{
			Severity:       sev,
			Description:    fmt.Sprintf("%s calls into %d other files (threshold %g)", c.name, int(n), limit),
			Locations:      []Location{c.location()},
			Metrics:        map[string]float64{"external_modules": n, "threshold": limit},
			Recommendation: "Talk to direct collaborators only; add an intermediary for the rest.",
		})
	}
	return out, nil
}

// maxChainDepth bounds the call chains message_chain follows.
const maxChainDepth = 5

// callGraph is the CALLS graph between functions and methods.
type callGraph struct {
	out  map[string][]string
	info map[string]Location
}

func loadCallGraph(ctx context.Context, q Querier) (*callGraph, error) {
	rows, err := query(ctx, q, `MATCH (a:Function|Method)-[:CALLS]->(b:Function|Method)
		RETURN DISTINCT a.qualified_name AS src, b.qualified_name AS dst,
			a.name AS name, a.file_path AS file, a.start_line AS line`, nil)
	if err != nil {
		return nil, err
	}
	g := &callGraph{out: map[string][]string{}, info: map[string]Location{}}
	for _, r := range rows {
		src, dst := str(r, "src"), str(r, "dst")
		if src == dst {
			continue
		}
		g.out[src] = append(g.out[src], dst)
		g.info[src] = symbolLocation(r)
	}
	for k := range g.out {
		sort.Strings(g.out[k])
	}
	return g, nil
}

// longest returns the length in edges of the longest simple call chain
// from src, capped at limit.
func (g *callGraph) longest(src string, limit int) int {
	onPath := map[string]bool{src: true}
	best := 0
	var walk func(v string, depth int)
	walk = func(v string, depth int) {
		if depth > best {
			best = depth
		}
		if best >= limit || depth == limit {
			return
		}
		for _, w := range g.out[v] {
			if onPath[w] {
				continue
			}
			onPath[w] = true
			walk(w, depth+1)
			onPath[w] = false
			if best >= limit {
				return
			}
		}
	}
	walk(src, 0)
	return best
}

func detectMessageChains(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	g, err := loadCallGraph(ctx, q)
	if err != nil {
		return nil, err
	}
	limit := th.Float(MessageChainLength)
	depth := max(maxChainDepth, th.Int(MessageChainLength))
	sources := make([]string, 0, len(g.out))
	for src := range g.out {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool {
		a, b := g.info[sources[i]], g.info[sources[j]]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return sources[i] < sources[j]
	})
	var out []Finding
	for _, src := range sources {
		n := float64(g.longest(src, depth))
		if n < limit {
			continue
		}
		sev := SeverityMedium
		if n >= limit+1 {
			sev = SeverityHigh
		}
		loc := g.info[src]
		out = append(out, Finding{
			Severity:       sev,
			Description:    fmt.Sprintf("%s starts a call chain %d calls deep (threshold %g)", loc.Symbol, int(n), limit),
			Locations:      []Location{loc},
			Metrics:        map[string]float64{"max_chain": n, "threshold": limit},
			Recommendation: "Break the chain with accessors on direct collaborators, or push the logic down.",
		})
	}
	return out, nil
}
