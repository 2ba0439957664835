package detect

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// query runs a read and wraps failures with the query text.
func query(ctx context.Context, q Querier, text string, params map[string]any) ([]map[string]any, error) {
	res, err := q.Read(ctx, text, params)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", text, err)
	}
	return res.Rows, nil
}

func str(row map[string]any, col string) string {
	switch v := row[col].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// num reads a numeric column. Stored properties come back as float64,
// structural fields and counts as int.
func num(row map[string]any, col string) float64 {
	switch v := row[col].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

func integer(row map[string]any, col string) int {
	return int(math.Round(num(row, col)))
}

// entryPoints are names run by a runtime or framework rather than called
// from the code.
var entryPoints = map[string]bool{
	"main": true, "init": true, "__main__": true, "setup": true, "teardown": true,
	"setUp": true, "tearDown": true, "setUpClass": true, "tearDownClass": true,
	"constructor": true, "render": true, "default": true,
}

func isEntryPoint(name string) bool {
	if entryPoints[name] {
		return true
	}
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return true
	}
	for _, prefix := range []string{"test_", "Test", "Benchmark", "Example", "Fuzz"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return name == "test"
}

// importGraph is the file-level IMPORTS graph.
type importGraph struct {
	files []string            // every File node, sorted
	out   map[string][]string // distinct targets, sorted
	in    map[string][]string // distinct sources, sorted
}

func loadImportGraph(ctx context.Context, q Querier) (*importGraph, error) {
	fileRows, err := query(ctx, q, `MATCH (f:File) RETURN f.path AS file ORDER BY file`, nil)
	if err != nil {
		return nil, err
	}
	edgeRows, err := query(ctx, q, `MATCH (a:File)-[:IMPORTS]->(b:File) RETURN DISTINCT a.path AS src, b.path AS dst`, nil)
	if err != nil {
		return nil, err
	}
	g := &importGraph{out: map[string][]string{}, in: map[string][]string{}}
	for _, r := range fileRows {
		g.files = append(g.files, str(r, "file"))
	}
	sort.Strings(g.files)
	for _, r := range edgeRows {
		src, dst := str(r, "src"), str(r, "dst")
		if src == dst {
			continue
		}
		g.out[src] = append(g.out[src], dst)
		g.in[dst] = append(g.in[dst], src)
	}
	for _, m := range []map[string][]string{g.out, g.in} {
		for k := range m {
			sort.Strings(m[k])
		}
	}
	return g, nil
}

func (g *importGraph) fanOut(f string) int { return len(g.out[f]) }
func (g *importGraph) fanIn(f string) int  { return len(g.in[f]) }

// components returns the strongly connected components of the graph
// (Tarjan), each sorted, in order of their first file.
func (g *importGraph) components() [][]string {
	index := map[string]int{}
	low := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	var comps [][]string
	next := 0

	var strong func(v string)
	strong = func(v string) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range g.out[v] {
			if _, seen := index[w]; !seen {
				strong(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}
		if low[v] == index[v] {
			var comp []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			sort.Strings(comp)
			comps = append(comps, comp)
		}
	}
	for _, f := range g.nodes() {
		if _, seen := index[f]; !seen {
			strong(f)
		}
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })
	return comps
}

// nodes is every file plus any edge endpoint, sorted.
func (g *importGraph) nodes() []string {
	set := map[string]bool{}
	for _, f := range g.files {
		set[f] = true
	}
	for f, targets := range g.out {
		set[f] = true
		for _, t := range targets {
			set[t] = true
		}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// chains returns, per file, the length in edges of the longest import chain
// starting there and the chain itself. Cycles are collapsed first, so a
// chain never revisits a file and each cycle counts as one step.
func (g *importGraph) chains() (map[string]int, map[string][]string) {
	comps := g.components()
	compOf := map[string]int{}
	for i, c := range comps {
		for _, f := range c {
			compOf[f] = i
		}
	}
	succ := make([]map[int]bool, len(comps))
	for i := range succ {
		succ[i] = map[int]bool{}
	}
	for src, targets := range g.out {
		for _, dst := range targets {
			if a, b := compOf[src], compOf[dst]; a != b {
				succ[a][b] = true
			}
		}
	}

	depth := make([]int, len(comps))
	nextComp := make([]int, len(comps))
	done := make([]bool, len(comps))
	var visit func(c int)
	visit = func(c int) {
		if done[c] {
			return
		}
		done[c] = true
		nextComp[c] = -1
		keys := make([]int, 0, len(succ[c]))
		for s := range succ[c] {
			keys = append(keys, s)
		}
		sort.Ints(keys)
		for _, s := range keys {
			visit(s)
			if depth[s]+1 > depth[c] {
				depth[c] = depth[s] + 1
				nextComp[c] = s
			}
		}
	}

	lengths := map[string]int{}
	paths := map[string][]string{}
	for i, c := range comps {
		visit(i)
		for _, f := range c {
			lengths[f] = depth[i]
		}
	}
	for i, c := range comps {
		if depth[i] == 0 {
			continue
		}
		path := []string{c[0]}
		for cur := nextComp[i]; cur >= 0; cur = nextComp[cur] {
			path = append(path, comps[cur][0])
		}
		for _, f := range c {
			p := append([]string{f}, path[1:]...)
			paths[f] = p
		}
	}
	return lengths, paths
}

func ratio(value, threshold float64) float64 {
	if threshold <= 0 {
		return math.Inf(1)
	}
	return value / threshold
}
