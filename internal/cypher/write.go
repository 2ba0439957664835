package cypher

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/DeusData/smellgraph/internal/store"
)

// WriteStats summarizes the effect of a write batch.
type WriteStats struct {
	NodesMerged    int            `json:"nodes_merged"`
	EdgesMerged    int            `json:"edges_merged"`
	NodesCreated   int            `json:"nodes_created"`
	EdgesCreated   int            `json:"edges_created"`
	ByLabel        map[string]int `json:"by_label"`         // node merges per label
	ByType         map[string]int `json:"by_type"`          // edge merges per relationship type
	CreatedByLabel map[string]int `json:"created_by_label"` // new nodes per label
}

func newWriteStats() WriteStats {
	return WriteStats{ByLabel: map[string]int{}, ByType: map[string]int{}, CreatedByLabel: map[string]int{}}
}

// Add accumulates other into s.
func (s *WriteStats) Add(other WriteStats) {
	if s.ByLabel == nil {
		s.ByLabel = map[string]int{}
	}
	if s.ByType == nil {
		s.ByType = map[string]int{}
	}
	if s.CreatedByLabel == nil {
		s.CreatedByLabel = map[string]int{}
	}
	s.NodesMerged += other.NodesMerged
	s.EdgesMerged += other.EdgesMerged
	s.NodesCreated += other.NodesCreated
	s.EdgesCreated += other.EdgesCreated
	for k, v := range other.CreatedByLabel {
		s.CreatedByLabel[k] += v
	}
	for k, v := range other.ByLabel {
		s.ByLabel[k] += v
	}
	for k, v := range other.ByType {
		s.ByType[k] += v
	}
}

// symbolLabels are keyed by (file_path, name, start_line).
var symbolLabels = map[string]bool{
	"Function":  true,
	"Class":     true,
	"Method":    true,
	"Variable":  true,
	"Interface": true,
}

// IsSymbolLabel reports whether label is one of the symbol node labels.
func IsSymbolLabel(label string) bool {
	return symbolLabels[label]
}

// Write executes a batch of MERGE/SET statements in one transaction. Either
// every statement is applied or none is; the returned stats are zero on error.
func (e *Executor) Write(ctx context.Context, statements []string) (WriteStats, error) {
	if e.Project == "" {
		return WriteStats{}, errors.New("write requires a project")
	}
	queries := make([]*Query, len(statements))
	for i, stmt := range statements {
		q, err := Parse(stmt)
		if err != nil {
			return WriteStats{}, fmt.Errorf("statement %d: parse: %w", i, err)
		}
		if !q.IsWrite() {
			return WriteStats{}, fmt.Errorf("statement %d: no MERGE or SET clause", i)
		}
		if err := bindParams(q, nil); err != nil {
			return WriteStats{}, fmt.Errorf("statement %d: %w", i, err)
		}
		queries[i] = q
	}

	stats := newWriteStats()
	err := e.Store.WithTransaction(ctx, func(tx *store.Store) error {
		txe := &Executor{Store: tx, Project: e.Project}
		for i, q := range queries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := txe.execWrite(ctx, q, &stats); err != nil {
				return fmt.Errorf("statement %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return WriteStats{}, err
	}
	return stats, nil
}

func (e *Executor) execWrite(ctx context.Context, q *Query, stats *WriteStats) error {
	plan, err := BuildPlan(q)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	bindings := []binding{newBinding()}
	if len(plan.Steps) > 0 {
		bindings, err = e.executeSteps(ctx, e.Project, plan.Steps, nil)
		if err != nil {
			return err
		}
	}

	for _, b := range bindings {
		w := &rowWriter{exec: e, b: b, dirty: map[string]bool{}, stats: stats}
		for _, u := range plan.Updates {
			switch c := u.(type) {
			case *MergeClause:
				err = w.merge(c.Pattern)
			case *SetClause:
				err = w.set(c.Items)
			default:
				err = fmt.Errorf("unknown update clause: %T", u)
			}
			if err != nil {
				return err
			}
		}
		if err := w.flush(); err != nil {
			return err
		}
	}
	return nil
}

// rowWriter applies update clauses to one binding. Node writes are deferred
// until a relationship needs the id or the row is done, so MERGE followed by
// SET costs one upsert.
type rowWriter struct {
	exec  *Executor
	b     binding
	dirty map[string]bool
	stats *WriteStats
	anon  int
}

func (w *rowWriter) merge(pat *Pattern) error {
	if len(pat.Elements) == 1 {
		return w.mergeNode(pat.Elements[0].(*NodePattern))
	}
	return w.mergeEdge(pat.Elements[0].(*NodePattern), pat.Elements[1].(*RelPattern), pat.Elements[2].(*NodePattern))
}

func (w *rowWriter) mergeNode(np *NodePattern) error {
	variable := np.Variable
	if variable == "" {
		w.anon++
		variable = fmt.Sprintf("_merge%d", w.anon)
	}
	if _, ok := w.b.nodes[variable]; ok {
		return fmt.Errorf("variable %q already bound", variable)
	}

	label := np.Labels[0]
	qn, err := identityKey(label, np.Props)
	if err != nil {
		return err
	}

	existing, err := w.exec.Store.FindNodeByQN(w.exec.Project, qn)
	if err != nil {
		return fmt.Errorf("merge %s: %w", label, err)
	}
	n := existing
	if n == nil {
		n = &store.Node{Project: w.exec.Project, QualifiedName: qn, Properties: map[string]any{}}
	} else if n.Properties == nil {
		n.Properties = map[string]any{}
	}
	n.Label = label

	// Apply keys in a stable order so name/path defaults are deterministic.
	keys := make([]string, 0, len(np.Props))
	for k := range np.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := applyProperty(n, k, np.Props[k]); err != nil {
			return err
		}
	}
	if label == "File" && n.Name == "" {
		n.Name = path.Base(n.FilePath)
	}

	w.b.nodes[variable] = n
	w.dirty[variable] = true
	w.stats.NodesMerged++
	w.stats.ByLabel[label]++
	if existing == nil {
		w.stats.NodesCreated++
		w.stats.CreatedByLabel[label]++
	}
	return nil
}

func (w *rowWriter) mergeEdge(from *NodePattern, rel *RelPattern, to *NodePattern) error {
	src, ok := w.b.nodes[from.Variable]
	if !ok {
		return fmt.Errorf("MERGE relationship endpoint %q is not bound", from.Variable)
	}
	dst, ok := w.b.nodes[to.Variable]
	if !ok {
		return fmt.Errorf("MERGE relationship endpoint %q is not bound", to.Variable)
	}
	for _, v := range []string{from.Variable, to.Variable} {
		if err := w.flushVar(v); err != nil {
			return err
		}
	}
	if rel.Direction == "inbound" {
		src, dst = dst, src
	}

	edge := &store.Edge{
		Project:    w.exec.Project,
		SourceID:   src.ID,
		TargetID:   dst.ID,
		Type:       rel.Types[0],
		Properties: rel.Props,
	}
	created, err := w.exec.Store.MergeEdge(edge)
	if err != nil {
		return fmt.Errorf("merge %s: %w", edge.Type, err)
	}
	if rel.Variable != "" {
		w.b.edges[rel.Variable] = edge
	}
	w.stats.EdgesMerged++
	w.stats.ByType[edge.Type]++
	if created {
		w.stats.EdgesCreated++
	}
	return nil
}

func (w *rowWriter) set(items []SetItem) error {
	for _, item := range items {
		n, ok := w.b.nodes[item.Variable]
		if !ok {
			if _, isEdge := w.b.edges[item.Variable]; isEdge {
				return fmt.Errorf("SET on relationship %q is not supported", item.Variable)
			}
			return fmt.Errorf("SET on unbound variable %q", item.Variable)
		}
		switch item.Property {
		case "qualified_name", "path", "file_path", "start_line":
			if !valuesEqual(getNodeProperty(n, item.Property), item.Value) {
				return fmt.Errorf("cannot SET identity property %q", item.Property)
			}
			continue
		}
		if err := applyProperty(n, item.Property, item.Value); err != nil {
			return err
		}
		w.dirty[item.Variable] = true
	}
	return nil
}

func (w *rowWriter) flushVar(variable string) error {
	if !w.dirty[variable] {
		return nil
	}
	if _, err := w.exec.Store.UpsertNode(w.b.nodes[variable]); err != nil {
		return err
	}
	delete(w.dirty, variable)
	return nil
}

func (w *rowWriter) flush() error {
	vars := make([]string, 0, len(w.dirty))
	for v := range w.dirty {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	for _, v := range vars {
		if err := w.flushVar(v); err != nil {
			return err
		}
	}
	return nil
}

// identityKey derives the qualified name of a MERGE node from its key
// properties: path for File, (file_path, name, start_line) for symbols and
// qualified_name for anything else.
func identityKey(label string, props map[string]any) (string, error) {
	switch {
	case label == "File":
		p := stringProp(props, "path")
		if p == "" {
			return "", fmt.Errorf("MERGE File requires a path")
		}
		return store.FileKey(p), nil
	case symbolLabels[label]:
		file, name := stringProp(props, "file_path"), stringProp(props, "name")
		line, ok := toInt(props["start_line"])
		if file == "" || name == "" || !ok {
			return "", fmt.Errorf("MERGE %s requires file_path, name and start_line", label)
		}
		return store.SymbolKey(file, name, line), nil
	default:
		qn := stringProp(props, "qualified_name")
		if qn == "" {
			return "", fmt.Errorf("MERGE %s requires a qualified_name", label)
		}
		return qn, nil
	}
}

// applyProperty writes one property onto a node, mapping column-backed
// properties onto their columns.
func applyProperty(n *store.Node, key string, val any) error {
	switch key {
	case "id", "label", "project":
		return fmt.Errorf("property %q is read-only", key)
	case "qualified_name":
		return nil
	case "name":
		n.Name = fmt.Sprint(val)
	case "path", "file_path":
		n.FilePath = fmt.Sprint(val)
	case "start_line", "end_line":
		line, ok := toInt(val)
		if !ok {
			return fmt.Errorf("property %q must be an integer, got %v", key, val)
		}
		if key == "start_line" {
			n.StartLine = line
		} else {
			n.EndLine = line
		}
	default:
		n.Properties[key] = val
	}
	return nil
}

// bindParams replaces every $param in the query with its value.
func bindParams(q *Query, params map[string]any) error {
	resolve := func(v any) (any, error) {
		p, ok := v.(Param)
		if !ok {
			return v, nil
		}
		val, ok := params[p.Name]
		if !ok {
			return nil, fmt.Errorf("missing parameter $%s", p.Name)
		}
		return normalizeParam(val), nil
	}
	bindProps := func(props map[string]any) error {
		for k, v := range props {
			r, err := resolve(v)
			if err != nil {
				return err
			}
			props[k] = r
		}
		return nil
	}
	bindPattern := func(pat *Pattern) error {
		for _, el := range pat.Elements {
			var err error
			switch x := el.(type) {
			case *NodePattern:
				err = bindProps(x.Props)
			case *RelPattern:
				err = bindProps(x.Props)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}

	if q.Match != nil {
		for _, pat := range q.Match.Patterns {
			if err := bindPattern(pat); err != nil {
				return err
			}
		}
	}
	if q.Where != nil {
		for i := range q.Where.Conditions {
			c := &q.Where.Conditions[i]
			if c.Pattern != nil {
				if err := bindPattern(c.Pattern); err != nil {
					return err
				}
				continue
			}
			r, err := resolve(c.Value)
			if err != nil {
				return err
			}
			c.Value = r
		}
	}
	for _, u := range q.Updates {
		switch c := u.(type) {
		case *MergeClause:
			if err := bindPattern(c.Pattern); err != nil {
				return err
			}
		case *SetClause:
			for i := range c.Items {
				r, err := resolve(c.Items[i].Value)
				if err != nil {
					return err
				}
				c.Items[i].Value = r
			}
		}
	}
	return nil
}

// normalizeParam widens Go numeric types to the literal types the parser
// produces.
func normalizeParam(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
