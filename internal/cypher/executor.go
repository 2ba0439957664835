package cypher

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/DeusData/smellgraph/internal/store"
)

// DefaultMaxRows is the row cap used by interactive callers.
const DefaultMaxRows = 200

// unboundedBFS caps variable-length expansion when no row cap is set.
const unboundedBFS = 100000

// ErrWriteInRead is returned when Read is given a query with MERGE or SET.
var ErrWriteInRead = errors.New("read query must not contain MERGE or SET")

// Executor runs Cypher execution plans against a store.
type Executor struct {
	Store *store.Store
	// Project scopes reads and writes. Reads with an empty Project run
	// across all projects; writes require it.
	Project string
	// MaxRows caps returned rows. Zero means unlimited.
	MaxRows int
}

// Result holds the tabular output of a query.
type Result struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// binding maps variable names to matched nodes and edges.
type binding struct {
	nodes map[string]*store.Node
	edges map[string]*store.Edge
}

func newBinding() binding {
	return binding{
		nodes: make(map[string]*store.Node),
		edges: make(map[string]*store.Edge),
	}
}

// adjacentResult pairs a matched node with the edge that reached it.
type adjacentResult struct {
	Node *store.Node
	Edge *store.Edge
}

// Execute parses, plans, and executes a read query without parameters.
func (e *Executor) Execute(query string) (*Result, error) {
	return e.Read(context.Background(), query, nil)
}

// Read executes a read-only query. $name placeholders are bound from params;
// a placeholder without a value is an error.
func (e *Executor) Read(ctx context.Context, query string, params map[string]any) (*Result, error) {
	q, err := Parse(query)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if q.IsWrite() {
		return nil, ErrWriteInRead
	}
	if err := bindParams(q, params); err != nil {
		return nil, err
	}
	plan, err := BuildPlan(q)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	return e.executePlan(ctx, plan)
}

func (e *Executor) executePlan(ctx context.Context, plan *Plan) (*Result, error) {
	projects, err := e.projects()
	if err != nil {
		return nil, err
	}

	var allBindings []binding
	for _, proj := range projects {
		bindings, err := e.executeSteps(ctx, proj, plan.Steps, nil)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", proj, err)
		}
		allBindings = append(allBindings, bindings...)
		if limit := e.bindingCap(); limit > 0 && len(allBindings) > limit {
			allBindings = allBindings[:limit]
			break
		}
	}

	return e.projectResults(allBindings, plan.ReturnSpec)
}

func (e *Executor) projects() ([]string, error) {
	if e.Project != "" {
		return []string{e.Project}, nil
	}
	list, err := e.Store.ListProjects()
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	names := make([]string, len(list))
	for i, p := range list {
		names[i] = p.Name
	}
	return names, nil
}

// bindingCap bounds intermediate bindings when a row cap is configured.
func (e *Executor) bindingCap() int {
	if e.MaxRows <= 0 {
		return 0
	}
	return e.MaxRows * 2
}

// executeSteps runs plan steps starting from seed bindings (nil for a fresh
// match).
func (e *Executor) executeSteps(ctx context.Context, project string, steps []PlanStep, seed []binding) ([]binding, error) {
	bindings := seed

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		switch s := step.(type) {
		case *ScanNodes:
			bindings, err = e.execScan(project, s, bindings)
		case *ExpandRelationship:
			bindings, err = e.execExpand(ctx, s, bindings)
		case *FilterWhere:
			bindings, err = e.execFilter(ctx, project, s, bindings)
		default:
			return nil, fmt.Errorf("unknown step type: %T", step)
		}
		if err != nil {
			return nil, err
		}
		// Only cap after the last step or after expand (which can explode).
		// Never cap between scan and filter: the filter needs all candidates.
		isLastStep := i == len(steps)-1
		_, isExpand := step.(*ExpandRelationship)
		if limit := e.bindingCap(); limit > 0 && (isLastStep || isExpand) && len(bindings) > limit {
			bindings = bindings[:limit]
		}
	}

	return bindings, nil
}

func (e *Executor) execScan(project string, s *ScanNodes, bindings []binding) ([]binding, error) {
	if s.Bound {
		var result []binding
		for _, b := range bindings {
			n, ok := b.nodes[s.Variable]
			if ok && nodeMatches(n, s.Labels, s.Props) {
				result = append(result, b)
			}
		}
		return result, nil
	}

	nodes, err := e.scanCandidates(project, s.Labels, s.Props)
	if err != nil {
		return nil, fmt.Errorf("scan nodes: %w", err)
	}

	if !s.Join {
		result := make([]binding, 0, len(nodes))
		for _, n := range nodes {
			b := newBinding()
			b.nodes[s.Variable] = n
			result = append(result, b)
		}
		return result, nil
	}

	var result []binding
	for _, b := range bindings {
		for _, n := range nodes {
			nb := copyBinding(b)
			nb.nodes[s.Variable] = n
			result = append(result, nb)
		}
	}
	return result, nil
}

// scanCandidates picks the narrowest store lookup the inline properties
// allow, then applies the full label and property filter.
func (e *Executor) scanCandidates(project string, labels []string, props map[string]any) ([]*store.Node, error) {
	var nodes []*store.Node
	var err error

	qn, byKey := identityLookup(labels, props)
	switch {
	case byKey:
		var n *store.Node
		n, err = e.Store.FindNodeByQN(project, qn)
		if n != nil {
			nodes = []*store.Node{n}
		}
	case stringProp(props, "file_path") != "":
		nodes, err = e.Store.FindNodesByFile(project, stringProp(props, "file_path"))
	case stringProp(props, "path") != "":
		nodes, err = e.Store.FindNodesByFile(project, stringProp(props, "path"))
	case stringProp(props, "name") != "":
		nodes, err = e.Store.FindNodesByName(project, stringProp(props, "name"))
	case len(labels) > 0:
		for _, label := range labels {
			var found []*store.Node
			found, err = e.Store.FindNodesByLabel(project, label)
			if err != nil {
				break
			}
			nodes = append(nodes, found...)
		}
	default:
		nodes, err = e.Store.AllNodes(project)
	}
	if err != nil {
		return nil, err
	}

	filtered := nodes[:0]
	for _, n := range nodes {
		if nodeMatches(n, labels, props) {
			filtered = append(filtered, n)
		}
	}
	return filtered, nil
}

// identityLookup returns the qualified name a pattern pins down, if any.
func identityLookup(labels []string, props map[string]any) (string, bool) {
	if qn := stringProp(props, "qualified_name"); qn != "" {
		return qn, true
	}
	if len(labels) != 1 {
		return "", false
	}
	if labels[0] == "File" {
		if p := stringProp(props, "path"); p != "" {
			return store.FileKey(p), true
		}
		return "", false
	}
	file, name := stringProp(props, "file_path"), stringProp(props, "name")
	line, ok := toInt(props["start_line"])
	if file == "" || name == "" || !ok {
		return "", false
	}
	return store.SymbolKey(file, name, line), true
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func (e *Executor) execExpand(ctx context.Context, s *ExpandRelationship, bindings []binding) ([]binding, error) {
	if len(bindings) == 0 {
		return nil, nil
	}

	isVariableLength := s.MinHops != 1 || s.MaxHops != 1

	var result []binding
	for _, b := range bindings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fromNode, ok := b.nodes[s.FromVar]
		if !ok {
			continue
		}

		var expanded []binding
		var err error
		if isVariableLength {
			expanded, err = e.expandVariableLength(ctx, b, fromNode, s)
		} else {
			expanded, err = e.expandFixedLength(b, fromNode, s)
		}
		if err != nil {
			return nil, err
		}
		result = append(result, expanded...)

		if limit := e.bindingCap(); limit > 0 && len(result) > limit {
			result = result[:limit]
			break
		}
	}
	return result, nil
}

// acceptTarget applies the target label, property and bound-variable checks.
func acceptTarget(b binding, n *store.Node, s *ExpandRelationship) bool {
	if !nodeMatches(n, s.ToLabels, s.ToProps) {
		return false
	}
	if s.ToBound {
		bound, ok := b.nodes[s.ToVar]
		return ok && bound.ID == n.ID
	}
	return true
}

func (e *Executor) expandFixedLength(b binding, fromNode *store.Node, s *ExpandRelationship) ([]binding, error) {
	adjacents, err := e.findAdjacentNodes(fromNode.ID, s.EdgeTypes, s.Direction)
	if err != nil {
		return nil, err
	}

	var result []binding
	for _, adj := range adjacents {
		if !acceptTarget(b, adj.Node, s) {
			continue
		}
		newB := copyBinding(b)
		if s.ToVar != "" {
			newB.nodes[s.ToVar] = adj.Node
		}
		if s.RelVar != "" && adj.Edge != nil {
			newB.edges[s.RelVar] = adj.Edge
		}
		result = append(result, newB)
	}
	return result, nil
}

func (e *Executor) expandVariableLength(ctx context.Context, b binding, fromNode *store.Node, s *ExpandRelationship) ([]binding, error) {
	maxDepth := s.MaxHops
	if maxDepth == 0 {
		maxDepth = 10 // cap unbounded at 10
	}

	direction, err := store.ParseDirection(s.Direction)
	if err != nil {
		return nil, err
	}

	edgeTypes := s.EdgeTypes
	if len(edgeTypes) == 0 {
		edgeTypes = []string{"CALLS"} // default
	}

	maxResults := e.MaxRows
	if maxResults <= 0 {
		maxResults = unboundedBFS
	}
	hops, err := e.Store.Reach(ctx, fromNode.ID, direction, edgeTypes, maxDepth, maxResults)
	if err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}

	var result []binding
	for _, nh := range hops {
		if nh.Depth < s.MinHops {
			continue
		}
		if s.MaxHops > 0 && nh.Depth > s.MaxHops {
			continue
		}
		if !acceptTarget(b, nh.Node, s) {
			continue
		}
		newB := copyBinding(b)
		if s.ToVar != "" {
			newB.nodes[s.ToVar] = nh.Node
		}
		// Note: variable-length BFS doesn't bind individual edges
		result = append(result, newB)
	}
	return result, nil
}

func (e *Executor) findAdjacentNodes(nodeID int64, edgeTypes []string, direction string) ([]adjacentResult, error) {
	var allEdges []*store.Edge

	switch direction {
	case "inbound":
		if len(edgeTypes) > 0 {
			for _, et := range edgeTypes {
				edges, err := e.Store.FindEdgesByTargetAndType(nodeID, et)
				if err != nil {
					return nil, err
				}
				allEdges = append(allEdges, edges...)
			}
		} else {
			edges, err := e.Store.FindEdgesByTarget(nodeID)
			if err != nil {
				return nil, err
			}
			allEdges = edges
		}
	case "any":
		outEdges, err := e.Store.FindEdgesBySource(nodeID)
		if err != nil {
			return nil, err
		}
		inEdges, err := e.Store.FindEdgesByTarget(nodeID)
		if err != nil {
			return nil, err
		}
		typeSet := make(map[string]bool, len(edgeTypes))
		for _, et := range edgeTypes {
			typeSet[et] = true
		}
		for _, edge := range append(outEdges, inEdges...) {
			if len(typeSet) == 0 || typeSet[edge.Type] {
				allEdges = append(allEdges, edge)
			}
		}
	default: // outbound
		if len(edgeTypes) > 0 {
			for _, et := range edgeTypes {
				edges, err := e.Store.FindEdgesBySourceAndType(nodeID, et)
				if err != nil {
					return nil, err
				}
				allEdges = append(allEdges, edges...)
			}
		} else {
			edges, err := e.Store.FindEdgesBySource(nodeID)
			if err != nil {
				return nil, err
			}
			allEdges = edges
		}
	}

	// Resolve edge targets/sources to nodes, preserving the edge
	seen := make(map[int64]bool)
	var results []adjacentResult
	for _, edge := range allEdges {
		var targetID int64
		switch direction {
		case "inbound":
			targetID = edge.SourceID
		case "any":
			if edge.SourceID == nodeID {
				targetID = edge.TargetID
			} else {
				targetID = edge.SourceID
			}
		default:
			targetID = edge.TargetID
		}
		if seen[targetID] {
			continue
		}
		seen[targetID] = true

		node, err := e.Store.FindNodeByID(targetID)
		if err != nil {
			return nil, err
		}
		if node == nil {
			continue
		}
		results = append(results, adjacentResult{Node: node, Edge: edge})
	}
	return results, nil
}

func (e *Executor) execFilter(ctx context.Context, project string, s *FilterWhere, bindings []binding) ([]binding, error) {
	var result []binding
	for _, b := range bindings {
		match, err := e.evaluateConditions(ctx, project, b, s.Conditions, s.Operator)
		if err != nil {
			return nil, err
		}
		if match {
			result = append(result, b)
		}
	}
	return result, nil
}

func (e *Executor) evaluateConditions(ctx context.Context, project string, b binding, conditions []Condition, op string) (bool, error) {
	if op == "OR" {
		for _, c := range conditions {
			ok, err := e.evaluateCondition(ctx, project, b, c)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	// AND (default)
	for _, c := range conditions {
		ok, err := e.evaluateCondition(ctx, project, b, c)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *Executor) evaluateCondition(ctx context.Context, project string, b binding, c Condition) (bool, error) {
	var ok bool
	var err error
	if c.Pattern != nil {
		ok, err = e.patternExists(ctx, project, b, c.Pattern)
	} else {
		ok, err = compareCondition(b, c)
	}
	if err != nil {
		return false, err
	}
	return ok != c.Negated, nil
}

// patternExists reports whether the pattern matches at least once when
// seeded with the current binding.
func (e *Executor) patternExists(ctx context.Context, project string, b binding, pat *Pattern) (bool, error) {
	bound := make(map[string]bool, len(b.nodes)+len(b.edges))
	for k := range b.nodes {
		bound[k] = true
	}
	for k := range b.edges {
		bound[k] = true
	}
	steps, err := planPattern(pat, bound, true)
	if err != nil {
		return false, err
	}
	matched, err := e.executeSteps(ctx, project, steps, []binding{b})
	if err != nil {
		return false, err
	}
	return len(matched) > 0, nil
}

func compareCondition(b binding, c Condition) (bool, error) {
	// Try node first, then edge
	var actual any
	if node, ok := b.nodes[c.Variable]; ok {
		actual = getNodeProperty(node, c.Property)
	} else if edge, ok := b.edges[c.Variable]; ok {
		actual = getEdgeProperty(edge, c.Property)
	} else {
		return false, nil
	}

	switch c.Operator {
	case "=":
		return actual != nil && valuesEqual(actual, c.Value), nil
	case "<>":
		return actual != nil && !valuesEqual(actual, c.Value), nil
	case "=~":
		s, ok := actual.(string)
		if !ok {
			return false, nil
		}
		pattern := fmt.Sprint(c.Value)
		matched, err := regexp.MatchString(pattern, s)
		if err != nil {
			return false, fmt.Errorf("regex %q: %w", pattern, err)
		}
		return matched, nil
	case "CONTAINS":
		s, ok := actual.(string)
		if !ok {
			return false, nil
		}
		return strings.Contains(s, fmt.Sprint(c.Value)), nil
	case "STARTS WITH":
		s, ok := actual.(string)
		if !ok {
			return false, nil
		}
		return strings.HasPrefix(s, fmt.Sprint(c.Value)), nil
	case ">", "<", ">=", "<=":
		return compareNumeric(actual, c.Value, c.Operator)
	default:
		return false, fmt.Errorf("unsupported operator: %s", c.Operator)
	}
}

func compareNumeric(actual, expected any, op string) (bool, error) {
	expectedNum, ok := toFloat(expected)
	if !ok {
		return false, nil
	}
	actualNum, ok := toFloat(actual)
	if !ok {
		s, isString := actual.(string)
		if !isString {
			return false, nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return false, nil
		}
		actualNum = n
	}

	switch op {
	case ">":
		return actualNum > expectedNum, nil
	case "<":
		return actualNum < expectedNum, nil
	case ">=":
		return actualNum >= expectedNum, nil
	case "<=":
		return actualNum <= expectedNum, nil
	default:
		return false, nil
	}
}

// valuesEqual compares numerically when both sides are numbers and by
// string form otherwise.
func valuesEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func getNodeProperty(n *store.Node, prop string) any {
	switch prop {
	case "name":
		return n.Name
	case "qualified_name":
		return n.QualifiedName
	case "label":
		return n.Label
	case "file_path", "path":
		return n.FilePath
	case "start_line":
		return n.StartLine
	case "end_line":
		return n.EndLine
	case "id":
		return n.ID
	case "project":
		return n.Project
	default:
		if n.Properties != nil {
			if v, ok := n.Properties[prop]; ok {
				return v
			}
		}
		return nil
	}
}

// getEdgeProperty returns a property value from an edge.
func getEdgeProperty(edge *store.Edge, prop string) any {
	switch prop {
	case "type":
		return edge.Type
	case "id":
		return edge.ID
	case "source_id":
		return edge.SourceID
	case "target_id":
		return edge.TargetID
	default:
		if edge.Properties != nil {
			if v, ok := edge.Properties[prop]; ok {
				return v
			}
		}
		return nil
	}
}

func (e *Executor) projectResults(bindings []binding, ret *ReturnClause) (*Result, error) {
	if ret == nil {
		return e.defaultProjection(bindings)
	}

	for _, item := range ret.Items {
		if item.Func == "COUNT" {
			return e.aggregateResults(bindings, ret)
		}
	}

	return e.simpleProjection(bindings, ret)
}

func (e *Executor) defaultProjection(bindings []binding) (*Result, error) {
	if len(bindings) == 0 {
		return &Result{Columns: []string{}, Rows: []map[string]any{}}, nil
	}

	// Collect all user-visible variable names from nodes and edges
	varSet := make(map[string]bool)
	edgeVarSet := make(map[string]bool)
	for _, b := range bindings {
		for k := range b.nodes {
			if !isInternalVar(k) {
				varSet[k] = true
			}
		}
		for k := range b.edges {
			edgeVarSet[k] = true
		}
	}
	var cols []string
	for k := range varSet {
		cols = append(cols, k+".name", k+".qualified_name", k+".label")
	}
	for k := range edgeVarSet {
		cols = append(cols, k+".type")
	}
	sort.Strings(cols)

	var rows []map[string]any
	for _, b := range bindings {
		row := make(map[string]any)
		for varName, node := range b.nodes {
			if isInternalVar(varName) {
				continue
			}
			row[varName+".name"] = node.Name
			row[varName+".qualified_name"] = node.QualifiedName
			row[varName+".label"] = node.Label
		}
		for varName, edge := range b.edges {
			row[varName+".type"] = edge.Type
		}
		rows = append(rows, row)
	}

	return &Result{Columns: cols, Rows: e.limitRows(rows, 0)}, nil
}

func isInternalVar(name string) bool {
	return strings.HasPrefix(name, "_")
}

// itemValue returns the value a RETURN item refers to in one binding.
func itemValue(b binding, item ReturnItem) any {
	if node, ok := b.nodes[item.Variable]; ok {
		if item.Property == "" {
			if item.Func != "" {
				return node.ID
			}
			return map[string]any{
				"id":             node.ID,
				"name":           node.Name,
				"qualified_name": node.QualifiedName,
				"label":          node.Label,
				"file_path":      node.FilePath,
				"start_line":     node.StartLine,
				"end_line":       node.EndLine,
			}
		}
		return getNodeProperty(node, item.Property)
	}
	if edge, ok := b.edges[item.Variable]; ok {
		if item.Property == "" {
			if item.Func != "" {
				return edge.ID
			}
			return map[string]any{
				"type":      edge.Type,
				"source_id": edge.SourceID,
				"target_id": edge.TargetID,
			}
		}
		return getEdgeProperty(edge, item.Property)
	}
	return nil
}

func (e *Executor) simpleProjection(bindings []binding, ret *ReturnClause) (*Result, error) {
	cols := make([]string, len(ret.Items))
	for i, item := range ret.Items {
		cols[i] = item.Column()
	}

	// ORDER BY may name a property that is not projected; sort on a hidden
	// key taken from the binding and drop it afterwards.
	orderCol := ""
	var hidden *ReturnItem
	if ret.OrderBy != "" {
		orderCol = orderColumn(ret)
		if !containsString(cols, orderCol) {
			if v, p, ok := strings.Cut(ret.OrderBy, "."); ok {
				hidden = &ReturnItem{Variable: v, Property: p}
				orderCol = "\x00order"
			}
		}
	}

	seen := make(map[string]bool)
	var rows []map[string]any
	for _, b := range bindings {
		row := make(map[string]any, len(cols)+1)
		for i, item := range ret.Items {
			row[cols[i]] = itemValue(b, item)
		}

		// DISTINCT check
		if ret.Distinct {
			key := fmt.Sprintf("%v", row)
			if seen[key] {
				continue
			}
			seen[key] = true
		}

		if hidden != nil {
			row[orderCol] = itemValue(b, *hidden)
		}
		rows = append(rows, row)
	}

	if orderCol != "" {
		sortRows(rows, orderCol, ret.OrderDir)
	}
	if hidden != nil {
		for _, row := range rows {
			delete(row, orderCol)
		}
	}

	return &Result{Columns: cols, Rows: e.limitRows(rows, ret.Limit)}, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (e *Executor) aggregateResults(bindings []binding, ret *ReturnClause) (*Result, error) {
	cols := make([]string, len(ret.Items))
	for i, item := range ret.Items {
		cols[i] = item.Column()
	}

	// Group by non-aggregate items; keep one counter (and distinct set) per
	// aggregate item.
	type groupEntry struct {
		row      map[string]any
		counts   []int
		distinct []map[string]bool
	}
	groups := make(map[string]*groupEntry)
	var order []string

	for _, b := range bindings {
		row := make(map[string]any)
		var keyParts []string
		for i, item := range ret.Items {
			if item.Func != "" {
				continue
			}
			val := itemValue(b, item)
			row[cols[i]] = val
			keyParts = append(keyParts, fmt.Sprintf("%v", val))
		}
		key := strings.Join(keyParts, "\x00")
		g, ok := groups[key]
		if !ok {
			g = &groupEntry{
				row:      row,
				counts:   make([]int, len(ret.Items)),
				distinct: make([]map[string]bool, len(ret.Items)),
			}
			groups[key] = g
			order = append(order, key)
		}
		for i, item := range ret.Items {
			if item.Func == "" {
				continue
			}
			val := itemValue(b, item)
			if val == nil {
				continue
			}
			if item.Distinct {
				if g.distinct[i] == nil {
					g.distinct[i] = make(map[string]bool)
				}
				k := fmt.Sprint(val)
				if g.distinct[i][k] {
					continue
				}
				g.distinct[i][k] = true
			}
			g.counts[i]++
		}
	}

	rows := make([]map[string]any, 0, len(order))
	for _, key := range order {
		g := groups[key]
		for i, item := range ret.Items {
			if item.Func != "" {
				g.row[cols[i]] = g.counts[i]
			}
		}
		rows = append(rows, g.row)
	}

	if ret.OrderBy != "" {
		sortRows(rows, orderColumn(ret), ret.OrderDir)
	}

	return &Result{Columns: cols, Rows: e.limitRows(rows, ret.Limit)}, nil
}

// orderColumn maps an ORDER BY reference (alias or var.prop) to its output column.
func orderColumn(ret *ReturnClause) string {
	for _, item := range ret.Items {
		if item.Alias == ret.OrderBy {
			return item.Column()
		}
		ref := item.Variable
		if item.Property != "" {
			ref += "." + item.Property
		}
		if item.Func == "" && ref == ret.OrderBy {
			return item.Column()
		}
	}
	return ret.OrderBy
}

// limitRows applies the query LIMIT and the executor row cap.
func (e *Executor) limitRows(rows []map[string]any, limit int) []map[string]any {
	if e.MaxRows > 0 && (limit <= 0 || limit > e.MaxRows) {
		limit = e.MaxRows
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows
}

// sortRows sorts rows by the given column.
func sortRows(rows []map[string]any, col string, dir string) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i][col], rows[j][col]
		cmp := compareValues(a, b)
		if dir == "DESC" {
			return cmp > 0
		}
		return cmp < 0
	})
}

func compareValues(a, b any) int {
	// Try numeric
	aNum, aOK := toFloat(a)
	bNum, bOK := toFloat(b)
	if aOK && bOK {
		if aNum < bNum {
			return -1
		}
		if aNum > bNum {
			return 1
		}
		return 0
	}
	// Fall back to string
	aStr := fmt.Sprintf("%v", a)
	bStr := fmt.Sprintf("%v", b)
	if aStr < bStr {
		return -1
	}
	if aStr > bStr {
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// copyBinding makes a shallow copy of a binding.
func copyBinding(b binding) binding {
	c := newBinding()
	for k, v := range b.nodes {
		c.nodes[k] = v
	}
	for k, v := range b.edges {
		c.edges[k] = v
	}
	return c
}

// nodeMatches checks the label alternation and inline property filters.
func nodeMatches(n *store.Node, labels []string, props map[string]any) bool {
	if len(labels) > 0 {
		found := false
		for _, l := range labels {
			if n.Label == l {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for key, val := range props {
		actual := getNodeProperty(n, key)
		if actual == nil || !valuesEqual(actual, val) {
			return false
		}
	}
	return true
}
