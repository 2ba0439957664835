package cypher

// Query represents a parsed Cypher query.
type Query struct {
	Match   *MatchClause
	Where   *WhereClause
	Updates []UpdateClause // MERGE and SET clauses in source order
	Return  *ReturnClause
}

// IsWrite reports whether the query contains MERGE or SET clauses.
func (q *Query) IsWrite() bool {
	return len(q.Updates) > 0
}

// MatchClause holds the patterns of every MATCH clause. Repeated MATCH
// clauses and comma-separated patterns are equivalent: all patterns must
// match and their bindings are joined.
type MatchClause struct {
	Patterns []*Pattern
}

// Pattern is a sequence of alternating nodes and relationships.
type Pattern struct {
	Elements []PatternElement
}

// PatternElement is either a NodePattern or a RelPattern.
type PatternElement interface {
	patternElement()
}

// Param is a $name placeholder bound at execution time.
type Param struct {
	Name string
}

// NodePattern matches a graph node with optional labels and inline properties.
// Property values are string, int64, float64, bool or Param.
type NodePattern struct {
	Variable string         // e.g. "f"
	Labels   []string       // e.g. ["Function", "Method"] (any of)
	Props    map[string]any // inline property filters (optional)
}

func (*NodePattern) patternElement() {}

// RelPattern matches a graph relationship with optional types, direction, and hops.
type RelPattern struct {
	Variable  string         // (optional)
	Types     []string       // relationship types, e.g. ["CALLS", "REFERENCES"]
	Direction string         // "outbound", "inbound", "any"
	MinHops   int            // for variable-length, default 1
	MaxHops   int            // for variable-length, default 1 (0 means unbounded)
	Props     map[string]any // edge properties, only used by MERGE
}

func (*RelPattern) patternElement() {}

// WhereClause holds filter conditions joined by AND/OR.
type WhereClause struct {
	Conditions []Condition
	Operator   string // "AND" or "OR"
}

// Condition is a property comparison or a pattern predicate.
type Condition struct {
	Variable string   // "f"
	Property string   // "name"
	Operator string   // "=", "<>", "=~", "CONTAINS", "STARTS WITH", ">", "<", ">=", "<="
	Value    any      // literal or Param
	Pattern  *Pattern // set for pattern predicates such as (f)<-[:CALLS]-()
	Negated  bool     // NOT prefix
}

// UpdateClause is a MERGE or SET clause.
type UpdateClause interface {
	updateClause()
}

// MergeClause upserts a single node pattern, or a relationship between two
// bound variables.
type MergeClause struct {
	Pattern *Pattern
}

func (*MergeClause) updateClause() {}

// SetClause assigns properties on bound nodes.
type SetClause struct {
	Items []SetItem
}

func (*SetClause) updateClause() {}

// SetItem is one `var.prop = value` assignment.
type SetItem struct {
	Variable string
	Property string
	Value    any
}

// ReturnClause specifies which data to return from the query.
type ReturnClause struct {
	Items    []ReturnItem
	OrderBy  string // "f.name" (optional)
	OrderDir string // "ASC" or "DESC"
	Limit    int    // 0 means no limit
	Distinct bool
}

// ReturnItem is a single item in the RETURN clause.
type ReturnItem struct {
	Variable string // "f"
	Property string // "name" (empty = return whole node)
	Alias    string // "AS call_count" (optional)
	Func     string // "COUNT" (optional aggregation)
	Distinct bool   // COUNT(DISTINCT ...)
}

// Column returns the output column name of the item.
func (r ReturnItem) Column() string {
	if r.Alias != "" {
		return r.Alias
	}
	inner := r.Variable
	if r.Property != "" {
		inner = r.Variable + "." + r.Property
	}
	if r.Func == "" {
		return inner
	}
	if r.Distinct {
		return r.Func + "(DISTINCT " + inner + ")"
	}
	return r.Func + "(" + inner + ")"
}
