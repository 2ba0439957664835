package cypher

import "fmt"

// Plan represents an execution plan for a parsed Cypher query.
type Plan struct {
	Steps      []PlanStep
	Updates    []UpdateClause
	ReturnSpec *ReturnClause
}

// PlanStep is a single step in the execution plan.
type PlanStep interface {
	stepType() string
}

// ScanNodes finds nodes matching labels and/or inline property filters.
// Join cross-products the scan with the bindings produced so far (second and
// later patterns). Bound means the variable is already bound and the step
// only filters existing bindings.
type ScanNodes struct {
	Variable string
	Labels   []string
	Props    map[string]any // inline property filters
	Join     bool
	Bound    bool
}

func (*ScanNodes) stepType() string { return "scan" }

// ExpandRelationship follows edges from bound nodes to match target nodes.
type ExpandRelationship struct {
	FromVar   string   // source variable (already bound)
	ToVar     string   // target variable (to bind, or to check when ToBound)
	RelVar    string   // optional relationship variable (to bind edge)
	ToLabels  []string // optional label filter on target
	ToProps   map[string]any
	ToBound   bool     // target variable was bound earlier; only matching ids pass
	EdgeTypes []string // required edge types
	Direction string   // "outbound", "inbound", "any"
	MinHops   int
	MaxHops   int
}

func (*ExpandRelationship) stepType() string { return "expand" }

// FilterWhere applies WHERE conditions to the bindings.
type FilterWhere struct {
	Conditions []Condition
	Operator   string // "AND" or "OR"
}

func (*FilterWhere) stepType() string { return "filter" }

// BuildPlan converts a parsed Query AST into an execution Plan.
func BuildPlan(q *Query) (*Plan, error) {
	plan := &Plan{ReturnSpec: q.Return, Updates: q.Updates}
	if q.Match == nil {
		return plan, nil
	}

	bound := make(map[string]bool)
	var earlyFilters, lateFilters []Condition
	if q.Where != nil {
		earlyFilters, lateFilters = splitWhere(q)
	}

	for pi, pat := range q.Match.Patterns {
		steps, err := planPattern(pat, bound, pi > 0)
		if err != nil {
			return nil, err
		}
		if pi == 0 && len(earlyFilters) > 0 {
			// Insert early filter right after the first scan.
			plan.Steps = append(plan.Steps, steps[0], &FilterWhere{Conditions: earlyFilters, Operator: "AND"})
			plan.Steps = append(plan.Steps, steps[1:]...)
			continue
		}
		plan.Steps = append(plan.Steps, steps...)
	}

	if len(lateFilters) > 0 {
		plan.Steps = append(plan.Steps, &FilterWhere{
			Conditions: lateFilters,
			Operator:   q.Where.Operator,
		})
	}

	return plan, nil
}

// splitWhere pushes AND conditions that reference only the first scan
// variable before any expand or join step, which keeps the number of
// bindings that need to be expanded small. Pattern predicates always run
// last.
func splitWhere(q *Query) (early, late []Condition) {
	first := q.Match.Patterns[0].Elements[0].(*NodePattern)
	hasMore := len(q.Match.Patterns) > 1 || len(q.Match.Patterns[0].Elements) > 1
	if !hasMore || q.Where.Operator != "AND" || first.Variable == "" {
		return nil, q.Where.Conditions
	}
	for _, c := range q.Where.Conditions {
		if c.Pattern == nil && c.Variable == first.Variable {
			early = append(early, c)
		} else {
			late = append(late, c)
		}
	}
	return early, late
}

// planPattern turns one pattern into a scan followed by expand steps,
// marking every variable it binds.
func planPattern(pat *Pattern, bound map[string]bool, join bool) ([]PlanStep, error) {
	if len(pat.Elements) == 0 {
		return nil, fmt.Errorf("empty pattern")
	}
	var steps []PlanStep

	first := pat.Elements[0].(*NodePattern)
	steps = append(steps, &ScanNodes{
		Variable: first.Variable,
		Labels:   first.Labels,
		Props:    first.Props,
		Join:     join,
		Bound:    first.Variable != "" && bound[first.Variable],
	})

	prevVar := first.Variable
	if prevVar == "" {
		// Anonymous start nodes still need a handle for the expand step.
		prevVar = fmt.Sprintf("_anon%d", len(bound))
		steps[0].(*ScanNodes).Variable = prevVar
	}
	bound[prevVar] = true

	for i := 1; i+1 < len(pat.Elements); i += 2 {
		rel := pat.Elements[i].(*RelPattern)
		target := pat.Elements[i+1].(*NodePattern)

		toVar := target.Variable
		toBound := toVar != "" && bound[toVar]
		if toVar == "" && i+2 < len(pat.Elements) {
			toVar = fmt.Sprintf("_anon%d", len(bound))
		}

		steps = append(steps, &ExpandRelationship{
			FromVar:   prevVar,
			ToVar:     toVar,
			RelVar:    rel.Variable,
			ToLabels:  target.Labels,
			ToProps:   target.Props,
			ToBound:   toBound,
			EdgeTypes: rel.Types,
			Direction: rel.Direction,
			MinHops:   rel.MinHops,
			MaxHops:   rel.MaxHops,
		})
		if toVar != "" {
			bound[toVar] = true
		}
		if rel.Variable != "" {
			bound[rel.Variable] = true
		}
		prevVar = toVar
	}

	return steps, nil
}
