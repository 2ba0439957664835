package detect

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// detector adapts a function to the Detector interface.
type detector struct {
	name        string
	description string
	detect      func(ctx context.Context, q Querier, th Thresholds) ([]Finding, error)
}

func (d *detector) Name() string        { return d.name }
func (d *detector) Description() string { return d.description }
func (d *detector) Detect(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	return d.detect(ctx, q, th)
}

// Builtin returns every built-in detector.
func Builtin() []Detector {
	return []Detector{
		&detector{"long_function", "Functions and methods with too many lines", detectLongFunctions},
		&detector{"long_parameter_list", "Functions and methods with too many parameters", detectLongParameterLists},
		&detector{"large_class", "Classes with too many lines", detectLargeClasses},
		&detector{"god_class", "Classes with too many methods", detectGodClasses},
		&detector{"dead_code", "Functions and methods nothing calls or references", detectDeadCode},
		&detector{"duplicate_symbol", "Function or class names defined in many files", detectDuplicateSymbols},
		&detector{"god_component", "UI component files defining too many functions", detectGodComponents},
		&detector{"high_fan_out", "Files importing too many files", detectHighFanOut},
		&detector{"high_fan_in", "Files imported by too many files", detectHighFanIn},
		&detector{"hub_module", "Files with both high fan-in and high fan-out", detectHubModules},
		&detector{"circular_dependency", "Import cycles between files", detectCircularDependencies},
		&detector{"mutual_dependency", "Pairs of files importing each other", detectMutualDependencies},
		&detector{"orphan_module", "Files with no imports in or out", detectOrphanModules},
		&detector{"large_module", "Files defining too many symbols", detectLargeModules},
		&detector{"instability", "Files that depend on much and are depended on little", detectInstability},
		&detector{"barrel_file", "Files that only re-export other files", detectBarrelFiles},
		&detector{"shotgun_surgery", "Files whose symbols are used from many other files", detectShotgunSurgery},
		&detector{"deep_dependency_chain", "Files starting long import chains", detectDeepChains},
		&detector{"feature_envy", "Files depending on many other files", detectFeatureEnvy},
		&detector{"cross_directory_coupling", "Files importing from many other directories", detectCrossDirectoryCoupling},
		&detector{"feature_envy_advanced", "Functions using other files more than their own", detectFeatureEnvyAdvanced},
		&detector{"message_chain", "Functions starting long call chains", detectMessageChains},
		&detector{"law_of_demeter", "Functions calling into many other files", detectLawOfDemeter},
	}
}

func symbolLocation(row map[string]any) Location {
	return Location{File: str(row, "file"), Symbol: str(row, "name"), Line: integer(row, "line")}
}

func kindName(label string) string {
	if label == "" {
		return "symbol"
	}
	return strings.ToLower(label)
}

func detectLongFunctions(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	limit := th.Float(LongFunctionLines)
	rows, err := query(ctx, q, `MATCH (f:Function|Method) WHERE f.line_count >= $min
		RETURN f.label AS label, f.name AS name, f.file_path AS file, f.start_line AS line, f.line_count AS lines`,
		map[string]any{"min": limit})
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, r := range rows {
		lines := num(r, "lines")
		sev := SeverityMedium
		switch x := ratio(lines, limit); {
		case x >= 2:
			sev = SeverityCritical
		case x >= 1.2:
			sev = SeverityHigh
		}
		out = append(out, Finding{
			Severity:       sev,
			Description:    fmt.Sprintf("%s %s is %d lines long (threshold %g)", kindName(str(r, "label")), str(r, "name"), int(lines), limit),
			Locations:      []Location{symbolLocation(r)},
			Metrics:        map[string]float64{"lines": lines, "threshold": limit},
			Recommendation: "Split it into smaller functions with one responsibility each.",
		})
	}
	return out, nil
}

func detectLongParameterLists(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	limit := th.Float(LongParameterCount)
	rows, err := query(ctx, q, `MATCH (f:Function|Method) WHERE f.param_count >= $min
		RETURN f.label AS label, f.name AS name, f.file_path AS file, f.start_line AS line, f.param_count AS params`,
		map[string]any{"min": limit})
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, r := range rows {
		params := num(r, "params")
		sev := SeverityMedium
		if params >= limit+3 {
			sev = SeverityHigh
		}
		out = append(out, Finding{
			Severity:       sev,
			Description:    fmt.Sprintf("%s %s takes %d parameters (threshold %g)", kindName(str(r, "label")), str(r, "name"), int(params), limit),
			Locations:      []Location{symbolLocation(r)},
			Metrics:        map[string]float64{"parameters": params, "threshold": limit},
			Recommendation: "Group related parameters into a type or split the function.",
		})
	}
	return out, nil
}

func detectLargeClasses(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	limit := th.Float(LargeClassLines)
	rows, err := query(ctx, q, `MATCH (c:Class) WHERE c.line_count >= $min
		RETURN c.name AS name, c.file_path AS file, c.start_line AS line, c.line_count AS lines`,
		map[string]any{"min": limit})
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, r := range rows {
		lines := num(r, "lines")
		sev := SeverityMedium
		switch x := ratio(lines, limit); {
		case x >= 2:
			sev = SeverityCritical
		case x >= 1.5:
			sev = SeverityHigh
		}
		out = append(out, Finding{
			Severity:       sev,
			Description:    fmt.Sprintf("class %s is %d lines long (threshold %g)", str(r, "name"), int(lines), limit),
			Locations:      []Location{symbolLocation(r)},
			Metrics:        map[string]float64{"lines": lines, "threshold": limit},
			Recommendation: "Extract cohesive groups of fields and methods into their own classes.",
		})
	}
	return out, nil
}

func detectGodClasses(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	limit := th.Float(GodClassMethods)
	rows, err := query(ctx, q, `MATCH (c:Class)-[:CONTAINS]->(m:Method)
		RETURN c.name AS name, c.file_path AS file, c.start_line AS line, COUNT(DISTINCT m.qualified_name) AS methods`, nil)
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, r := range rows {
		methods := num(r, "methods")
		if methods < limit {
			continue
		}
		sev := SeverityHigh
		if ratio(methods, limit) >= 2 {
			sev = SeverityCritical
		}
		out = append(out, Finding{
			Severity:       sev,
			Description:    fmt.Sprintf("class %s has %d methods (threshold %g)", str(r, "name"), int(methods), limit),
			Locations:      []Location{symbolLocation(r)},
			Metrics:        map[string]float64{"methods": methods, "threshold": limit},
			Recommendation: "Split the class by responsibility and delegate to the new types.",
		})
	}
	return out, nil
}

// detectDeadCode flags functions and methods without an incoming CALLS or
// REFERENCES edge. Only edges count as evidence of use.
func detectDeadCode(ctx context.Context, q Querier, _ Thresholds) ([]Finding, error) {
	rows, err := query(ctx, q, `MATCH (f:Function|Method) WHERE NOT (f)<-[:CALLS|REFERENCES]-()
		RETURN f.label AS label, f.name AS name, f.file_path AS file, f.start_line AS line`, nil)
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, r := range rows {
		name := str(r, "name")
		if isEntryPoint(name) {
			continue
		}
		out = append(out, Finding{
			Severity:       SeverityLow,
			Description:    fmt.Sprintf("%s %s is never called or referenced", kindName(str(r, "label")), name),
			Locations:      []Location{symbolLocation(r)},
			Recommendation: "Remove it, or add the missing caller if it is meant to be used.",
		})
	}
	return out, nil
}

func detectDuplicateSymbols(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	limit := th.Float(DuplicateSymbolFiles)
	rows, err := query(ctx, q, `MATCH (s:Function|Class)
		RETURN s.label AS label, s.name AS name, s.file_path AS file, s.start_line AS line`, nil)
	if err != nil {
		return nil, err
	}
	type group struct {
		label, name string
		locs        []Location
		files       map[string]bool
	}
	groups := map[string]*group{}
	for _, r := range rows {
		name := str(r, "name")
		if isEntryPoint(name) {
			continue
		}
		key := str(r, "label") + "\x00" + name
		g, ok := groups[key]
		if !ok {
			g = &group{label: str(r, "label"), name: name, files: map[string]bool{}}
			groups[key] = g
		}
		g.files[str(r, "file")] = true
		g.locs = append(g.locs, symbolLocation(r))
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []Finding
	for _, k := range keys {
		g := groups[k]
		files := float64(len(g.files))
		if files < limit {
			continue
		}
		sev := SeverityMedium
		if files >= limit+1 {
			sev = SeverityHigh
		}
		sortLocations(g.locs)
		out = append(out, Finding{
			Severity:       sev,
			Description:    fmt.Sprintf("%s %s is defined in %d files", kindName(g.label), g.name, len(g.files)),
			Locations:      g.locs,
			Metrics:        map[string]float64{"files": files, "threshold": limit},
			Recommendation: "Consolidate the copies into one shared definition.",
		})
	}
	return out, nil
}

func detectGodComponents(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	limit := th.Float(GodComponentFunctions)
	rows, err := query(ctx, q, `MATCH (fn:Function)-[:DEFINED_IN]->(f:File)
		RETURN f.path AS file, COUNT(fn) AS functions`, nil)
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, r := range rows {
		file := str(r, "file")
		if !strings.HasSuffix(file, ".tsx") && !strings.HasSuffix(file, ".jsx") {
			continue
		}
		n := num(r, "functions")
		if n < limit {
			continue
		}
		out = append(out, Finding{
			Severity:       SeverityMedium,
			Description:    fmt.Sprintf("component file %s defines %d functions (threshold %g)", file, int(n), limit),
			Locations:      []Location{{File: file}},
			Metrics:        map[string]float64{"functions": n, "threshold": limit},
			Recommendation: "Split it into smaller components and move helpers to their own modules.",
		})
	}
	return out, nil
}

func sortLocations(locs []Location) {
	sort.Slice(locs, func(i, j int) bool {
		if locs[i].File != locs[j].File {
			return locs[i].File < locs[j].File
		}
		if locs[i].Line != locs[j].Line {
			return locs[i].Line < locs[j].Line
		}
		return locs[i].Symbol < locs[j].Symbol
	})
}
