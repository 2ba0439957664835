package detect

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

func fileLocations(files []string) []Location {
	locs := make([]Location, len(files))
	for i, f := range files {
		locs[i] = Location{File: f}
	}
	return locs
}

func detectHighFanOut(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	g, err := loadImportGraph(ctx, q)
	if err != nil {
		return nil, err
	}
	limit := th.Float(FanOut)
	var out []Finding
	for _, f := range g.files {
		n := float64(g.fanOut(f))
		if n == 0 || n < limit {
			continue
		}
		out = append(out, Finding{
			Severity:       SeverityHigh,
			Description:    fmt.Sprintf("%s imports %d files (threshold %g)", f, int(n), limit),
			Locations:      []Location{{File: f}},
			Metrics:        map[string]float64{"fan_out": n, "threshold": limit},
			Recommendation: "Reduce its dependencies, for example by moving code closer to what it uses.",
		})
	}
	return out, nil
}

func detectHighFanIn(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	g, err := loadImportGraph(ctx, q)
	if err != nil {
		return nil, err
	}
	limit := th.Float(FanIn)
	var out []Finding
	for _, f := range g.files {
		n := float64(g.fanIn(f))
		if n == 0 || n < limit {
			continue
		}
		sev := SeverityHigh
		if ratio(n, limit) >= 2 {
			sev = SeverityCritical
		}
		out = append(out, Finding{
			Severity:       sev,
			Description:    fmt.Sprintf("%s is imported by %d files (threshold %g)", f, int(n), limit),
			Locations:      []Location{{File: f}},
			Metrics:        map[string]float64{"fan_in": n, "threshold": limit},
			Recommendation: "Keep its interface small and stable; split unrelated parts out.",
		})
	}
	return out, nil
}

func detectHubModules(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	g, err := loadImportGraph(ctx, q)
	if err != nil {
		return nil, err
	}
	inLimit, outLimit := th.Float(HubFanIn), th.Float(HubFanOut)
	var out []Finding
	for _, f := range g.files {
		in, fo := float64(g.fanIn(f)), float64(g.fanOut(f))
		if in == 0 || fo == 0 || in < inLimit || fo < outLimit {
			continue
		}
		out = append(out, Finding{
			Severity:       SeverityHigh,
			Description:    fmt.Sprintf("%s is a hub: imported by %d files and importing %d", f, int(in), int(fo)),
			Locations:      []Location{{File: f}},
			Metrics:        map[string]float64{"fan_in": in, "fan_out": fo},
			Recommendation: "Split it so that widely used code does not depend on many other files.",
		})
	}
	return out, nil
}

func detectCircularDependencies(ctx context.Context, q Querier, _ Thresholds) ([]Finding, error) {
	g, err := loadImportGraph(ctx, q)
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, comp := range g.components() {
		if len(comp) < 2 {
			continue
		}
		sev := SeverityHigh
		if len(comp) >= 5 {
			sev = SeverityCritical
		}
		out = append(out, Finding{
			Severity:       sev,
			Description:    fmt.Sprintf("%d files form an import cycle: %s", len(comp), strings.Join(comp, ", ")),
			Locations:      fileLocations(comp),
			Metrics:        map[string]float64{"files": float64(len(comp))},
			Recommendation: "Break the cycle by extracting the shared code or inverting one dependency.",
		})
	}
	return out, nil
}

func detectMutualDependencies(ctx context.Context, q Querier, _ Thresholds) ([]Finding, error) {
	rows, err := query(ctx, q, `MATCH (a:File)-[:IMPORTS]->(b:File)-[:IMPORTS]->(a)
		RETURN DISTINCT a.path AS a, b.path AS b`, nil)
	if err != nil {
		return nil, err
	}
	var pairs [][2]string
	for _, r := range rows {
		a, b := str(r, "a"), str(r, "b")
		if a < b {
			pairs = append(pairs, [2]string{a, b})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	var out []Finding
	for _, p := range pairs {
		out = append(out, Finding{
			Severity:       SeverityHigh,
			Description:    fmt.Sprintf("%s and %s import each other", p[0], p[1]),
			Locations:      fileLocations(p[:]),
			Recommendation: "Move the shared code into a third file both can import.",
		})
	}
	return out, nil
}

func detectOrphanModules(ctx context.Context, q Querier, _ Thresholds) ([]Finding, error) {
	rows, err := query(ctx, q, `MATCH (f:File) WHERE NOT (f)-[:IMPORTS]->() AND NOT (f)<-[:IMPORTS]-()
		RETURN f.path AS file ORDER BY file`, nil)
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, r := range rows {
		f := str(r, "file")
		out = append(out, Finding{
			Severity:       SeverityMedium,
			Description:    fmt.Sprintf("%s neither imports nor is imported by any file", f),
			Locations:      []Location{{File: f}},
			Recommendation: "Remove it if unused, or wire it into the code that needs it.",
		})
	}
	return out, nil
}

// symbolCounts returns the number of symbols defined in each file.
func symbolCounts(ctx context.Context, q Querier) (map[string]int, error) {
	rows, err := query(ctx, q, `MATCH (s)-[:DEFINED_IN]->(f:File) RETURN f.path AS file, COUNT(s) AS symbols`, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[str(r, "file")] = integer(r, "symbols")
	}
	return counts, nil
}

func detectLargeModules(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	counts, err := symbolCounts(ctx, q)
	if err != nil {
		return nil, err
	}
	limit := th.Float(LargeModuleSymbols)
	files := make([]string, 0, len(counts))
	for f := range counts {
		files = append(files, f)
	}
	sort.Strings(files)
	var out []Finding
	for _, f := range files {
		n := float64(counts[f])
		if n <= limit {
			continue
		}
		sev := SeverityMedium
		switch x := ratio(n, limit); {
		case x > 2.5:
			sev = SeverityCritical
		case x > 1.75:
			sev = SeverityHigh
		}
		out = append(out, Finding{
			Severity:       sev,
			Description:    fmt.Sprintf("%s defines %d symbols (threshold %g)", f, int(n), limit),
			Locations:      []Location{{File: f}},
			Metrics:        map[string]float64{"symbols": n, "threshold": limit},
			Recommendation: "Split the file into smaller modules grouped by responsibility.",
		})
	}
	return out, nil
}

func detectInstability(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	g, err := loadImportGraph(ctx, q)
	if err != nil {
		return nil, err
	}
	limit, minOut := th.Float(InstabilityRatio), th.Float(InstabilityMinFanOut)
	var out []Finding
	for _, f := range g.files {
		in, fo := float64(g.fanIn(f)), float64(g.fanOut(f))
		if fo == 0 || fo < minOut {
			continue
		}
		inst := fo / (in + fo)
		if inst < limit {
			continue
		}
		out = append(out, Finding{
			Severity:       SeverityHigh,
			Description:    fmt.Sprintf("%s has instability %.2f (imports %d, imported by %d)", f, inst, int(fo), int(in)),
			Locations:      []Location{{File: f}},
			Metrics:        map[string]float64{"instability": inst, "fan_in": in, "fan_out": fo},
			Recommendation: "Depend on fewer concrete files, or on stable abstractions instead.",
		})
	}
	return out, nil
}

func detectBarrelFiles(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	g, err := loadImportGraph(ctx, q)
	if err != nil {
		return nil, err
	}
	counts, err := symbolCounts(ctx, q)
	if err != nil {
		return nil, err
	}
	limit := th.Float(BarrelFanOut)
	var out []Finding
	for _, f := range g.files {
		fo := float64(g.fanOut(f))
		if fo == 0 || fo < limit || counts[f] > 1 {
			continue
		}
		out = append(out, Finding{
			Severity:       SeverityMedium,
			Description:    fmt.Sprintf("%s imports %d files but defines %d symbols", f, int(fo), counts[f]),
			Locations:      []Location{{File: f}},
			Metrics:        map[string]float64{"fan_out": fo, "symbols": float64(counts[f])},
			Recommendation: "Import from the defining files directly instead of through a barrel.",
		})
	}
	return out, nil
}

func detectShotgunSurgery(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	rows, err := query(ctx, q, `MATCH (a)-[:CALLS|REFERENCES]->(b)-[:DEFINED_IN]->(f:File)
		RETURN DISTINCT f.path AS file, a.file_path AS user`, nil)
	if err != nil {
		return nil, err
	}
	users := map[string]map[string]bool{}
	for _, r := range rows {
		f, u := str(r, "file"), str(r, "user")
		if u == "" || u == f {
			continue
		}
		if users[f] == nil {
			users[f] = map[string]bool{}
		}
		users[f][u] = true
	}
	files := make([]string, 0, len(users))
	for f := range users {
		files = append(files, f)
	}
	sort.Strings(files)

	limit := th.Float(ShotgunDependents)
	var out []Finding
	for _, f := range files {
		n := float64(len(users[f]))
		if n <= limit {
			continue
		}
		sev := SeverityHigh
		if ratio(n, limit) > 2 {
			sev = SeverityCritical
		}
		out = append(out, Finding{
			Severity:       sev,
			Description:    fmt.Sprintf("symbols of %s are used from %d other files (threshold %g)", f, int(n), limit),
			Locations:      []Location{{File: f}},
			Metrics:        map[string]float64{"dependents": n, "threshold": limit},
			Recommendation: "A change here ripples widely; narrow its public surface or hide it behind an interface.",
		})
	}
	return out, nil
}

func detectDeepChains(ctx context.Context, q Querier, th Thresholds) ([]Finding, error) {
	g, err := loadImportGraph(ctx, q)
	if err != nil {
		return nil, err
	}
	limit := th.Float(DeepChainLength)
	lengths, paths := g.chains()
	var out []Finding
	for _, f := range g.files {
		n := float64(lengths[f])
		if n == 0 || n < limit {
			continue
		}
		sev := SeverityMedium
		if n >= limit+4 {
			sev = SeverityHigh
		}
		out = append(out, Finding{
			Severity:       sev,
			Description:    fmt.Sprintf("%s starts an import chain %d files deep: %s", f, int(n), strings.Join(paths[f], " -> ")),
			Locations:      []Location{{File: f}},
			Metrics:        map[string]float64{"depth": n, "threshold": limit},
			Recommendation: "Flatten the dependency chain so changes deep down do not ripple up.",
		})
	}
	return out, nil
}
