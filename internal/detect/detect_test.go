package detect

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/smellgraph/internal/cypher"
	"github.com/DeusData/smellgraph/internal/parser"
	"github.com/DeusData/smellgraph/internal/pipeline"
	"github.com/DeusData/smellgraph/internal/querybuild"
	"github.com/DeusData/smellgraph/internal/store"
)

const testProject = "test"

// graph writes a small code graph through the same statements the
// pipeline produces.
type graph struct {
	t    *testing.T
	exec *cypher.Executor
}

func newGraph(t *testing.T) *graph {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.UpsertProject(testProject, "/repo"))
	return &graph{t: t, exec: &cypher.Executor{Store: s, Project: testProject}}
}

func (g *graph) write(stmts ...string) {
	g.t.Helper()
	_, err := g.exec.Write(context.Background(), stmts)
	require.NoError(g.t, err)
}

func (g *graph) file(paths ...string) {
	g.t.Helper()
	for _, p := range paths {
		g.write(querybuild.FileStatement(querybuild.File{Path: p, Language: "python"}))
	}
}

func (g *graph) symbols(path string, syms ...parser.Symbol) {
	g.t.Helper()
	frag := querybuild.Build(querybuild.File{Path: path, Language: "python"}, syms)
	require.Empty(g.t, frag.Warnings)
	g.write(frag.Statements...)
}

func (g *graph) imports(from string, to ...string) {
	g.t.Helper()
	for _, t := range to {
		g.write(querybuild.Edge(querybuild.RelImports, querybuild.FileRef{Path: from}, querybuild.FileRef{Path: t}))
	}
}

func (g *graph) calls(fromPath string, from parser.Symbol, toPath string, to parser.Symbol) {
	g.t.Helper()
	g.write(querybuild.Edge(querybuild.RelCalls, querybuild.RefFor(fromPath, from), querybuild.RefFor(toPath, to)))
}

func fn(name string, start, end int) parser.Symbol {
	return parser.Symbol{Name: name, Kind: parser.KindFunction, StartLine: start, EndLine: end}
}

// run executes one detector through the Runner and fails on its error.
func run(t *testing.T, g *graph, name string, overrides map[string]float64) []Finding {
	t.Helper()
	th := DefaultThresholds()
	require.NoError(t, th.Apply(overrides))
	ds, err := Default().Select([]string{name}, nil)
	require.NoError(t, err)
	res := (&Runner{Querier: g.exec}).Run(context.Background(), ds, th)
	require.Empty(t, res.Errors)
	for _, f := range res.Findings {
		assert.Equal(t, name, f.Detector)
	}
	return res.Findings
}

func files(f Finding) []string {
	var out []string
	for _, l := range f.Locations {
		out = append(out, l.File)
	}
	return out
}

func TestThresholdsApply(t *testing.T) {
	th := DefaultThresholds()
	require.NoError(t, th.Apply(map[string]float64{FanOut: 3, InstabilityRatio: 0.5}))
	assert.Equal(t, 3.0, th.Float(FanOut))
	assert.Equal(t, 0.5, th.Float(InstabilityRatio))
	assert.Equal(t, 150.0, th.Float(LongFunctionLines))
	assert.Equal(t, 150.0, DefaultThresholds().Float(LongFunctionLines))

	for name, bad := range map[string]map[string]float64{
		"unknown":  {"nope": 1},
		"negative": {FanIn: -1},
		"ratio":    {InstabilityRatio: 1.5},
	} {
		t.Run(name, func(t *testing.T) {
			th := DefaultThresholds()
			var ce *ConfigError
			require.ErrorAs(t, th.Apply(bad), &ce)
		})
	}

	th = DefaultThresholds()
	err := th.Apply(map[string]float64{FanOut: 1, "zz_other": 0})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 20.0, th.Float(FanOut), "nothing applied on error")

	assert.Len(t, ThresholdKeys(), len(defaultThresholds))
	assert.Equal(t, 7, Thresholds{FanOut: 6.2}.Int(FanOut))
}

func TestRegistrySelect(t *testing.T) {
	r := Default()
	assert.Len(t, r.Names(), 23)

	all, err := r.Select(nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 23)

	ds, err := r.Select([]string{"god_class", "dead_code", "god_class"}, []string{"god_class"})
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "dead_code", ds[0].Name())

	_, err = r.Select([]string{"missing"}, nil)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "include", ce.Field)

	_, err = r.Select(nil, []string{"missing"})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "exclude", ce.Field)

	assert.Panics(t, func() { NewRegistry(Builtin()[0], Builtin()[0]) })
}

func TestRunnerIsolatesFailures(t *testing.T) {
	g := newGraph(t)
	g.symbols("a.py", fn("lonely", 1, 2))

	failing := &detector{name: "failing", detect: func(context.Context, Querier, Thresholds) ([]Finding, error) {
		return nil, errors.New("boom")
	}}
	panicking := &detector{name: "panicking", detect: func(context.Context, Querier, Thresholds) ([]Finding, error) {
		panic("bad detector")
	}}
	slow := &detector{name: "slow", detect: func(ctx context.Context, _ Querier, _ Thresholds) ([]Finding, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	dead, _ := Default().Get("dead_code")

	r := &Runner{Querier: g.exec, Concurrency: 2, Timeout: 100 * time.Millisecond}
	res := r.Run(context.Background(), []Detector{failing, dead, panicking, slow}, nil)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"failing", "dead_code", "panicking", "slow"}, res.Detectors)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "dead_code", res.Findings[0].Detector)

	require.Len(t, res.Errors, 3)
	assert.Equal(t, "failing", res.Errors[0].Detector)
	assert.Equal(t, "panicking", res.Errors[1].Detector)
	assert.Contains(t, res.Errors[1].Error(), "bad detector")
	assert.Equal(t, "slow", res.Errors[2].Detector)
	assert.ErrorIs(t, res.Errors[2], context.DeadlineExceeded)
}

func TestLongFunction(t *testing.T) {
	g := newGraph(t)
	g.symbols("a.py", fn("short", 1, 100), fn("longish", 101, 300), fn("huge", 301, 620))

	got := run(t, g, "long_function", nil)
	require.Len(t, got, 2)
	bySym := map[string]Finding{}
	for _, f := range got {
		bySym[f.Locations[0].Symbol] = f
	}
	assert.Equal(t, SeverityHigh, bySym["longish"].Severity)
	assert.Equal(t, 200.0, bySym["longish"].Metrics["lines"])
	assert.Equal(t, 101, bySym["longish"].Locations[0].Line)
	assert.Equal(t, SeverityCritical, bySym["huge"].Severity)
}

func TestLongParameterList(t *testing.T) {
	g := newGraph(t)
	many := fn("many", 1, 2)
	many.ParamCount = 9
	few := fn("few", 3, 4)
	few.ParamCount = 2
	g.symbols("a.py", many, few)

	got := run(t, g, "long_parameter_list", nil)
	require.Len(t, got, 1)
	assert.Equal(t, "many", got[0].Locations[0].Symbol)
	assert.Equal(t, SeverityHigh, got[0].Severity)
}

func TestLargeClassIsDeterministic(t *testing.T) {
	g := newGraph(t)
	g.symbols("a.py",
		parser.Symbol{Name: "Big", Kind: parser.KindClass, StartLine: 1, EndLine: 450},
		parser.Symbol{Name: "Small", Kind: parser.KindClass, StartLine: 451, EndLine: 460},
	)
	first := run(t, g, "large_class", nil)
	second := run(t, g, "large_class", nil)
	require.Len(t, first, 1)
	assert.Equal(t, SeverityHigh, first[0].Severity)
	assert.Equal(t, first, second)
}

func TestGodClass(t *testing.T) {
	g := newGraph(t)
	syms := []parser.Symbol{{Name: "Svc", Kind: parser.KindClass, StartLine: 1, EndLine: 40}}
	for i, name := range []string{"a", "b", "c"} {
		syms = append(syms, parser.Symbol{Name: name, Kind: parser.KindMethod, Parent: "Svc", StartLine: 2 + i*5, EndLine: 5 + i*5})
	}
	g.symbols("svc.py", syms...)

	got := run(t, g, "god_class", map[string]float64{GodClassMethods: 3})
	require.Len(t, got, 1)
	assert.Equal(t, "Svc", got[0].Locations[0].Symbol)
	assert.Equal(t, 3.0, got[0].Metrics["methods"])

	assert.Empty(t, run(t, g, "god_class", map[string]float64{GodClassMethods: 4}))
}

func TestDeadCode(t *testing.T) {
	g := newGraph(t)
	mainFn, helper := fn("main", 1, 3), fn("helper", 1, 2)
	g.symbols("main.py", mainFn)
	g.symbols("utils.py", helper, fn("unused", 4, 5), fn("test_thing", 7, 8))
	g.calls("main.py", mainFn, "utils.py", helper)

	got := run(t, g, "dead_code", nil)
	require.Len(t, got, 1)
	assert.Equal(t, SeverityLow, got[0].Severity)
	assert.Equal(t, Location{File: "utils.py", Symbol: "unused", Line: 4}, got[0].Locations[0])
}

func TestDeadCodeAfterPipelineBuild(t *testing.T) {
	dir := t.TempDir()
	for name, src := range map[string]string{
		"main.py":   "from utils import helper\n\n\ndef main():\n    return helper()\n",
		"utils.py":  "def helper():\n    return 42\n",
		"orphan.py": "def dead_fn():\n    return 1\n",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600))
	}
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	rep, err := pipeline.New(s, testProject, dir, pipeline.DefaultOptions()).Run(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, rep.FilesFailed)

	ds, err := Default().Select([]string{"dead_code", "orphan_module"}, nil)
	require.NoError(t, err)
	res := (&Runner{Querier: &cypher.Executor{Store: s, Project: testProject}}).Run(context.Background(), ds, nil)
	require.Empty(t, res.Errors)

	var dead, orphans []string
	for _, f := range res.Findings {
		switch f.Detector {
		case "dead_code":
			dead = append(dead, f.Locations[0].Symbol)
		case "orphan_module":
			orphans = append(orphans, f.Locations[0].File)
		}
	}
	assert.Equal(t, []string{"dead_fn"}, dead)
	assert.Equal(t, []string{"orphan.py"}, orphans)
}

func TestDuplicateSymbol(t *testing.T) {
	g := newGraph(t)
	g.symbols("a.py", fn("parse", 1, 2))
	g.symbols("b.py", fn("parse", 1, 2))
	g.symbols("c.py", fn("parse", 5, 6), fn("unique", 8, 9))

	got := run(t, g, "duplicate_symbol", nil)
	require.Len(t, got, 1)
	assert.Equal(t, SeverityMedium, got[0].Severity)
	assert.Equal(t, []string{"a.py", "b.py", "c.py"}, files(got[0]))
}

func TestGodComponent(t *testing.T) {
	g := newGraph(t)
	g.symbols("App.tsx", fn("App", 1, 5), fn("useThing", 6, 9))
	g.symbols("util.ts", fn("a", 1, 2), fn("b", 3, 4))

	got := run(t, g, "god_component", map[string]float64{GodComponentFunctions: 2})
	require.Len(t, got, 1)
	assert.Equal(t, "App.tsx", got[0].Locations[0].File)
}

func TestFanInAndFanOut(t *testing.T) {
	g := newGraph(t)
	g.file("core.py", "a.py", "b.py", "c.py", "d.py")
	for _, f := range []string{"a.py", "b.py", "c.py", "d.py"} {
		g.imports(f, "core.py")
	}
	g.imports("a.py", "b.py", "c.py")

	in := run(t, g, "high_fan_in", map[string]float64{FanIn: 2})
	require.Len(t, in, 1)
	assert.Equal(t, "core.py", in[0].Locations[0].File)
	assert.Equal(t, SeverityCritical, in[0].Severity)

	out := run(t, g, "high_fan_out", map[string]float64{FanOut: 3})
	require.Len(t, out, 1)
	assert.Equal(t, "a.py", out[0].Locations[0].File)
	assert.Equal(t, 3.0, out[0].Metrics["fan_out"])

	hubs := run(t, g, "hub_module", map[string]float64{HubFanIn: 1, HubFanOut: 1})
	require.Len(t, hubs, 2)
	assert.Equal(t, "b.py", hubs[0].Locations[0].File)
	assert.Equal(t, "c.py", hubs[1].Locations[0].File)
}

func TestCircularAndMutualDependencies(t *testing.T) {
	g := newGraph(t)
	g.file("a.py", "b.py", "c.py", "d.py", "x.py", "y.py")
	g.imports("a.py", "b.py")
	g.imports("b.py", "c.py")
	g.imports("c.py", "a.py")
	g.imports("d.py", "a.py")
	g.imports("x.py", "y.py")
	g.imports("y.py", "x.py")

	cycles := run(t, g, "circular_dependency", nil)
	require.Len(t, cycles, 2)
	assert.Equal(t, []string{"a.py", "b.py", "c.py"}, files(cycles[0]))
	assert.Equal(t, SeverityHigh, cycles[0].Severity)
	assert.Equal(t, []string{"x.py", "y.py"}, files(cycles[1]))

	mutual := run(t, g, "mutual_dependency", nil)
	require.Len(t, mutual, 1)
	assert.Equal(t, []string{"x.py", "y.py"}, files(mutual[0]))
}

func TestOrphanModule(t *testing.T) {
	g := newGraph(t)
	g.file("a.py", "b.py", "lonely.py")
	g.imports("a.py", "b.py")

	got := run(t, g, "orphan_module", nil)
	require.Len(t, got, 1)
	assert.Equal(t, "lonely.py", got[0].Locations[0].File)
}

func TestLargeModule(t *testing.T) {
	g := newGraph(t)
	g.symbols("big.py", fn("a", 1, 2), fn("b", 3, 4), fn("c", 5, 6))
	g.symbols("small.py", fn("a", 1, 2), fn("b", 3, 4))

	got := run(t, g, "large_module", map[string]float64{LargeModuleSymbols: 2})
	require.Len(t, got, 1)
	assert.Equal(t, "big.py", got[0].Locations[0].File)
	assert.Equal(t, SeverityMedium, got[0].Severity)
	assert.Equal(t, 3.0, got[0].Metrics["symbols"])
}

func TestInstabilityAndBarrel(t *testing.T) {
	g := newGraph(t)
	g.file("index.ts", "a.ts", "b.ts", "c.ts", "app.ts")
	g.imports("index.ts", "a.ts", "b.ts", "c.ts")
	g.imports("app.ts", "index.ts")
	g.symbols("a.ts", fn("a", 1, 2))

	unstable := run(t, g, "instability", map[string]float64{InstabilityRatio: 0.7, InstabilityMinFanOut: 2})
	require.Len(t, unstable, 1)
	assert.Equal(t, "index.ts", unstable[0].Locations[0].File)
	assert.InDelta(t, 0.75, unstable[0].Metrics["instability"], 1e-9)

	barrels := run(t, g, "barrel_file", map[string]float64{BarrelFanOut: 3})
	require.Len(t, barrels, 1)
	assert.Equal(t, "index.ts", barrels[0].Locations[0].File)
}

func TestShotgunSurgery(t *testing.T) {
	g := newGraph(t)
	helper := fn("helper", 1, 2)
	g.symbols("util.py", helper)
	for _, f := range []string{"a.py", "b.py"} {
		caller := fn("use", 1, 2)
		g.symbols(f, caller)
		g.calls(f, caller, "util.py", helper)
	}

	got := run(t, g, "shotgun_surgery", map[string]float64{ShotgunDependents: 1})
	require.Len(t, got, 1)
	assert.Equal(t, "util.py", got[0].Locations[0].File)
	assert.Equal(t, SeverityHigh, got[0].Severity)
	assert.Empty(t, run(t, g, "shotgun_surgery", map[string]float64{ShotgunDependents: 2}))
}

func TestDeepDependencyChain(t *testing.T) {
	g := newGraph(t)
	g.file("a.py", "b.py", "c.py", "d.py")
	g.imports("a.py", "b.py")
	g.imports("b.py", "c.py")
	g.imports("c.py", "d.py")

	got := run(t, g, "deep_dependency_chain", map[string]float64{DeepChainLength: 3})
	require.Len(t, got, 1)
	assert.Equal(t, "a.py", got[0].Locations[0].File)
	assert.Contains(t, got[0].Description, "a.py -> b.py -> c.py -> d.py")
}

func TestFeatureEnvy(t *testing.T) {
	g := newGraph(t)
	g.file("app.py", "a.py", "b.py", "c.py")
	g.imports("app.py", "a.py", "b.py", "c.py")

	got := run(t, g, "feature_envy", map[string]float64{FeatureEnvyImports: 2})
	require.Len(t, got, 1)
	assert.Equal(t, "app.py", got[0].Locations[0].File)
	assert.Equal(t, SeverityMedium, got[0].Severity)
	assert.Equal(t, 3.0, got[0].Metrics["external_dependencies"])
	assert.Empty(t, run(t, g, "feature_envy", map[string]float64{FeatureEnvyImports: 3}), "threshold is exclusive")
}

func TestCrossDirectoryCoupling(t *testing.T) {
	g := newGraph(t)
	g.file("app/main.py", "app/util.py", "auth/login.py", "billing/pay.py", "ui/view.py")
	g.imports("app/main.py", "app/util.py", "auth/login.py", "billing/pay.py", "ui/view.py")

	got := run(t, g, "cross_directory_coupling", nil)
	require.Len(t, got, 1)
	assert.Equal(t, "app/main.py", got[0].Locations[0].File)
	assert.Equal(t, 3.0, got[0].Metrics["distinct_dirs"], "own directory does not count")
	assert.Empty(t, run(t, g, "cross_directory_coupling", map[string]float64{CrossDirectoryCount: 4}))
}

func TestFeatureEnvyAdvanced(t *testing.T) {
	g := newGraph(t)
	envious, own := fn("envious", 1, 10), fn("own", 12, 13)
	g.symbols("report.py", envious, own)
	g.calls("report.py", envious, "report.py", own)
	for _, f := range []string{"a.py", "b.py", "c.py"} {
		target := fn("get", 1, 2)
		g.symbols(f, target)
		g.calls("report.py", envious, f, target)
	}

	got := run(t, g, "feature_envy_advanced", map[string]float64{FeatureEnvyExternalCalls: 3})
	require.Len(t, got, 1)
	assert.Equal(t, Location{File: "report.py", Symbol: "envious", Line: 1}, got[0].Locations[0])
	assert.Equal(t, 3.0, got[0].Metrics["external_calls"])
	assert.Equal(t, 1.0, got[0].Metrics["internal_calls"])
	assert.Empty(t, run(t, g, "feature_envy_advanced", nil), "default needs five external uses")
}

func TestLawOfDemeter(t *testing.T) {
	g := newGraph(t)
	caller := fn("checkout", 1, 10)
	g.symbols("shop.py", caller)
	for _, f := range []string{"cart.py", "stock.py", "pay.py"} {
		target := fn("run", 1, 2)
		g.symbols(f, target)
		g.calls("shop.py", caller, f, target)
	}

	got := run(t, g, "law_of_demeter", nil)
	require.Len(t, got, 1)
	assert.Equal(t, "checkout", got[0].Locations[0].Symbol)
	assert.Equal(t, SeverityMedium, got[0].Severity)
	assert.Empty(t, run(t, g, "law_of_demeter", map[string]float64{DemeterExternalFiles: 4}))
}

func TestMessageChain(t *testing.T) {
	g := newGraph(t)
	a, b, c, d := fn("a", 1, 2), fn("b", 4, 5), fn("c", 7, 8), fn("d", 10, 11)
	g.symbols("chain.py", a, b, c, d)
	g.calls("chain.py", a, "chain.py", b)
	g.calls("chain.py", b, "chain.py", c)
	g.calls("chain.py", c, "chain.py", d)
	g.calls("chain.py", d, "chain.py", a)

	got := run(t, g, "message_chain", nil)
	require.Len(t, got, 4, "every function in the cycle starts a chain of three")
	assert.Equal(t, "a", got[0].Locations[0].Symbol)
	assert.Equal(t, 3.0, got[0].Metrics["max_chain"], "a chain never revisits a function")
	assert.Equal(t, SeverityMedium, got[0].Severity)
	assert.Empty(t, run(t, g, "message_chain", map[string]float64{MessageChainLength: 4}))
}

func TestCallGraphLongestIsCapped(t *testing.T) {
	g := &callGraph{out: map[string][]string{
		"a": {"b"}, "b": {"c"}, "c": {"d"}, "d": {"e"}, "e": {"f"}, "f": {"g"},
	}}
	assert.Equal(t, 5, g.longest("a", 5))
	assert.Equal(t, 6, g.longest("a", 10))
	assert.Equal(t, 0, g.longest("g", 5))
}

func TestImportGraphComponentsAndChains(t *testing.T) {
	g := &importGraph{
		files: []string{"a", "b", "c", "d", "e"},
		out: map[string][]string{
			"a": {"b"},
			"b": {"c"},
			"c": {"b", "d"},
			"e": {"a"},
		},
	}
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}, {"e"}}, g.components())

	lengths, paths := g.chains()
	assert.Equal(t, 3, lengths["e"])
	assert.Equal(t, 2, lengths["a"])
	assert.Equal(t, 1, lengths["b"])
	assert.Equal(t, 1, lengths["c"])
	assert.Equal(t, 0, lengths["d"])
	assert.Equal(t, []string{"e", "a", "b", "d"}, paths["e"])
	assert.Equal(t, []string{"c", "d"}, paths["c"])
}

func TestIsEntryPoint(t *testing.T) {
	for _, name := range []string{"main", "__init__", "test_x", "TestX", "BenchmarkY", "setUp"} {
		assert.True(t, isEntryPoint(name), name)
	}
	for _, name := range []string{"helper", "tester", "mainly"} {
		assert.False(t, isEntryPoint(name), name)
	}
}
