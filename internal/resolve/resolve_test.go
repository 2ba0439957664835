package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/smellgraph/internal/parser"
	"github.com/DeusData/smellgraph/internal/querybuild"
)

func TestResolveImports(t *testing.T) {
	r := NewImporter([]string{
		"main.py",
		"utils.py",
		"pkg/__init__.py",
		"pkg/models.py",
		"pkg/sub/deep.py",
		"web/app.js",
		"web/util.ts",
		"web/lib/index.js",
		"web/lib.json",
		"web/button.tsx",
		"go/cmd/main.go",
		"go/internal/store/store.go",
		"go/internal/store/nodes.go",
		"go/internal/store/nodes.py",
	}, nil)

	tests := []struct {
		name, importer, spec string
		want                 []string
	}{
		{"python absolute", "main.py", "utils", []string{"utils.py"}},
		{"python package index", "main.py", "pkg", []string{"pkg/__init__.py"}},
		{"python dotted", "main.py", "pkg.models", []string{"pkg/models.py"}},
		{"python relative sibling", "pkg/models.py", ".sub.deep", []string{"pkg/sub/deep.py"}},
		{"python relative parent", "pkg/sub/deep.py", "..models", []string{"pkg/models.py"}},
		{"python from dot import", "pkg/sub/deep.py", "..", []string{"pkg/__init__.py"}},
		{"python stdlib", "main.py", "os", nil},
		{"js extension", "web/app.js", "./util", []string{"web/util.ts"}},
		{"js directory index before other extensions", "web/app.js", "./lib", []string{"web/lib/index.js"}},
		{"js exact path", "web/app.js", "./lib.json", []string{"web/lib.json"}},
		{"js parent", "web/lib/index.js", "../button", []string{"web/button.tsx"}},
		{"js bare package", "web/app.js", "react", nil},
		{"js escaping root", "web/app.js", "../../x", nil},
		{"go module path", "go/cmd/main.go", "example.com/proj/go/internal/store", []string{"go/internal/store/nodes.go", "go/internal/store/store.go"}},
		{"go stdlib", "go/cmd/main.go", "fmt", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.importer, tt.spec))
		})
	}
}

func TestImportPrecedenceOwnLanguageFirst(t *testing.T) {
	r := NewImporter([]string{"a/mod.js", "a/mod.ts", "a/main.ts", "a/main2.js"}, nil)
	assert.Equal(t, []string{"a/mod.ts"}, r.Resolve("a/main.ts", "./mod"))
	assert.Equal(t, []string{"a/mod.js"}, r.Resolve("a/main2.js", "./mod"))
}

func TestImportNeverResolvesToItself(t *testing.T) {
	r := NewImporter([]string{"a.py"}, nil)
	assert.Nil(t, r.Resolve("a.py", "a"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a/b.py", Normalize("./a/b.py"))
	assert.Equal(t, "a/b.py", Normalize(`a\b.py`))
	assert.Equal(t, "a.py", Normalize("/a.py"))
	assert.Equal(t, "", Normalize("."))
}

func newTable() *Table {
	t := NewTable()
	t.Set("main.py", []Def{
		{Label: "Function", Name: "main", StartLine: 4, EndLine: 8},
		{Label: "Function", Name: "local", StartLine: 10, EndLine: 12},
	})
	t.Set("utils.py", []Def{
		{Label: "Function", Name: "helper", StartLine: 1, EndLine: 3},
		{Label: "Variable", Name: "CONFIG", StartLine: 5, EndLine: 5},
	})
	t.Set("other.py", []Def{
		{Label: "Function", Name: "helper", StartLine: 1, EndLine: 2},
		{Label: "Function", Name: "secret", StartLine: 4, EndLine: 6},
	})
	t.Set("shadow.py", []Def{
		{Label: "Function", Name: "helper", StartLine: 1, EndLine: 2},
	})
	return t
}

func TestReferencesScopedToImports(t *testing.T) {
	table := newTable()
	u := Unit{
		Path:    "main.py",
		Imports: []string{"utils.py"},
		Usages: []parser.Usage{
			{Name: "helper", Line: 5, Kind: parser.UsageCall},
			{Name: "CONFIG", Line: 6, Kind: parser.UsageRead},
			{Name: "secret", Line: 7, Kind: parser.UsageCall}, // other.py is not imported
			{Name: "local", Line: 7, Kind: parser.UsageCall},
			{Name: "result", Line: 6, Kind: parser.UsageAssign},
			{Name: "helper", Line: 1, Kind: parser.UsageDecl},
		},
	}
	res := References(u, table)

	require.Len(t, res.References, 3)
	mainRef := querybuild.SymbolRef{Label: "Function", FilePath: "main.py", Name: "main", StartLine: 4}

	assert.Equal(t, querybuild.RelCalls, res.References[0].Type)
	assert.Equal(t, mainRef, res.References[0].From)
	assert.Equal(t, querybuild.SymbolRef{Label: "Function", FilePath: "utils.py", Name: "helper", StartLine: 1}, res.References[0].To)

	assert.Equal(t, querybuild.RelReferences, res.References[1].Type)
	assert.Equal(t, "CONFIG", res.References[1].To.Name)

	assert.Equal(t, "local", res.References[2].To.Name)
	assert.Equal(t, "main.py", res.References[2].To.FilePath)

	assert.Equal(t, 1, res.Unresolved)
}

func TestReferencesTieBreak(t *testing.T) {
	table := newTable()
	table.Set("main.py", []Def{
		{Label: "Function", Name: "main", StartLine: 1, EndLine: 5},
	})

	u := Unit{
		Path:    "main.py",
		Imports: []string{"utils.py", "shadow.py"},
		Usages:  []parser.Usage{{Name: "helper", Line: 2, Kind: parser.UsageCall}},
	}
	res := References(u, table)
	require.Len(t, res.References, 1)
	assert.Equal(t, "shadow.py", res.References[0].To.FilePath, "most recent import wins")

	u.Usages = []parser.Usage{{Name: "helper", Qualifier: "utils", Line: 2, Kind: parser.UsageCall}}
	res = References(u, table)
	require.Len(t, res.References, 1)
	assert.Equal(t, "utils.py", res.References[0].To.FilePath, "qualifier selects the module")

	table.Set("main.py", []Def{
		{Label: "Function", Name: "main", StartLine: 1, EndLine: 5},
		{Label: "Function", Name: "helper", StartLine: 7, EndLine: 9},
	})
	u.Usages = []parser.Usage{{Name: "helper", Line: 2, Kind: parser.UsageCall}}
	res = References(u, table)
	require.Len(t, res.References, 1)
	assert.Equal(t, "main.py", res.References[0].To.FilePath, "same file wins")
}

func TestReferencesUnresolvedQualifierDoesNotFallBack(t *testing.T) {
	table := newTable()
	table.Set("utils.py", []Def{
		{Label: "Function", Name: "dumps", StartLine: 1, EndLine: 2},
		{Label: "Function", Name: "log", StartLine: 4, EndLine: 5},
		{Label: "Function", Name: "helper", StartLine: 7, EndLine: 8},
	})
	table.Set("main.py", []Def{
		{Label: "Function", Name: "main", StartLine: 1, EndLine: 9},
		{Label: "Function", Name: "save", StartLine: 11, EndLine: 12},
	})

	u := Unit{
		Path:    "main.py",
		Imports: []string{"utils.py"},
		Usages: []parser.Usage{
			{Name: "dumps", Qualifier: "json", Line: 2, Kind: parser.UsageCall},
			{Name: "log", Qualifier: "console", Line: 3, Kind: parser.UsageCall},
			{Name: "save", Qualifier: "repo", Line: 4, Kind: parser.UsageCall},
			{Name: "missing", Qualifier: "utils", Line: 5, Kind: parser.UsageCall},
		},
	}
	res := References(u, table)
	assert.Empty(t, res.References, "qualified usages must not match bare names")
	assert.Equal(t, 4, res.Unresolved)

	u.Usages = []parser.Usage{
		{Name: "save", Qualifier: "self", Line: 4, Kind: parser.UsageCall},
		{Name: "helper", Qualifier: "self", Line: 5, Kind: parser.UsageCall},
	}
	res = References(u, table)
	require.Len(t, res.References, 1, "receivers resolve in the same file only")
	assert.Equal(t, "main.py", res.References[0].To.FilePath)
	assert.Equal(t, "save", res.References[0].To.Name)
	assert.Equal(t, 1, res.Unresolved)
}

func TestReferencesReceiversAndAliases(t *testing.T) {
	table := NewTable()
	table.Set("store/store.go", []Def{
		{Label: "Method", Name: "Close", StartLine: 3, EndLine: 6},
		{Label: "Method", Name: "flush", StartLine: 8, EndLine: 9},
	})
	table.Set("web/lib/index.js", []Def{{Label: "Function", Name: "render", StartLine: 1, EndLine: 2}})
	table.Set("web/app.js", []Def{{Label: "Function", Name: "main", StartLine: 1, EndLine: 5}})

	goUnit := Unit{
		Path:      "store/store.go",
		Receivers: []string{"s"},
		Usages:    []parser.Usage{{Name: "flush", Qualifier: "s", Line: 4, Kind: parser.UsageCall}},
	}
	res := References(goUnit, table)
	require.Len(t, res.References, 1)
	assert.Equal(t, "flush", res.References[0].To.Name)

	jsUnit := Unit{
		Path:    "web/app.js",
		Imports: []string{"web/lib/index.js"},
		Modules: map[string][]string{"index": {"web/lib/index.js"}},
		Usages: []parser.Usage{
			{Name: "render", Qualifier: "index", Line: 2, Kind: parser.UsageCall},
			{Name: "render", Qualifier: "lib", Line: 3, Kind: parser.UsageCall},
		},
	}
	res = References(jsUnit, table)
	require.Len(t, res.References, 1, "both names bind the same target")
	assert.Equal(t, "web/lib/index.js", res.References[0].To.FilePath)
	assert.Zero(t, res.Unresolved)
}

func TestImportName(t *testing.T) {
	tests := map[string]string{
		"./lib/utils.js":   "utils",
		"../components/ui": "ui",
		"pkg.models":       "models",
		"..models":         "models",
		"utils":            "utils",
		"example.com/x/sq": "sq",
		"@scope/pkg":       "pkg",
	}
	for spec, want := range tests {
		assert.Equal(t, want, ImportName(spec), spec)
	}
}

func TestModuleLevelUsageUsesFile(t *testing.T) {
	table := newTable()
	u := Unit{
		Path:    "main.py",
		Imports: []string{"utils.py"},
		Usages:  []parser.Usage{{Name: "helper", Line: 20, Kind: parser.UsageCall}},
	}
	res := References(u, table)
	require.Len(t, res.References, 1)
	assert.Equal(t, querybuild.FileRef{Path: "main.py"}, res.References[0].From)
}

func TestRecursionAndDuplicatesSkipped(t *testing.T) {
	table := newTable()
	u := Unit{
		Path: "main.py",
		Usages: []parser.Usage{
			{Name: "main", Line: 5, Kind: parser.UsageCall},
			{Name: "local", Line: 5, Kind: parser.UsageCall},
			{Name: "local", Line: 6, Kind: parser.UsageCall},
		},
	}
	res := References(u, table)
	require.Len(t, res.References, 1)
	assert.Equal(t, "local", res.References[0].To.Name)
}

func TestInnermostEnclosing(t *testing.T) {
	defs := []Def{
		{Label: "Class", Name: "C", StartLine: 1, EndLine: 20},
		{Label: "Method", Name: "m", StartLine: 3, EndLine: 10},
		{Label: "Function", Name: "inner", StartLine: 5, EndLine: 7},
	}
	d, ok := innermost(defs, 6)
	require.True(t, ok)
	assert.Equal(t, "inner", d.Name)
	d, _ = innermost(defs, 12)
	assert.Equal(t, "C", d.Name)
	_, ok = innermost(defs, 30)
	assert.False(t, ok)
}

func TestDefsFromSymbolsSkipsMalformed(t *testing.T) {
	defs := DefsFromSymbols([]parser.Symbol{
		{Name: "ok", Kind: parser.KindMethod, StartLine: 2, EndLine: 1},
		{Name: "", Kind: parser.KindFunction, StartLine: 3},
	})
	require.Len(t, defs, 1)
	assert.Equal(t, Def{Label: "Method", Name: "ok", StartLine: 2, EndLine: 2}, defs[0])
}
