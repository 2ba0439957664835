package resolve

import (
	"sort"

	"github.com/DeusData/smellgraph/internal/fqn"
	"github.com/DeusData/smellgraph/internal/parser"
	"github.com/DeusData/smellgraph/internal/querybuild"
)

// Def is a symbol as far as resolution is concerned. It can come from a
// fresh parse or from nodes already in the store.
type Def struct {
	Label     string
	Name      string
	StartLine int
	EndLine   int
}

func (d Def) ref(file string) querybuild.SymbolRef {
	return querybuild.SymbolRef{Label: d.Label, FilePath: file, Name: d.Name, StartLine: d.StartLine}
}

func (d Def) encloses(line int) bool {
	return d.StartLine <= line && line <= d.EndLine
}

// DefsFromSymbols converts parsed symbols, dropping the ones the query
// builder would skip.
func DefsFromSymbols(symbols []parser.Symbol) []Def {
	defs := make([]Def, 0, len(symbols))
	for _, s := range symbols {
		if querybuild.Validate(s) != "" {
			continue
		}
		label, _ := querybuild.Label(s.Kind)
		end := s.EndLine
		if end < s.StartLine {
			end = s.StartLine
		}
		defs = append(defs, Def{Label: label, Name: s.Name, StartLine: s.StartLine, EndLine: end})
	}
	return defs
}

// Table holds the definitions of every file visible to resolution.
type Table struct {
	defs   map[string][]Def
	byName map[string]map[string][]Def
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{defs: map[string][]Def{}, byName: map[string]map[string][]Def{}}
}

// Set replaces the definitions of file.
func (t *Table) Set(file string, defs []Def) {
	sorted := append([]Def(nil), defs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartLine < sorted[j].StartLine })
	t.defs[file] = sorted
	names := make(map[string][]Def, len(sorted))
	for _, d := range sorted {
		names[d.Name] = append(names[d.Name], d)
	}
	t.byName[file] = names
}

// Defs returns the definitions of file ordered by start line.
func (t *Table) Defs(file string) []Def { return t.defs[file] }

func (t *Table) lookup(file, name string) (Def, bool) {
	list := t.byName[file][name]
	if len(list) == 0 {
		return Def{}, false
	}
	return list[0], true
}

// Unit is one file ready for reference resolution.
type Unit struct {
	Path    string
	Usages  []parser.Usage
	Imports []string // resolved files, in import declaration order
	// Modules maps the local name of each resolved import to its files.
	// Files in Imports are also reachable under fqn.Local of their path.
	Modules map[string][]string
	// Receivers lists receiver variable names declared in the file beyond
	// self, cls and this (Go method receivers).
	Receivers []string
}

// receivers always name the enclosing object.
var receivers = map[string]bool{"self": true, "cls": true, "this": true}

func (u Unit) isReceiver(name string) bool {
	if receivers[name] {
		return true
	}
	for _, r := range u.Receivers {
		if r == name {
			return true
		}
	}
	return false
}

// moduleFiles returns the imported files bound to qualifier, most recently
// declared first.
func (u Unit) moduleFiles(qualifier string) []string {
	var files []string
	for i := len(u.Imports) - 1; i >= 0; i-- {
		f := u.Imports[i]
		if fqn.Local(f) == qualifier || contains(u.Modules[qualifier], f) {
			files = append(files, f)
		}
	}
	return files
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Reference is a resolved CALLS or REFERENCES edge. From is the innermost
// symbol enclosing the usage, or the file itself for module-level code.
type Reference struct {
	Type string
	From querybuild.Ref
	To   querybuild.SymbolRef
	Line int
}

// Statement returns the MERGE statement for the reference.
func (r Reference) Statement() string {
	return querybuild.Edge(r.Type, r.From, r.To)
}

// Resolution is the outcome for one unit.
type Resolution struct {
	References []Reference
	Unresolved int // call usages with no visible target
}

// References resolves the call and read usages of u. A usage only resolves
// to a symbol of the same file or of a file u imports. Ties go to the same
// file first, then to the most recently declared import. A qualified usage
// resolves only inside the module its qualifier names (`utils.helper()`) or,
// for a receiver (`self.helper()`), inside the same file. Any other
// qualifier, such as an unresolved import or a local variable, is
// unresolved.
func References(u Unit, t *Table) Resolution {
	var res Resolution
	seen := map[string]bool{}
	own := t.Defs(u.Path)

	for _, use := range u.Usages {
		var relType string
		switch use.Kind {
		case parser.UsageCall:
			relType = querybuild.RelCalls
		case parser.UsageRead:
			relType = querybuild.RelReferences
		default:
			continue
		}

		targetFile, target, ok := resolveName(u, t, use)
		if !ok {
			if use.Kind == parser.UsageCall {
				res.Unresolved++
			}
			continue
		}

		var from querybuild.Ref = querybuild.FileRef{Path: u.Path}
		src, hasSrc := innermost(own, use.Line)
		if hasSrc {
			// A definition using its own name is recursion, not a dependency.
			if targetFile == u.Path && src == target {
				continue
			}
			from = src.ref(u.Path)
		}

		ref := Reference{Type: relType, From: from, To: target.ref(targetFile), Line: use.Line}
		key := ref.Statement()
		if seen[key] {
			continue
		}
		seen[key] = true
		res.References = append(res.References, ref)
	}
	return res
}

func resolveName(u Unit, t *Table, use parser.Usage) (string, Def, bool) {
	if use.Qualifier != "" {
		if files := u.moduleFiles(use.Qualifier); len(files) > 0 {
			for _, f := range files {
				if d, ok := t.lookup(f, use.Name); ok {
					return f, d, true
				}
			}
			return "", Def{}, false
		}
		if u.isReceiver(use.Qualifier) {
			if d, ok := t.lookup(u.Path, use.Name); ok {
				return u.Path, d, true
			}
		}
		return "", Def{}, false
	}
	if d, ok := t.lookup(u.Path, use.Name); ok {
		return u.Path, d, true
	}
	for i := len(u.Imports) - 1; i >= 0; i-- {
		f := u.Imports[i]
		if f == u.Path {
			continue
		}
		if d, ok := t.lookup(f, use.Name); ok {
			return f, d, true
		}
	}
	return "", Def{}, false
}

// innermost returns the smallest definition enclosing line.
func innermost(defs []Def, line int) (Def, bool) {
	var best Def
	found := false
	for _, d := range defs {
		if !d.encloses(line) {
			continue
		}
		if !found || d.EndLine-d.StartLine < best.EndLine-best.StartLine ||
			(d.EndLine-d.StartLine == best.EndLine-best.StartLine && d.StartLine > best.StartLine) {
			best, found = d, true
		}
	}
	return best, found
}
