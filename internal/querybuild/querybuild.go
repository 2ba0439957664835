// Package querybuild turns parsed files into MERGE statements for the graph
// store. Every user-derived string is embedded through Quote and every number
// as an integer literal, so entity data can never change statement structure.
package querybuild

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/DeusData/smellgraph/internal/fqn"
	"github.com/DeusData/smellgraph/internal/parser"
)

// Relationship types.
const (
	RelImports    = "IMPORTS"
	RelDefinedIn  = "DEFINED_IN"
	RelContains   = "CONTAINS"
	RelCalls      = "CALLS"
	RelReferences = "REFERENCES"
	RelExports    = "EXPORTS"
)

var kindLabels = map[string]string{
	parser.KindFunction:  "Function",
	parser.KindClass:     "Class",
	parser.KindMethod:    "Method",
	parser.KindVariable:  "Variable",
	parser.KindInterface: "Interface",
}

// Label returns the node label for a symbol kind.
func Label(kind string) (string, bool) {
	l, ok := kindLabels[kind]
	return l, ok
}

// Quote returns s as a double-quoted query string literal.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func itoa(n int) string { return strconv.Itoa(n) }

// Ref identifies a node a statement matches on.
type Ref interface {
	pattern(variable string) string
}

// FileRef refers to a File node.
type FileRef struct {
	Path string
}

func (r FileRef) pattern(v string) string {
	return "(" + v + ":File {path: " + Quote(r.Path) + "})"
}

// SymbolRef refers to a symbol node by its identity.
type SymbolRef struct {
	Label     string
	FilePath  string
	Name      string
	StartLine int
}

func (r SymbolRef) pattern(v string) string {
	return "(" + v + ":" + r.Label + " {file_path: " + Quote(r.FilePath) +
		", name: " + Quote(r.Name) + ", start_line: " + itoa(r.StartLine) + "})"
}

// RefFor returns the reference of a symbol parsed from path. The symbol must
// have passed validation.
func RefFor(path string, sym parser.Symbol) SymbolRef {
	label, _ := Label(sym.Kind)
	return SymbolRef{Label: label, FilePath: path, Name: sym.Name, StartLine: sym.StartLine}
}

// File describes one source file.
type File struct {
	Path     string
	Language string
	Size     int64
}

// Warning reports a symbol that was skipped.
type Warning struct {
	Path   string
	Index  int // position in the parser's symbol list
	Name   string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: symbol #%d %q skipped: %s", w.Path, w.Index, w.Name, w.Reason)
}

// Fragment holds the statements describing one file and what it defines.
type Fragment struct {
	Path       string
	Statements []string
	Symbols    []SymbolRef // valid symbols, in parser order
	Warnings   []Warning
}

// FileStatement upserts a File node.
func FileStatement(f File) string {
	return "MERGE (f:File {path: " + Quote(f.Path) + "}) SET f.language = " + Quote(f.Language) +
		", f.size = " + strconv.FormatInt(f.Size, 10) + ", f.module = " + Quote(fqn.Module(f.Path))
}

// Validate reports why a symbol cannot be written, or "" if it can.
func Validate(sym parser.Symbol) string {
	switch {
	case strings.TrimSpace(sym.Name) == "":
		return "empty name"
	case sym.Kind == "":
		return "empty kind"
	case kindLabels[sym.Kind] == "":
		return fmt.Sprintf("unknown kind %q", sym.Kind)
	case sym.StartLine <= 0:
		return "missing start line"
	}
	return ""
}

// SymbolStatement upserts a symbol together with its DEFINED_IN edge, and its
// EXPORTS edge when exported, in one statement.
func SymbolStatement(path string, sym parser.Symbol) string {
	ref := RefFor(path, sym)
	end := sym.EndLine
	if end < sym.StartLine {
		end = sym.StartLine
	}

	var b strings.Builder
	b.WriteString("MATCH ")
	b.WriteString(FileRef{Path: path}.pattern("f"))
	b.WriteString(" MERGE ")
	b.WriteString(ref.pattern("s"))
	b.WriteString(" SET s.kind = ")
	b.WriteString(Quote(sym.Kind))
	b.WriteString(", s.end_line = " + itoa(end))
	b.WriteString(", s.line_count = " + itoa(end-sym.StartLine+1))
	b.WriteString(", s.param_count = " + itoa(sym.ParamCount))
	b.WriteString(", s.exported = " + strconv.FormatBool(sym.Exported))
	b.WriteString(", s.fqn = " + Quote(fqn.Symbol(path, sym.Parent, sym.Name)))
	optional := []struct{ key, val string }{
		{"scope", sym.Scope},
		{"parent", sym.Parent},
		{"signature", sym.Signature},
		{"docstring", sym.Docstring},
	}
	for _, p := range optional {
		if p.val != "" {
			b.WriteString(", s." + p.key + " = " + Quote(p.val))
		}
	}
	b.WriteString(" MERGE (s)-[:" + RelDefinedIn + "]->(f)")
	if sym.Exported {
		b.WriteString(" MERGE (f)-[:" + RelExports + "]->(s)")
	}
	return b.String()
}

// Edge upserts a relationship between two existing nodes. When either node
// is missing the statement writes nothing.
func Edge(relType string, from, to Ref) string {
	return "MATCH " + from.pattern("a") + ", " + to.pattern("b") + " MERGE (a)-[:" + relType + "]->(b)"
}

// Build produces the fragment for one parsed file: the File node, each
// valid symbol with its ownership edges, and CONTAINS edges from classes to
// their methods. Malformed symbols are skipped with a warning.
func Build(f File, symbols []parser.Symbol) Fragment {
	frag := Fragment{Path: f.Path, Statements: []string{FileStatement(f)}}

	var valid []parser.Symbol
	for i, sym := range symbols {
		if reason := Validate(sym); reason != "" {
			frag.Warnings = append(frag.Warnings, Warning{Path: f.Path, Index: i, Name: sym.Name, Reason: reason})
			continue
		}
		valid = append(valid, sym)
		frag.Statements = append(frag.Statements, SymbolStatement(f.Path, sym))
		frag.Symbols = append(frag.Symbols, RefFor(f.Path, sym))
	}

	for _, m := range valid {
		if m.Kind != parser.KindMethod || m.Parent == "" {
			continue
		}
		if owner, ok := ownerClass(valid, m); ok {
			frag.Statements = append(frag.Statements, Edge(RelContains, RefFor(f.Path, owner), RefFor(f.Path, m)))
		}
	}
	return frag
}

// ownerClass finds the class a method belongs to: the innermost class named
// Parent that encloses it, else any class of that name in the file (Go
// methods are declared outside the type).
func ownerClass(symbols []parser.Symbol, method parser.Symbol) (parser.Symbol, bool) {
	var best, named parser.Symbol
	var haveBest, haveNamed bool
	for _, s := range symbols {
		if s.Kind != parser.KindClass || s.Name != method.Parent {
			continue
		}
		if !haveNamed {
			named, haveNamed = s, true
		}
		if s.StartLine <= method.StartLine && method.EndLine <= s.EndLine {
			if !haveBest || s.StartLine > best.StartLine {
				best, haveBest = s, true
			}
		}
	}
	if haveBest {
		return best, true
	}
	return named, haveNamed
}
