package parser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/smellgraph/internal/lang"
)

func TestAllLanguagesLoad(t *testing.T) {
	for _, l := range lang.AllLanguages() {
		if !Supported(l) {
			t.Errorf("no grammar for %s", l)
		}
	}
}

func TestNodeText(t *testing.T) {
	source := []byte("package main\n\nfunc Hello() string {\n\treturn \"hello\"\n}\n")
	tree, err := parseTree(lang.Go, source)
	if err != nil {
		t.Fatalf("parseTree: %v", err)
	}
	defer tree.Close()

	var name string
	visit(tree.RootNode(), func(n *tree_sitter.Node) bool {
		if n.Kind() == "function_declaration" {
			name = nodeText(n.ChildByFieldName("name"), source)
			return false
		}
		return true
	})
	if name != "Hello" {
		t.Errorf("expected Hello, got %q", name)
	}
}

func parseFile(t *testing.T, path string, l lang.Language, src string) *Result {
	t.Helper()
	res, err := NewTreeSitter().Parse(context.Background(), path, []byte(src), l)
	if err != nil {
		t.Fatalf("Parse %s: %v", path, err)
	}
	return res
}

func findSymbol(res *Result, name string) *Symbol {
	for i := range res.Symbols {
		if res.Symbols[i].Name == name {
			return &res.Symbols[i]
		}
	}
	return nil
}

func hasUsage(res *Result, name, qualifier string, kind UsageKind) bool {
	for _, u := range res.Usages {
		if u.Name == name && u.Qualifier == qualifier && u.Kind == kind {
			return true
		}
	}
	return false
}

func TestPythonSymbols(t *testing.T) {
	src := `import os
from . import utils
from .models import User as U
from pkg.sub import thing

LIMIT = 10
_private = 1


def helper(a, b=2, *args, **kwargs):
    """Adds things.

    Longer text.
    """
    return a + b


class Service(Base):
    """A service."""

    def __init__(self, name):
        self.name = name

    def run(self, x: int) -> int:
        def inner():
            pass
        return helper(x, LIMIT)
`
	res := parseFile(t, "app/main.py", lang.Python, src)

	wantImports := []string{"os", ".utils", ".models", "pkg.sub"}
	if strings.Join(res.Imports, ",") != strings.Join(wantImports, ",") {
		t.Errorf("imports = %v, want %v", res.Imports, wantImports)
	}

	tests := []struct {
		name, kind, parent, scope string
		start, end, params        int
		exported                  bool
	}{
		{"LIMIT", KindVariable, "", ScopeModule, 6, 6, 0, true},
		{"_private", KindVariable, "", ScopeModule, 7, 7, 0, false},
		{"helper", KindFunction, "", ScopeModule, 10, 15, 4, true},
		{"Service", KindClass, "", ScopeModule, 18, 27, 0, true},
		{"__init__", KindMethod, "Service", ScopeClass, 21, 22, 1, false},
		{"run", KindMethod, "Service", ScopeClass, 24, 27, 1, false},
		{"inner", KindFunction, "", ScopeLocal, 25, 26, 0, false},
	}
	for _, tt := range tests {
		s := findSymbol(res, tt.name)
		if s == nil {
			t.Errorf("symbol %s not found", tt.name)
			continue
		}
		if s.Kind != tt.kind || s.Parent != tt.parent || s.Scope != tt.scope {
			t.Errorf("%s: kind/parent/scope = %s/%s/%s, want %s/%s/%s", tt.name, s.Kind, s.Parent, s.Scope, tt.kind, tt.parent, tt.scope)
		}
		if s.StartLine != tt.start || s.EndLine != tt.end {
			t.Errorf("%s: lines = %d-%d, want %d-%d", tt.name, s.StartLine, s.EndLine, tt.start, tt.end)
		}
		if s.ParamCount != tt.params {
			t.Errorf("%s: params = %d, want %d", tt.name, s.ParamCount, tt.params)
		}
		if s.Exported != tt.exported {
			t.Errorf("%s: exported = %v, want %v", tt.name, s.Exported, tt.exported)
		}
	}

	if s := findSymbol(res, "helper"); s != nil && s.Docstring != "Adds things.\n\nLonger text." {
		t.Errorf("helper docstring = %q", s.Docstring)
	}
	if s := findSymbol(res, "run"); s != nil && s.Signature != "(self, x: int) -> int" {
		t.Errorf("run signature = %q", s.Signature)
	}

	if !hasUsage(res, "helper", "", UsageCall) {
		t.Error("missing call usage of helper")
	}
	if !hasUsage(res, "LIMIT", "", UsageRead) {
		t.Error("missing read usage of LIMIT")
	}
	if !hasUsage(res, "Base", "", UsageRead) {
		t.Error("missing read usage of base class")
	}
	if !hasUsage(res, "name", "self", UsageAssign) {
		t.Error("missing assign usage of self.name")
	}
	if hasUsage(res, "a", "", UsageRead) == false {
		t.Error("parameter a should be read in the body")
	}
	for _, u := range res.Usages {
		if u.Name == "kwargs" && u.Kind != UsageDecl {
			t.Errorf("kwargs usage kind = %s, want decl", u.Kind)
		}
	}
}

func TestPythonQualifiedCall(t *testing.T) {
	res := parseFile(t, "main.py", lang.Python, "import utils\n\n\ndef main():\n    utils.helper()\n")
	if !hasUsage(res, "helper", "utils", UsageCall) {
		t.Errorf("usages = %+v, want helper call qualified by utils", res.Usages)
	}
}

func TestJavaScriptSymbols(t *testing.T) {
	src := `import { a } from './a';
const b = require('./b');
export { c } from "./c";

/** Formats a value. */
export function format(value, opts) {
  return a(value) + b.run(opts);
}

const add = (x, y) => x + y;
const square = x => x * x;
let counter = 0;

class Widget extends Base {
  render(props) {
    counter = add(1, 2);
    return new Panel(props);
  }
}

export default Widget;
`
	res := parseFile(t, "src/app.js", lang.JavaScript, src)

	wantImports := []string{"./a", "./b", "./c"}
	if strings.Join(res.Imports, ",") != strings.Join(wantImports, ",") {
		t.Errorf("imports = %v, want %v", res.Imports, wantImports)
	}

	format := findSymbol(res, "format")
	if format == nil || format.Kind != KindFunction || !format.Exported || format.ParamCount != 2 {
		t.Fatalf("format = %+v", format)
	}
	if format.Docstring != "Formats a value." {
		t.Errorf("format docstring = %q", format.Docstring)
	}
	if s := findSymbol(res, "add"); s == nil || s.Kind != KindFunction || s.ParamCount != 2 || s.Exported {
		t.Errorf("add = %+v", s)
	}
	if s := findSymbol(res, "square"); s == nil || s.ParamCount != 1 {
		t.Errorf("square = %+v", s)
	}
	if s := findSymbol(res, "counter"); s == nil || s.Kind != KindVariable {
		t.Errorf("counter = %+v", s)
	}
	if s := findSymbol(res, "Widget"); s == nil || s.Kind != KindClass || !s.Exported {
		t.Errorf("Widget = %+v", s)
	}
	if s := findSymbol(res, "render"); s == nil || s.Kind != KindMethod || s.Parent != "Widget" {
		t.Errorf("render = %+v", s)
	}
	if findSymbol(res, "b") != nil {
		t.Error("require binding should not become a Variable")
	}

	if !hasUsage(res, "a", "", UsageCall) || !hasUsage(res, "run", "b", UsageCall) {
		t.Error("missing calls in format")
	}
	if !hasUsage(res, "Panel", "", UsageCall) {
		t.Error("constructor call not recorded")
	}
	if !hasUsage(res, "counter", "", UsageAssign) {
		t.Error("assignment target not recorded as assign")
	}
	if hasUsage(res, "counter", "", UsageRead) {
		t.Error("assignment target recorded as read")
	}
}

func TestTSXComponent(t *testing.T) {
	src := `import React from 'react';

interface Props { title: string }

export const Card = (props: Props) => {
  return <Frame title={props.title}><Body /></Frame>;
};
`
	res := parseFile(t, "ui/card.tsx", lang.TSX, src)
	if s := findSymbol(res, "Props"); s == nil || s.Kind != KindInterface {
		t.Errorf("Props = %+v", s)
	}
	if s := findSymbol(res, "Card"); s == nil || s.Kind != KindFunction || !s.Exported {
		t.Errorf("Card = %+v", s)
	}
	if !hasUsage(res, "Frame", "", UsageCall) || !hasUsage(res, "Body", "", UsageCall) {
		t.Error("JSX components should be recorded as calls")
	}
	if !hasUsage(res, "Props", "", UsageRead) {
		t.Error("type annotation should be a read")
	}
}

func TestGoSymbols(t *testing.T) {
	src := `package store

import (
	"fmt"
	sq "example.com/sq"
)

// MaxRows caps results.
const MaxRows = 100

// Store persists nodes.
type Store struct {
	db *sq.DB
}

type Reader interface {
	Read() error
}

// New opens a store.
func New(path, mode string, retries int) (*Store, error) {
	return &Store{db: sq.Open(path)}, nil
}

func (s *Store) Close() error {
	fmt.Println(MaxRows)
	return s.db.Close()
}
`
	res := parseFile(t, "store/store.go", lang.Go, src)

	if strings.Join(res.Imports, ",") != "fmt,example.com/sq" {
		t.Errorf("imports = %v", res.Imports)
	}
	if s := findSymbol(res, "MaxRows"); s == nil || s.Kind != KindVariable || s.Docstring != "MaxRows caps results." {
		t.Errorf("MaxRows = %+v", s)
	}
	if s := findSymbol(res, "Store"); s == nil || s.Kind != KindClass || !s.Exported || s.Docstring != "Store persists nodes." {
		t.Errorf("Store = %+v", s)
	}
	if s := findSymbol(res, "Reader"); s == nil || s.Kind != KindInterface {
		t.Errorf("Reader = %+v", s)
	}
	if s := findSymbol(res, "New"); s == nil || s.ParamCount != 3 || s.Signature != "(path, mode string, retries int) (*Store, error)" {
		t.Errorf("New = %+v", s)
	}
	if s := findSymbol(res, "Close"); s == nil || s.Kind != KindMethod || s.Parent != "Store" || s.ParamCount != 0 {
		t.Errorf("Close = %+v", s)
	}
	if !hasUsage(res, "Println", "fmt", UsageCall) || !hasUsage(res, "MaxRows", "", UsageRead) {
		t.Error("missing usages in Close")
	}
	if hasUsage(res, "db", "", UsageRead) {
		t.Error("struct literal key recorded as read")
	}
	if strings.Join(res.Receivers, ",") != "s" {
		t.Errorf("receivers = %v, want [s]", res.Receivers)
	}
}

func TestJavaScriptThisQualifier(t *testing.T) {
	src := `class Cart {
  total() { return this.sum(); }
  sum() { return 0; }
}
`
	res := parseFile(t, "cart.js", lang.JavaScript, src)
	if !hasUsage(res, "sum", "this", UsageCall) {
		t.Errorf("usages = %+v, want sum call qualified by this", res.Usages)
	}
}

func TestStrictSyntaxError(t *testing.T) {
	res, err := NewTreeSitter().Parse(context.Background(), "bad.py", []byte("def broken(:\n    pass\n"), lang.Python)
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("err = %v, want ErrSyntax", err)
	}
	if res == nil || len(res.Symbols) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}

	lenient := &TreeSitter{Strict: false}
	if _, err := lenient.Parse(context.Background(), "bad.py", []byte("def broken(:\n    pass\n"), lang.Python); err != nil {
		t.Errorf("lenient parse: %v", err)
	}
}

func TestUnsupportedLanguage(t *testing.T) {
	res, err := NewTreeSitter().Parse(context.Background(), "a.rb", []byte("puts 1"), lang.Language("ruby"))
	if err == nil {
		t.Fatal("expected error for unsupported language")
	}
	if res == nil {
		t.Fatal("result must never be nil")
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTreeSitter().Parse(ctx, "a.py", []byte("x = 1\n"), lang.Python)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

var docstringTestCases = []struct {
	name     string
	language lang.Language
	source   string
	want     string
}{
	{"Python", lang.Python, "def f():\n\t\"\"\"Computes the result.\"\"\"\n\tpass\n", "Computes the result."},
	{"Python_multiline", lang.Python, "def f():\n\t\"\"\"Computes the result.\n\n\tMore details here.\n\t\"\"\"\n\tpass\n", "Computes the result.\n\nMore details here."},
	{"Python_comment", lang.Python, "# Computes the result.\nx = 1\n", "Computes the result."},
	{"Go", lang.Go, "package p\n\n// F computes the result.\n// It returns an int.\nfunc F() int { return 1 }\n", "F computes the result.\nIt returns an int."},
	{"JavaScript", lang.JavaScript, "/**\n * Computes the result.\n */\nfunction f() {}\n", "Computes the result."},
	{"TypeScript", lang.TypeScript, "/** Computes the result. */\nfunction f(): void {}\n", "Computes the result."},
	{"TSX_line", lang.TSX, "// Computes the result.\nfunction f(): void {}\n", "Computes the result."},
	{"Detached", lang.Go, "package p\n\n// Unrelated.\n\nfunc F() {}\n", ""},
}

func TestDocstrings(t *testing.T) {
	for _, tt := range docstringTestCases {
		t.Run(tt.name, func(t *testing.T) {
			res := parseFile(t, "f", tt.language, tt.source)
			if len(res.Symbols) == 0 {
				t.Fatal("no symbols extracted")
			}
			if got := res.Symbols[0].Docstring; got != tt.want {
				t.Errorf("docstring = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanPythonDocstring(t *testing.T) {
	tests := []struct{ in, want string }{
		{`"""One line."""`, "One line."},
		{`'''Single quotes.'''`, "Single quotes."},
		{`"plain"`, "plain"},
		{"\"\"\"First.\n    Indented.\n    \"\"\"", "First.\nIndented."},
	}
	for _, tt := range tests {
		if got := cleanPythonDocstring(tt.in); got != tt.want {
			t.Errorf("cleanPythonDocstring(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInvalidUTF8IsReplaced(t *testing.T) {
	src := "package p\n\n// F reads \xff\xfe bytes.\nfunc F() {}\n"
	res := parseFile(t, "p.go", lang.Go, src)
	s := findSymbol(res, "F")
	if s == nil {
		t.Fatal("F not extracted")
	}
	if !utf8.ValidString(s.Docstring) || s.Docstring != "F reads � bytes." {
		t.Errorf("docstring = %q", s.Docstring)
	}

	if got := validText("ok\xc3"); got != "ok�" {
		t.Errorf("validText = %q", got)
	}
}

func TestSignatureTruncatesOnRuneBoundary(t *testing.T) {
	name := strings.Repeat("é", 150) // two bytes each
	src := "def f(" + name + "):\n    pass\n"
	res := parseFile(t, "f.py", lang.Python, src)
	s := findSymbol(res, "f")
	if s == nil {
		t.Fatal("f not extracted")
	}
	if !utf8.ValidString(s.Signature) || !strings.HasSuffix(s.Signature, "...") {
		t.Errorf("signature = %q", s.Signature)
	}
	if len(s.Signature) > maxSignatureLen+len("...") {
		t.Errorf("signature length = %d", len(s.Signature))
	}
}
