package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/smellgraph/internal/lang"
)

// maxSignatureLen caps stored signatures; long parameter lists are
// truncated, the param count stays exact.
const maxSignatureLen = 200

// scope is the lexical context a node is visited in.
type scope struct {
	class    string // enclosing class name, set only for direct class members
	depth    int    // function nesting depth
	exported bool   // the node is the declaration of an export statement
	docRow   int    // row to scan doc comments above, -1 for the node's own row
}

func (c scope) module() bool { return c.depth == 0 && c.class == "" }

// body returns the scope used inside a function body.
func (c scope) body() scope {
	return scope{depth: c.depth + 1, docRow: -1}
}

// member returns the scope used inside a class body.
func (c scope) member(class string) scope {
	return scope{class: class, depth: c.depth, docRow: -1}
}

func (c scope) plain() scope {
	c.exported = false
	c.docRow = -1
	return c
}

// readFields are child fields whose identifiers are reads even inside a
// declaration (types, default values).
var readFields = map[string]bool{
	"type":        true,
	"value":       true,
	"default":     true,
	"right":       true,
	"return_type": true,
}

type extractor struct {
	spec    *lang.LanguageSpec
	src     []byte
	symbols []Symbol
	imports []string
	seen    map[string]bool
	usages  []Usage
	exports map[string]bool // names listed in export clauses

	receivers []string
}

func newExtractor(spec *lang.LanguageSpec, src []byte) *extractor {
	return &extractor{
		spec:    spec,
		src:     src,
		seen:    map[string]bool{},
		exports: map[string]bool{},
	}
}

func (x *extractor) run(root *tree_sitter.Node) {
	x.walkChildren(root, scope{docRow: -1})
}

func (x *extractor) result() *Result {
	for i := range x.symbols {
		s := &x.symbols[i]
		if s.Scope == ScopeModule && x.exports[s.Name] {
			s.Exported = true
		}
	}
	return &Result{Symbols: x.symbols, Imports: x.imports, Usages: x.usages, Receivers: x.receivers}
}

// walk visits n. Language handlers consume the constructs they know; any
// other identifier is a read.
func (x *extractor) walk(n *tree_sitter.Node, c scope) {
	if n == nil {
		return
	}
	var handled bool
	switch x.spec.Language {
	case lang.Python:
		handled = x.python(n, c)
	case lang.JavaScript, lang.TypeScript, lang.TSX:
		handled = x.javascript(n, c)
	case lang.Go:
		handled = x.golang(n, c)
	}
	if handled {
		return
	}
	if lang.Contains(x.spec.IdentifierNodeTypes, n.Kind()) {
		x.use(n, "", UsageRead)
		return
	}
	x.walkChildren(n, c.plain())
}

func (x *extractor) walkChildren(n *tree_sitter.Node, c scope) {
	for i := uint(0); i < n.ChildCount(); i++ {
		x.walk(n.Child(i), c)
	}
}

// walkFieldsExcept walks every child except those in the named fields.
func (x *extractor) walkFieldsExcept(n *tree_sitter.Node, c scope, skip ...string) {
	for i := uint(0); i < n.ChildCount(); i++ {
		field := n.FieldNameForChild(uint32(i))
		if field != "" && contains(skip, field) {
			continue
		}
		x.walk(n.Child(i), c)
	}
}

// walkBindings records identifiers in a declaration or assignment target as
// kind, walking type and default-value fields as reads.
func (x *extractor) walkBindings(n *tree_sitter.Node, c scope, kind UsageKind) {
	if n == nil {
		return
	}
	if lang.Contains(x.spec.IdentifierNodeTypes, n.Kind()) || n.Kind() == "shorthand_property_identifier_pattern" {
		x.use(n, "", kind)
		return
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if readFields[n.FieldNameForChild(uint32(i))] {
			x.walk(child, c)
			continue
		}
		x.walkBindings(child, c, kind)
	}
}

func (x *extractor) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return nodeText(n, x.src)
}

func (x *extractor) use(n *tree_sitter.Node, qualifier string, kind UsageKind) {
	name := x.text(n)
	if name == "" {
		return
	}
	x.usages = append(x.usages, Usage{
		Name:      name,
		Qualifier: qualifier,
		Line:      line(n.StartPosition().Row),
		Kind:      kind,
	})
}

// member records a member access: the name is the accessed property and the
// qualifier is the receiver text when it is a plain name.
func (x *extractor) member(object, property *tree_sitter.Node, c scope, kind UsageKind) {
	qualifier := ""
	if object != nil && (object.Kind() == "this" || lang.Contains(x.spec.IdentifierNodeTypes, object.Kind())) {
		qualifier = x.text(object)
	}
	x.use(property, qualifier, kind)
	x.walk(object, c.plain())
}

func (x *extractor) addImport(spec string) {
	spec = strings.TrimSpace(spec)
	if spec == "" || x.seen[spec] {
		return
	}
	x.seen[spec] = true
	x.imports = append(x.imports, spec)
}

// def describes a definition found by a language handler.
type def struct {
	node     *tree_sitter.Node // span of the definition
	name     *tree_sitter.Node
	kind     string
	params   *tree_sitter.Node
	result   *tree_sitter.Node
	parent   string
	exported bool
	skipSelf bool // first parameter is a self/cls receiver
}

func (x *extractor) define(d def, c scope) {
	name := x.text(d.name)
	if name == "" {
		return
	}
	sym := Symbol{
		Name:      name,
		Kind:      d.kind,
		StartLine: line(d.node.StartPosition().Row),
		EndLine:   line(d.node.EndPosition().Row),
		Parent:    d.parent,
		Exported:  d.exported,
	}
	switch {
	case d.kind == KindMethod:
		sym.Scope = ScopeClass
	case c.depth > 0:
		sym.Scope = ScopeLocal
	default:
		sym.Scope = ScopeModule
	}
	if sym.Scope != ScopeModule && d.kind != KindMethod {
		sym.Exported = false
	}
	if d.params != nil {
		sym.ParamCount = x.countParams(d.params, d.skipSelf)
		sym.Signature = x.signature(d.params, d.result)
	}
	docRow := int(d.node.StartPosition().Row)
	if c.docRow >= 0 {
		docRow = c.docRow
	}
	sym.Docstring = validText(x.docstring(d.node, docRow, d.kind))
	x.symbols = append(x.symbols, sym)
	x.use(d.name, "", UsageDecl)
}

// nonParams are parameter-list children that are not parameters.
var nonParams = map[string]bool{
	"comment":             true,
	"positional_separator": true,
	"keyword_separator":    true,
}

func (x *extractor) countParams(params *tree_sitter.Node, skipSelf bool) int {
	if lang.Contains(x.spec.IdentifierNodeTypes, params.Kind()) {
		return 1 // single-identifier arrow function parameter
	}
	count := 0
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if nonParams[p.Kind()] {
			continue
		}
		if i == 0 && skipSelf && p.Kind() == "identifier" {
			if t := x.text(p); t == "self" || t == "cls" {
				continue
			}
		}
		if p.Kind() == "parameter_declaration" {
			// Go groups names sharing a type: (a, b int).
			names := 0
			for j := uint(0); j < p.ChildCount(); j++ {
				if p.FieldNameForChild(uint32(j)) == "name" {
					names++
				}
			}
			if names > 1 {
				count += names
				continue
			}
		}
		count++
	}
	return count
}

func (x *extractor) signature(params, result *tree_sitter.Node) string {
	sig := x.text(params)
	if result != nil {
		switch x.spec.Language {
		case lang.Python:
			sig += " -> " + x.text(result)
		case lang.Go:
			sig += " " + x.text(result)
		default:
			sig += x.text(result) // type_annotation carries its colon
		}
	}
	sig = validText(strings.Join(strings.Fields(sig), " "))
	if len(sig) > maxSignatureLen {
		cut := maxSignatureLen
		for cut > 0 && !utf8.RuneStart(sig[cut]) {
			cut--
		}
		sig = sig[:cut] + "..."
	}
	return sig
}

// validText replaces invalid UTF-8 so stored text reads back unchanged.
func validText(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func isUpper(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// unquote strips the quotes around a string literal node's text.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		switch s[0] {
		case '"', '\'', '`':
			if s[len(s)-1] == s[0] {
				return s[1 : len(s)-1]
			}
		}
	}
	return s
}
