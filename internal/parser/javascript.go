package parser

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// functionValues are expressions that define a function when bound to a name.
var functionValues = map[string]bool{
	"arrow_function":               true,
	"function_expression":          true,
	"function":                     true,
	"generator_function":           true,
	"generator_function_expression": true,
}

// javascript handles JavaScript, TypeScript and TSX; the grammars share node
// kinds for everything extracted here.
func (x *extractor) javascript(n *tree_sitter.Node, c scope) bool {
	switch n.Kind() {
	case "function_declaration", "generator_function_declaration":
		x.define(def{
			node:     n,
			name:     n.ChildByFieldName("name"),
			kind:     KindFunction,
			params:   n.ChildByFieldName("parameters"),
			result:   n.ChildByFieldName("return_type"),
			exported: c.exported,
		}, c)
		x.jsFunctionBody(n, c)
		return true

	case "class_declaration", "abstract_class_declaration", "class":
		name := n.ChildByFieldName("name")
		if name != nil {
			x.define(def{node: n, name: name, kind: KindClass, exported: c.exported}, c)
		}
		x.walkFieldsExcept(n, c.plain(), "name", "body")
		x.walkChildrenOf(n.ChildByFieldName("body"), c.member(x.text(name)))
		return true

	case "method_definition":
		if c.class == "" {
			x.jsFunctionBody(n, c)
			return true
		}
		x.define(def{
			node:   n,
			name:   n.ChildByFieldName("name"),
			kind:   KindMethod,
			params: n.ChildByFieldName("parameters"),
			result: n.ChildByFieldName("return_type"),
			parent: c.class,
		}, c)
		x.jsFunctionBody(n, c)
		return true

	case "interface_declaration":
		x.define(def{node: n, name: n.ChildByFieldName("name"), kind: KindInterface, exported: c.exported}, c)
		x.walkFieldsExcept(n, c.body(), "name")
		return true

	case "type_alias_declaration", "enum_declaration":
		x.use(n.ChildByFieldName("name"), "", UsageDecl)
		x.walkFieldsExcept(n, c.plain(), "name")
		return true

	case "lexical_declaration", "variable_declaration":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			child := n.NamedChild(i)
			if child.Kind() == "variable_declarator" {
				x.jsDeclarator(n, child, c)
			}
		}
		return true

	case "export_statement":
		x.jsExport(n, c)
		return true

	case "import_statement":
		if src := n.ChildByFieldName("source"); src != nil {
			x.addImport(unquote(x.text(src)))
		}
		return true

	case "call_expression":
		fn := n.ChildByFieldName("function")
		args := n.ChildByFieldName("arguments")
		if spec, ok := x.jsRequire(fn, args); ok {
			x.addImport(spec)
			return true
		}
		x.jsCallee(fn, c)
		x.walk(args, c.plain())
		return true

	case "new_expression":
		x.jsCallee(n.ChildByFieldName("constructor"), c)
		x.walk(n.ChildByFieldName("arguments"), c.plain())
		return true

	case "member_expression":
		x.member(n.ChildByFieldName("object"), n.ChildByFieldName("property"), c, UsageRead)
		return true

	case "assignment_expression", "augmented_assignment_expression":
		x.jsTarget(n.ChildByFieldName("left"), c, UsageAssign)
		x.walk(n.ChildByFieldName("right"), c.plain())
		return true

	case "arrow_function", "function_expression", "function", "generator_function", "generator_function_expression":
		x.jsFunctionBody(n, c)
		return true

	case "catch_clause":
		x.walkBindings(n.ChildByFieldName("parameter"), c.plain(), UsageDecl)
		x.walk(n.ChildByFieldName("body"), c.plain())
		return true

	case "for_in_statement":
		x.jsTarget(n.ChildByFieldName("left"), c, UsageAssign)
		x.walkFieldsExcept(n, c.plain(), "left")
		return true

	case "jsx_opening_element", "jsx_self_closing_element":
		name := n.ChildByFieldName("name")
		if name != nil && name.Kind() == "identifier" && isUpper(x.text(name)) {
			x.use(name, "", UsageCall)
		} else if name != nil && name.Kind() == "member_expression" {
			x.member(name.ChildByFieldName("object"), name.ChildByFieldName("property"), c, UsageCall)
		}
		x.walkFieldsExcept(n, c.plain(), "name")
		return true

	case "jsx_closing_element", "property_identifier", "statement_identifier":
		return true
	}
	return false
}

func (x *extractor) jsFunctionBody(n *tree_sitter.Node, c scope) {
	params := n.ChildByFieldName("parameters")
	if params == nil {
		params = n.ChildByFieldName("parameter")
	}
	x.walkBindings(params, c.plain(), UsageDecl)
	x.walk(n.ChildByFieldName("return_type"), c.plain())
	x.walk(n.ChildByFieldName("body"), c.body())
}

// jsDeclarator handles one `name = value` binding. A function value defines
// a Function; any other value at module level defines a Variable.
func (x *extractor) jsDeclarator(decl, d *tree_sitter.Node, c scope) {
	name := d.ChildByFieldName("name")
	value := d.ChildByFieldName("value")
	x.walk(d.ChildByFieldName("type"), c.plain())

	if name == nil || name.Kind() != "identifier" {
		x.jsTarget(name, c, UsageDecl)
		x.walk(value, c.plain())
		return
	}

	if value != nil && functionValues[value.Kind()] {
		params := value.ChildByFieldName("parameters")
		if params == nil {
			params = value.ChildByFieldName("parameter")
		}
		x.define(def{
			node:     decl,
			name:     name,
			kind:     KindFunction,
			params:   params,
			result:   value.ChildByFieldName("return_type"),
			exported: c.exported,
		}, c)
		x.jsFunctionBody(value, c)
		return
	}

	if spec, ok := x.jsRequireValue(value); ok {
		x.addImport(spec)
		x.use(name, "", UsageDecl)
		return
	}
	if c.module() {
		x.define(def{node: decl, name: name, kind: KindVariable, exported: c.exported}, c)
	} else {
		x.use(name, "", UsageDecl)
	}
	x.walk(value, c.plain())
}

func (x *extractor) jsExport(n *tree_sitter.Node, c scope) {
	source := n.ChildByFieldName("source")
	if source != nil {
		// export { a } from './m' and export * from './m'
		x.addImport(unquote(x.text(source)))
		return
	}
	exported := c
	exported.exported = true
	exported.docRow = int(n.StartPosition().Row)
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		switch child.Kind() {
		case "export_clause":
			for j := uint(0); j < child.NamedChildCount(); j++ {
				spec := child.NamedChild(j)
				if spec.Kind() != "export_specifier" {
					continue
				}
				local := spec.ChildByFieldName("name")
				x.exports[x.text(local)] = true
				x.use(local, "", UsageRead)
			}
		case "identifier":
			// export default name
			x.exports[x.text(child)] = true
			x.use(child, "", UsageRead)
		case "comment", "decorator":
		default:
			x.walk(child, exported)
		}
	}
}

func (x *extractor) jsCallee(fn *tree_sitter.Node, c scope) {
	if fn == nil {
		return
	}
	switch fn.Kind() {
	case "identifier":
		x.use(fn, "", UsageCall)
	case "member_expression":
		x.member(fn.ChildByFieldName("object"), fn.ChildByFieldName("property"), c, UsageCall)
	default:
		x.walk(fn, c.plain())
	}
}

// jsRequire recognizes require("m") and import("m").
func (x *extractor) jsRequire(fn, args *tree_sitter.Node) (string, bool) {
	if fn == nil || args == nil {
		return "", false
	}
	if fn.Kind() != "import" && !(fn.Kind() == "identifier" && x.text(fn) == "require") {
		return "", false
	}
	if args.NamedChildCount() != 1 {
		return "", false
	}
	arg := args.NamedChild(0)
	if arg.Kind() != "string" {
		return "", false
	}
	return unquote(x.text(arg)), true
}

func (x *extractor) jsRequireValue(value *tree_sitter.Node) (string, bool) {
	if value == nil || value.Kind() != "call_expression" {
		return "", false
	}
	return x.jsRequire(value.ChildByFieldName("function"), value.ChildByFieldName("arguments"))
}

// jsTarget records names bound by a declaration or assignment pattern.
func (x *extractor) jsTarget(n *tree_sitter.Node, c scope, kind UsageKind) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		x.use(n, "", kind)
	case "member_expression":
		x.member(n.ChildByFieldName("object"), n.ChildByFieldName("property"), c, UsageAssign)
	case "subscript_expression":
		x.walk(n, c.plain())
	default:
		x.walkBindings(n, c.plain(), kind)
	}
}
