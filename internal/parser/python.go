package parser

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

func (x *extractor) python(n *tree_sitter.Node, c scope) bool {
	switch n.Kind() {
	case "function_definition":
		name := n.ChildByFieldName("name")
		d := def{node: n, name: name, kind: KindFunction, params: n.ChildByFieldName("parameters"), result: n.ChildByFieldName("return_type")}
		if c.class != "" {
			d.kind, d.parent, d.skipSelf = KindMethod, c.class, true
		}
		d.exported = c.module() && !strings.HasPrefix(x.text(name), "_")
		x.define(d, c)
		x.walkBindings(d.params, c.plain(), UsageDecl)
		x.walk(d.result, c.plain())
		x.walk(n.ChildByFieldName("body"), c.body())
		return true

	case "class_definition":
		name := n.ChildByFieldName("name")
		x.define(def{node: n, name: name, kind: KindClass, exported: c.module() && !strings.HasPrefix(x.text(name), "_")}, c)
		x.walk(n.ChildByFieldName("superclasses"), c.plain())
		x.walkChildrenOf(n.ChildByFieldName("body"), c.member(x.text(name)))
		return true

	case "import_statement":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			child := n.NamedChild(i)
			switch child.Kind() {
			case "dotted_name":
				x.addImport(x.text(child))
			case "aliased_import":
				x.addImport(x.text(child.ChildByFieldName("name")))
			}
		}
		return true

	case "import_from_statement":
		module := n.ChildByFieldName("module_name")
		spec := x.text(module)
		if strings.Trim(spec, ".") == "" {
			// from . import a, b: each name is a sibling module.
			for i := uint(0); i < n.ChildCount(); i++ {
				if n.FieldNameForChild(uint32(i)) != "name" {
					continue
				}
				child := n.Child(i)
				if child.Kind() == "aliased_import" {
					child = child.ChildByFieldName("name")
				}
				x.addImport(spec + x.text(child))
			}
			return true
		}
		x.addImport(spec)
		return true

	case "future_import_statement", "global_statement", "nonlocal_statement":
		return true

	case "call":
		fn := n.ChildByFieldName("function")
		switch fn.Kind() {
		case "identifier":
			x.use(fn, "", UsageCall)
		case "attribute":
			x.member(fn.ChildByFieldName("object"), fn.ChildByFieldName("attribute"), c, UsageCall)
		default:
			x.walk(fn, c.plain())
		}
		x.walk(n.ChildByFieldName("arguments"), c.plain())
		return true

	case "attribute":
		x.member(n.ChildByFieldName("object"), n.ChildByFieldName("attribute"), c, UsageRead)
		return true

	case "keyword_argument":
		x.walk(n.ChildByFieldName("value"), c.plain())
		return true

	case "expression_statement":
		if c.module() && n.NamedChildCount() == 1 && n.NamedChild(0).Kind() == "assignment" {
			x.pythonModuleAssignment(n, n.NamedChild(0), c)
			return true
		}
		return false

	case "assignment", "augmented_assignment":
		x.pythonTarget(n.ChildByFieldName("left"), c)
		x.walk(n.ChildByFieldName("type"), c.plain())
		x.walk(n.ChildByFieldName("right"), c.plain())
		return true

	case "for_statement", "for_in_clause":
		x.pythonTarget(n.ChildByFieldName("left"), c)
		x.walkFieldsExcept(n, c.plain(), "left")
		return true

	case "named_expression":
		x.use(n.ChildByFieldName("name"), "", UsageAssign)
		x.walk(n.ChildByFieldName("value"), c.plain())
		return true

	case "lambda":
		x.walkBindings(n.ChildByFieldName("parameters"), c.plain(), UsageDecl)
		x.walk(n.ChildByFieldName("body"), c.plain())
		return true
	}
	return false
}

// pythonModuleAssignment turns `NAME = value` at module level into a
// Variable symbol.
func (x *extractor) pythonModuleAssignment(stmt, assign *tree_sitter.Node, c scope) {
	left := assign.ChildByFieldName("left")
	if left != nil && left.Kind() == "identifier" {
		name := x.text(left)
		x.define(def{node: stmt, name: left, kind: KindVariable, exported: !strings.HasPrefix(name, "_")}, c)
	} else {
		x.pythonTarget(left, c)
	}
	x.walk(assign.ChildByFieldName("type"), c.plain())
	x.walk(assign.ChildByFieldName("right"), c.plain())
}

// pythonTarget records the names bound by an assignment target.
func (x *extractor) pythonTarget(n *tree_sitter.Node, c scope) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "identifier":
		x.use(n, "", UsageAssign)
	case "attribute":
		x.member(n.ChildByFieldName("object"), n.ChildByFieldName("attribute"), c, UsageAssign)
	case "subscript":
		x.walk(n, c.plain())
	default:
		for i := uint(0); i < n.NamedChildCount(); i++ {
			x.pythonTarget(n.NamedChild(i), c)
		}
	}
}

func (x *extractor) walkChildrenOf(n *tree_sitter.Node, c scope) {
	if n != nil {
		x.walkChildren(n, c)
	}
}
