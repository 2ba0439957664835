package parser

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

func (x *extractor) golang(n *tree_sitter.Node, c scope) bool {
	switch n.Kind() {
	case "function_declaration":
		name := n.ChildByFieldName("name")
		x.define(def{
			node:     n,
			name:     name,
			kind:     KindFunction,
			params:   n.ChildByFieldName("parameters"),
			result:   n.ChildByFieldName("result"),
			exported: isUpper(x.text(name)),
		}, c)
		x.walk(n.ChildByFieldName("type_parameters"), c.plain())
		x.goFunctionBody(n, c)
		return true

	case "method_declaration":
		name := n.ChildByFieldName("name")
		receiver := n.ChildByFieldName("receiver")
		x.define(def{
			node:     n,
			name:     name,
			kind:     KindMethod,
			params:   n.ChildByFieldName("parameters"),
			result:   n.ChildByFieldName("result"),
			parent:   x.receiverType(receiver),
			exported: isUpper(x.text(name)),
		}, c)
		x.addReceiver(receiver)
		x.walkBindings(receiver, c.plain(), UsageDecl)
		x.goFunctionBody(n, c)
		return true

	case "func_literal":
		x.goFunctionBody(n, c)
		return true

	case "type_declaration":
		single := n.NamedChildCount() == 1
		for i := uint(0); i < n.NamedChildCount(); i++ {
			spec := n.NamedChild(i)
			if spec.Kind() != "type_spec" && spec.Kind() != "type_alias" {
				continue
			}
			sc := c
			if single {
				sc.docRow = int(n.StartPosition().Row)
			}
			x.goTypeSpec(spec, sc)
		}
		return true

	case "var_declaration", "const_declaration":
		x.goValueDecl(n, n.NamedChildCount() == 1, c)
		return true

	case "import_declaration":
		visit(n, func(child *tree_sitter.Node) bool {
			if child.Kind() == "import_spec" {
				x.addImport(unquote(x.text(child.ChildByFieldName("path"))))
				return false
			}
			return true
		})
		return true

	case "package_clause", "label_name", "field_identifier", "package_identifier":
		return true

	case "call_expression":
		fn := n.ChildByFieldName("function")
		switch fn.Kind() {
		case "identifier":
			x.use(fn, "", UsageCall)
		case "selector_expression":
			x.member(fn.ChildByFieldName("operand"), fn.ChildByFieldName("field"), c, UsageCall)
		default:
			x.walk(fn, c.plain())
		}
		x.walk(n.ChildByFieldName("type_arguments"), c.plain())
		x.walk(n.ChildByFieldName("arguments"), c.plain())
		return true

	case "selector_expression":
		x.member(n.ChildByFieldName("operand"), n.ChildByFieldName("field"), c, UsageRead)
		return true

	case "qualified_type":
		x.use(n.ChildByFieldName("name"), x.text(n.ChildByFieldName("package")), UsageRead)
		return true

	case "short_var_declaration":
		x.goTargets(n.ChildByFieldName("left"), c, UsageDecl)
		x.walk(n.ChildByFieldName("right"), c.plain())
		return true

	case "assignment_statement":
		x.goTargets(n.ChildByFieldName("left"), c, UsageAssign)
		x.walk(n.ChildByFieldName("right"), c.plain())
		return true

	case "range_clause":
		x.goTargets(n.ChildByFieldName("left"), c, UsageAssign)
		x.walk(n.ChildByFieldName("right"), c.plain())
		return true

	case "keyed_element":
		// Struct literal keys name fields, not variables.
		if n.NamedChildCount() == 2 {
			key := n.NamedChild(0)
			if key.Kind() == "literal_element" && key.NamedChildCount() == 1 && key.NamedChild(0).Kind() == "identifier" {
				x.walk(n.NamedChild(1), c.plain())
				return true
			}
		}
		return false
	}
	return false
}

func (x *extractor) goFunctionBody(n *tree_sitter.Node, c scope) {
	x.walkBindings(n.ChildByFieldName("parameters"), c.plain(), UsageDecl)
	x.walk(n.ChildByFieldName("result"), c.plain())
	x.walk(n.ChildByFieldName("body"), c.body())
}

// addReceiver records the variable name of a method receiver: (s *Store)
// records "s".
func (x *extractor) addReceiver(receiver *tree_sitter.Node) {
	if receiver == nil {
		return
	}
	for i := uint(0); i < receiver.NamedChildCount(); i++ {
		param := receiver.NamedChild(i)
		if param.Kind() != "parameter_declaration" {
			continue
		}
		name := x.text(param.ChildByFieldName("name"))
		if name == "" || name == "_" {
			continue
		}
		for _, r := range x.receivers {
			if r == name {
				return
			}
		}
		x.receivers = append(x.receivers, name)
	}
}

// receiverType returns the type name of a method receiver, without pointer
// or type parameters: (s *Store[T]) gives "Store".
func (x *extractor) receiverType(receiver *tree_sitter.Node) string {
	if receiver == nil {
		return ""
	}
	var name string
	visit(receiver, func(n *tree_sitter.Node) bool {
		if name != "" {
			return false
		}
		if n.Kind() == "type_identifier" {
			name = x.text(n)
			return false
		}
		return true
	})
	return name
}

func (x *extractor) goTypeSpec(spec *tree_sitter.Node, c scope) {
	name := spec.ChildByFieldName("name")
	typ := spec.ChildByFieldName("type")
	kind := ""
	if typ != nil {
		switch typ.Kind() {
		case "struct_type":
			kind = KindClass
		case "interface_type":
			kind = KindInterface
		}
	}
	if kind != "" {
		x.define(def{node: spec, name: name, kind: kind, exported: isUpper(x.text(name))}, c)
	} else {
		x.use(name, "", UsageDecl)
	}
	x.walk(spec.ChildByFieldName("type_parameters"), c.plain())
	x.walk(typ, c.plain())
}

// goValueDecl handles var and const declarations, which may be grouped.
// Module-level names become Variables.
func (x *extractor) goValueDecl(n *tree_sitter.Node, single bool, c scope) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		spec := n.NamedChild(i)
		switch spec.Kind() {
		case "var_spec", "const_spec":
		case "var_spec_list", "const_spec_list":
			x.goValueDecl(spec, false, c)
			continue
		default:
			continue
		}
		sc := c
		if single {
			sc.docRow = int(n.StartPosition().Row)
		}
		for j := uint(0); j < spec.ChildCount(); j++ {
			child := spec.Child(j)
			if spec.FieldNameForChild(uint32(j)) != "name" {
				continue
			}
			if c.module() && x.text(child) != "_" {
				x.define(def{node: spec, name: child, kind: KindVariable, exported: isUpper(x.text(child))}, sc)
			} else {
				x.use(child, "", UsageDecl)
			}
		}
		x.walk(spec.ChildByFieldName("type"), c.plain())
		x.walk(spec.ChildByFieldName("value"), c.plain())
	}
}

func (x *extractor) goTargets(list *tree_sitter.Node, c scope, kind UsageKind) {
	if list == nil {
		return
	}
	targets := []*tree_sitter.Node{list}
	if list.Kind() == "expression_list" {
		targets = targets[:0]
		for i := uint(0); i < list.NamedChildCount(); i++ {
			targets = append(targets, list.NamedChild(i))
		}
	}
	for _, t := range targets {
		switch t.Kind() {
		case "identifier":
			x.use(t, "", kind)
		case "selector_expression":
			x.member(t.ChildByFieldName("operand"), t.ChildByFieldName("field"), c, UsageAssign)
		default:
			x.walk(t, c.plain())
		}
	}
}
