package lang

func init() {
	Register(&LanguageSpec{
		Language:          TypeScript,
		FileExtensions:    []string{".ts", ".mts", ".cts"},
		IndexFiles:        []string{"index"},
		ResolveExtensions: []string{".ts", ".tsx", ".d.ts", ".js", ".jsx"},
		FunctionNodeTypes: []string{
			"function_declaration",
			"generator_function_declaration",
		},
		MethodNodeTypes:     []string{"method_definition"},
		ClassNodeTypes:      []string{"class_declaration", "abstract_class_declaration"},
		InterfaceNodeTypes:  []string{"interface_declaration"},
		ClassBodyTypes:      []string{"class_body"},
		CallNodeTypes:       []string{"call_expression", "new_expression"},
		ImportNodeTypes:     []string{"import_statement", "export_statement"},
		IdentifierNodeTypes: []string{"identifier", "shorthand_property_identifier", "type_identifier"},
		VariableNodeTypes:   []string{"lexical_declaration", "variable_declaration"},
		AssignmentNodeTypes: []string{"assignment_expression", "augmented_assignment_expression"},
		ParameterNodeTypes:  []string{"formal_parameters"},
		DocCommentPrefix:    "//",
	})
}
