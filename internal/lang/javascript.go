package lang

// jsResolveExtensions is shared by the JS-family languages: any of them may
// import a module written in another.
var jsResolveExtensions = []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"}

func init() {
	Register(&LanguageSpec{
		Language:          JavaScript,
		FileExtensions:    []string{".js", ".jsx", ".mjs", ".cjs"},
		IndexFiles:        []string{"index"},
		ResolveExtensions: jsResolveExtensions,
		FunctionNodeTypes: []string{
			"function_declaration",
			"generator_function_declaration",
		},
		MethodNodeTypes:     []string{"method_definition"},
		ClassNodeTypes:      []string{"class_declaration"},
		ClassBodyTypes:      []string{"class_body"},
		CallNodeTypes:       []string{"call_expression", "new_expression"},
		ImportNodeTypes:     []string{"import_statement", "export_statement"},
		IdentifierNodeTypes: []string{"identifier", "shorthand_property_identifier"},
		VariableNodeTypes:   []string{"lexical_declaration", "variable_declaration"},
		AssignmentNodeTypes: []string{"assignment_expression", "augmented_assignment_expression"},
		ParameterNodeTypes:  []string{"formal_parameters"},
		DocCommentPrefix:    "//",
	})
}
