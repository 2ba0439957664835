package lang

func init() {
	Register(&LanguageSpec{
		Language:            Go,
		FileExtensions:      []string{".go"},
		ResolveExtensions:   []string{".go"},
		PackageImports:      true,
		FunctionNodeTypes:   []string{"function_declaration"},
		MethodNodeTypes:     []string{"method_declaration"},
		ClassNodeTypes:      []string{"type_spec"},
		CallNodeTypes:       []string{"call_expression"},
		ImportNodeTypes:     []string{"import_declaration"},
		IdentifierNodeTypes: []string{"identifier", "type_identifier"},
		VariableNodeTypes:   []string{"var_declaration", "const_declaration"},
		AssignmentNodeTypes: []string{"assignment_statement"},
		ParameterNodeTypes:  []string{"parameter_list"},
		DocCommentPrefix:    "//",
	})
}
