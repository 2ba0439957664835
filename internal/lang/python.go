package lang

func init() {
	Register(&LanguageSpec{
		Language:            Python,
		FileExtensions:      []string{".py", ".pyi"},
		IndexFiles:          []string{"__init__"},
		ResolveExtensions:   []string{".py", ".pyi"},
		FunctionNodeTypes:   []string{"function_definition"},
		ClassNodeTypes:      []string{"class_definition"},
		ClassBodyTypes:      []string{"block"},
		CallNodeTypes:       []string{"call"},
		ImportNodeTypes:     []string{"import_statement", "import_from_statement"},
		IdentifierNodeTypes: []string{"identifier"},
		VariableNodeTypes:   []string{"assignment"},
		AssignmentNodeTypes: []string{"assignment", "augmented_assignment"},
		ParameterNodeTypes:  []string{"parameters", "lambda_parameters"},
		DocCommentPrefix:    "#",
	})
}
