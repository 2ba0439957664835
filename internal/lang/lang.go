package lang

import (
	"sort"
	"strings"
)

// Language represents a supported programming language.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
	Go         Language = "go"
)

// AllLanguages returns all supported languages.
func AllLanguages() []Language {
	return []Language{Python, JavaScript, TypeScript, TSX, Go}
}

// LanguageSpec defines the tree-sitter node types and module conventions for a language.
type LanguageSpec struct {
	Language       Language
	FileExtensions []string
	// IndexFiles are basenames (without extension) that make a directory importable,
	// e.g. "__init__" for Python packages or "index" for JS modules.
	IndexFiles []string
	// ResolveExtensions are the extensions tried when an import specifier has none,
	// in precedence order. Languages that share a module system list each other's
	// extensions here (a .ts file may import a .js file).
	ResolveExtensions []string
	// PackageImports marks languages whose imports name a directory, not a file.
	PackageImports bool

	FunctionNodeTypes  []string
	MethodNodeTypes    []string
	ClassNodeTypes     []string
	InterfaceNodeTypes []string
	ClassBodyTypes     []string
	CallNodeTypes      []string
	ImportNodeTypes    []string
	// IdentifierNodeTypes lists node kinds that carry a plain name usage.
	IdentifierNodeTypes []string
	// VariableNodeTypes lists module-level variable declaration node kinds.
	VariableNodeTypes []string
	// AssignmentNodeTypes lists assignment expression/statement node kinds.
	AssignmentNodeTypes []string
	// ParameterNodeTypes lists node kinds holding a function's parameter list.
	ParameterNodeTypes []string
	// DocCommentPrefix is the line-comment prefix scanned above a definition.
	DocCommentPrefix string
}

// registry maps file extensions to language specs.
var registry = map[string]*LanguageSpec{}

// Register adds a LanguageSpec to the global registry.
func Register(spec *LanguageSpec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the LanguageSpec for a file extension (e.g. ".go").
func ForExtension(ext string) *LanguageSpec {
	return registry[strings.ToLower(ext)]
}

// ForLanguage returns the LanguageSpec for a language.
func ForLanguage(lang Language) *LanguageSpec {
	for _, spec := range registry {
		if spec.Language == lang {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language for a file extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := ForExtension(ext)
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}

// Extensions returns every registered extension, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Parse converts a language tag or alias ("py", "js", "ts") to a Language.
func Parse(name string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "python", "py":
		return Python, true
	case "javascript", "js", "jsx":
		return JavaScript, true
	case "typescript", "ts":
		return TypeScript, true
	case "tsx":
		return TSX, true
	case "go", "golang":
		return Go, true
	}
	return "", false
}

// Contains reports whether kind is one of kinds.
func Contains(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
