package parser

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/smellgraph/internal/lang"
)

// Symbol kinds. Each maps onto the graph label of the same name.
const (
	KindFunction  = "function"
	KindClass     = "class"
	KindMethod    = "method"
	KindVariable  = "variable"
	KindInterface = "interface"
)

// Scopes a symbol can be declared in.
const (
	ScopeModule = "module"
	ScopeClass  = "class"
	ScopeLocal  = "local"
)

// ErrSyntax marks a file the grammar could not parse cleanly.
var ErrSyntax = errors.New("syntax error")

// Symbol is one definition extracted from a file. Lines are 1-based and
// inclusive.
type Symbol struct {
	Name       string
	Kind       string
	StartLine  int
	EndLine    int
	Docstring  string
	Signature  string
	Parent     string // enclosing class for methods
	Scope      string
	ParamCount int
	Exported   bool
}

// UsageKind classifies a name occurrence.
type UsageKind string

const (
	UsageCall   UsageKind = "call"
	UsageRead   UsageKind = "read"
	UsageAssign UsageKind = "assign"
	UsageDecl   UsageKind = "decl"
)

// Usage is a name occurrence inside a file. Qualifier holds the receiver or
// module expression for member accesses (`utils.helper()` has Qualifier
// "utils").
type Usage struct {
	Name      string
	Qualifier string
	Line      int
	Kind      UsageKind
}

// Result is everything the graph needs from one file.
type Result struct {
	Symbols   []Symbol
	Imports   []string // raw specifiers in declaration order
	Usages    []Usage
	Receivers []string // method receiver names (Go)
}

// Adapter turns file content into a Result. Implementations never panic:
// on failure they return an empty Result together with the error.
type Adapter interface {
	Parse(ctx context.Context, path string, content []byte, language lang.Language) (*Result, error)
}

// TreeSitter is the tree-sitter backed Adapter. With Strict set, a tree
// containing error nodes is rejected with ErrSyntax; otherwise whatever the
// grammar recovered is extracted.
type TreeSitter struct {
	Strict bool
}

// NewTreeSitter returns a strict adapter.
func NewTreeSitter() *TreeSitter {
	return &TreeSitter{Strict: true}
}

// Parse implements Adapter.
func (a *TreeSitter) Parse(ctx context.Context, path string, content []byte, language lang.Language) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = &Result{}
			err = fmt.Errorf("parse %s: panic: %v\n%s", path, r, debug.Stack())
		}
	}()

	if err := ctx.Err(); err != nil {
		return &Result{}, err
	}
	spec := lang.ForLanguage(language)
	if spec == nil {
		return &Result{}, fmt.Errorf("parse %s: unsupported language %q", path, language)
	}

	tree, err := parseTree(language, content)
	if err != nil {
		return &Result{}, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if a.Strict && root.HasError() {
		return &Result{}, fmt.Errorf("parse %s: %w at line %d", path, ErrSyntax, firstErrorLine(root))
	}

	x := newExtractor(spec, content)
	x.run(root)
	if err := ctx.Err(); err != nil {
		return &Result{}, err
	}
	return x.result(), nil
}

// firstErrorLine returns the line of the first ERROR or MISSING node.
func firstErrorLine(root *tree_sitter.Node) int {
	found := 0
	visit(root, func(n *tree_sitter.Node) bool {
		if found > 0 {
			return false
		}
		if n.IsError() || n.IsMissing() {
			found = line(n.StartPosition().Row)
			return false
		}
		return n.HasError()
	})
	if found == 0 {
		return 1
	}
	return found
}
