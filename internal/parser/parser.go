package parser

import (
	"fmt"
	"sync"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/DeusData/smellgraph/internal/lang"
)

// grammar is a loaded tree-sitter language with a pool of parsers bound to
// it. Parsers are not safe for concurrent use, so each parse borrows one.
type grammar struct {
	language *tree_sitter.Language
	parsers  sync.Pool
}

var grammars = sync.OnceValue(func() map[lang.Language]*grammar {
	bindings := map[lang.Language]unsafe.Pointer{
		lang.Python:     tree_sitter_python.Language(),
		lang.JavaScript: tree_sitter_javascript.Language(),
		lang.TypeScript: tree_sitter_typescript.LanguageTypescript(),
		lang.TSX:        tree_sitter_typescript.LanguageTSX(),
		lang.Go:         tree_sitter_go.Language(),
	}
	out := make(map[lang.Language]*grammar, len(bindings))
	for l, ptr := range bindings {
		g := &grammar{language: tree_sitter.NewLanguage(ptr)}
		g.parsers.New = func() any {
			p := tree_sitter.NewParser()
			if err := p.SetLanguage(g.language); err != nil {
				panic(fmt.Sprintf("set %s grammar: %v", l, err))
			}
			return p
		}
		out[l] = g
	}
	return out
})

// Supported reports whether a grammar is loaded for l.
func Supported(l lang.Language) bool {
	_, ok := grammars()[l]
	return ok
}

// parseTree parses source with a pooled parser for l. The caller closes the
// tree.
func parseTree(l lang.Language, source []byte) (*tree_sitter.Tree, error) {
	g, ok := grammars()[l]
	if !ok {
		return nil, fmt.Errorf("no grammar for %s", l)
	}
	p := g.parsers.Get().(*tree_sitter.Parser)
	tree := p.Parse(source, nil)
	g.parsers.Put(p)
	if tree == nil {
		return nil, fmt.Errorf("%s parser returned no tree", l)
	}
	return tree, nil
}

// visit walks the tree depth-first. Returning false from fn skips the
// node's children.
func visit(n *tree_sitter.Node, fn func(*tree_sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		visit(n.Child(i), fn)
	}
}

func nodeText(n *tree_sitter.Node, source []byte) string {
	return string(source[n.StartByte():n.EndByte()])
}

// line converts a zero-based tree-sitter row to a 1-based line number.
func line(row uint) int {
	return int(row) + 1
}
