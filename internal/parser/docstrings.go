package parser

import (
	"bytes"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/smellgraph/internal/lang"
)

// docstring extracts the documentation for a definition.
// Python functions and classes: triple-quoted string as first body statement (PEP 257).
// Everything else: comment lines directly above row.
func (x *extractor) docstring(node *tree_sitter.Node, row int, kind string) string {
	if x.spec.Language == lang.Python && kind != KindVariable {
		if doc := pythonDocstring(node, x.src); doc != "" {
			return doc
		}
	}
	return commentDocstring(x.src, row, x.spec.DocCommentPrefix)
}

// pythonDocstring extracts a PEP 257 docstring from a function/class body.
func pythonDocstring(node *tree_sitter.Node, source []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Kind() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	strNode := first.NamedChild(0)
	if strNode == nil || strNode.Kind() != "string" {
		return ""
	}
	return cleanPythonDocstring(nodeText(strNode, source))
}

// cleanPythonDocstring removes quote delimiters and normalizes indentation.
func cleanPythonDocstring(s string) string {
	for _, delim := range []string{`"""`, `'''`} {
		if strings.HasPrefix(s, delim) && strings.HasSuffix(s, delim) && len(s) >= 6 {
			s = s[3 : len(s)-3]
			break
		}
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= 1 {
		return strings.TrimSpace(s)
	}
	// Dedent: find minimum indentation of non-empty continuation lines.
	minIndent := -1
	for _, line := range lines[1:] {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		if minIndent < 0 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent > 0 {
		for i := 1; i < len(lines); i++ {
			if len(lines[i]) >= minIndent {
				lines[i] = lines[i][minIndent:]
			}
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// commentDocstring scans backwards from the zero-based row for doc comments.
func commentDocstring(source []byte, row int, prefix string) string {
	lines := bytes.Split(source, []byte("\n"))
	if row <= 0 || row > len(lines) {
		return ""
	}

	lineIdx := row - 1
	trimmed := strings.TrimSpace(string(lines[lineIdx]))
	if trimmed == "" {
		return ""
	}

	if strings.HasSuffix(trimmed, "*/") {
		return blockComment(lines, lineIdx)
	}
	if prefix != "" && strings.HasPrefix(trimmed, prefix) {
		return lineComments(lines, lineIdx, prefix)
	}
	return ""
}

// blockComment scans backwards from endLineIdx to find the start of a /* or /** block.
func blockComment(lines [][]byte, endLineIdx int) string {
	startIdx := endLineIdx
	for startIdx >= 0 {
		if strings.HasPrefix(strings.TrimSpace(string(lines[startIdx])), "/*") {
			break
		}
		startIdx--
	}
	if startIdx < 0 {
		return ""
	}

	var result []string
	for i := startIdx; i <= endLineIdx; i++ {
		result = append(result, string(lines[i]))
	}
	return cleanBlockComment(strings.Join(result, "\n"))
}

// cleanBlockComment strips /** ... */ delimiters and leading * prefixes.
func cleanBlockComment(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "/**") {
		s = s[3:]
	} else if strings.HasPrefix(s, "/*") {
		s = s[2:]
	}
	s = strings.TrimSuffix(s, "*/")

	lines := strings.Split(s, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "* ")
		line = strings.TrimPrefix(line, "*")
		cleaned = append(cleaned, line)
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// lineComments collects consecutive prefix-comment lines ending at endLineIdx.
func lineComments(lines [][]byte, endLineIdx int, prefix string) string {
	startIdx := endLineIdx
	for startIdx > 0 {
		prev := strings.TrimSpace(string(lines[startIdx-1]))
		if !strings.HasPrefix(prev, prefix) {
			break
		}
		startIdx--
	}

	result := make([]string, 0, endLineIdx-startIdx+1)
	for i := startIdx; i <= endLineIdx; i++ {
		line := strings.TrimSpace(string(lines[i]))
		line = strings.TrimPrefix(line, prefix)
		line = strings.TrimPrefix(line, "/") // "///" doc comments
		result = append(result, strings.TrimPrefix(line, " "))
	}
	return strings.TrimSpace(strings.Join(result, "\n"))
}
