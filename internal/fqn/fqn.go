// Package fqn derives dotted module names from repository-relative paths.
package fqn

import (
	"path"
	"strings"
)

// Module returns the dotted module name of a file.
// Examples:
//   - pkg/service.py -> pkg.service
//   - pkg/__init__.py -> pkg
//   - web/components/index.tsx -> web.components
//
// A package-marker file at the root yields its own stem.
func Module(relPath string) string {
	relPath = strings.TrimPrefix(path.Clean(strings.ReplaceAll(relPath, "\\", "/")), "./")
	relPath = strings.TrimSuffix(relPath, path.Ext(relPath))
	parts := strings.Split(relPath, "/")

	// Python __init__ and JS/TS index files name their directory.
	if n := len(parts); n > 1 && (parts[n-1] == "__init__" || parts[n-1] == "index") {
		parts = parts[:n-1]
	}
	return strings.Join(parts, ".")
}

// Symbol returns the dotted name of a symbol defined in relPath. parent is
// the enclosing class, if any.
func Symbol(relPath, parent, name string) string {
	all := []string{Module(relPath)}
	if parent != "" {
		all = append(all, parent)
	}
	return strings.Join(append(all, name), ".")
}

// Local is the name a file is imported under: its base name without
// extension, or the directory name for index, package and Go files.
func Local(relPath string) string {
	base := path.Base(relPath)
	name := strings.TrimSuffix(base, path.Ext(base))
	name = strings.TrimSuffix(name, ".d")
	switch name {
	case "__init__", "index":
		return path.Base(path.Dir(relPath))
	}
	if path.Ext(relPath) == ".go" {
		return path.Base(path.Dir(relPath))
	}
	return name
}
