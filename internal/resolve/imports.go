// Package resolve maps import specifiers to files and name usages to the
// symbols they refer to.
package resolve

import (
	"path"
	"sort"
	"strings"

	"github.com/DeusData/smellgraph/internal/lang"
)

// Importer resolves import specifiers against the set of files in a build.
// Paths are repository-relative with forward slashes.
type Importer struct {
	files      map[string]bool
	dirs       map[string][]string // directory -> files, sorted
	extensions []string            // every configured extension, in precedence order
}

// NewImporter indexes files. extensions is the configured extension list
// tried after the importer's own language extensions; nil means every
// registered extension.
func NewImporter(files []string, extensions []string) *Importer {
	if extensions == nil {
		extensions = lang.Extensions()
	}
	r := &Importer{
		files:      make(map[string]bool, len(files)),
		dirs:       map[string][]string{},
		extensions: extensions,
	}
	for _, f := range files {
		f = Normalize(f)
		if r.files[f] {
			continue
		}
		r.files[f] = true
		dir := path.Dir(f)
		r.dirs[dir] = append(r.dirs[dir], f)
	}
	for _, list := range r.dirs {
		sort.Strings(list)
	}
	return r
}

// Normalize cleans a repository-relative path: forward slashes, no leading
// "./" or "/".
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// Has reports whether p is a known file.
func (r *Importer) Has(p string) bool { return r.files[p] }

// ImportName is the name an import binds when it has no alias:
// "./lib/utils.js" gives "utils", "pkg.mod" gives "mod" and
// "example.com/x/sq" gives "sq".
func ImportName(spec string) string {
	s := strings.TrimRight(strings.TrimSpace(spec), "/")
	if strings.Contains(s, "/") {
		s = path.Base(s)
		return strings.TrimSuffix(s, path.Ext(s))
	}
	s = strings.TrimLeft(s, ".")
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// Resolve returns the files an import of spec from importer refers to, or
// nil when it cannot be resolved. Most languages resolve to one file; Go
// imports name a package directory and resolve to its files.
func (r *Importer) Resolve(importer, spec string) []string {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	ext := path.Ext(importer)
	if strings.HasSuffix(importer, ".d.ts") {
		ext = ".ts"
	}
	ls := lang.ForExtension(ext)
	dir := path.Dir(importer)

	var bases []string
	switch {
	case ls != nil && ls.Language == lang.Python:
		bases = pythonBases(dir, spec)
	case strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") || spec == "." || spec == "..":
		bases = []string{path.Join(dir, spec)}
	default:
		// Absolute specifiers: root-relative first, then importer-relative.
		bases = []string{strings.TrimPrefix(spec, "/"), path.Join(dir, spec)}
	}

	if ls != nil && ls.PackageImports {
		return r.resolvePackage(importer, spec, bases, ls)
	}
	for _, base := range bases {
		if f := r.resolveFile(importer, base, ls); f != "" {
			return []string{f}
		}
	}
	return nil
}

// pythonBases turns a dotted module name into candidate paths. Leading dots
// are relative to the importing package: one dot is its own directory, each
// further dot goes up one level.
func pythonBases(dir, spec string) []string {
	dots := len(spec) - len(strings.TrimLeft(spec, "."))
	rest := strings.ReplaceAll(strings.TrimLeft(spec, "."), ".", "/")
	if dots == 0 {
		return []string{rest, path.Join(dir, rest)}
	}
	base := dir
	for i := 1; i < dots; i++ {
		base = path.Dir(base)
	}
	return []string{path.Join(base, rest)}
}

// resolveFile tries, in order: the exact path, the path with each extension
// and the directory index files.
func (r *Importer) resolveFile(importer, base string, ls *lang.LanguageSpec) string {
	base = Normalize(base)
	if base == "" || strings.HasPrefix(base, "../") || base == ".." {
		return ""
	}
	accept := func(p string) bool { return p != importer && r.files[p] }

	if accept(base) {
		return base
	}
	exts := r.extensionOrder(ls)
	for _, ext := range exts {
		if p := base + ext; accept(p) {
			return p
		}
	}
	for _, index := range r.indexOrder(ls) {
		for _, ext := range exts {
			if p := path.Join(base, index+ext); accept(p) {
				return p
			}
		}
	}
	return ""
}

// resolvePackage resolves a package import to every file of the package
// directory in the importer's language. Module paths are matched by the
// longest known directory that is a suffix of the import path.
func (r *Importer) resolvePackage(importer, spec string, bases []string, ls *lang.LanguageSpec) []string {
	dir := ""
	for _, base := range bases {
		if b := Normalize(base); b != "" && len(r.dirs[b]) > 0 {
			dir = b
			break
		}
	}
	if dir == "" {
		for d := range r.dirs {
			if d == "." {
				continue
			}
			if (spec == d || strings.HasSuffix(spec, "/"+d)) && len(d) > len(dir) {
				dir = d
			}
		}
	}
	if dir == "" || dir == path.Dir(importer) {
		return nil
	}
	var out []string
	for _, f := range r.dirs[dir] {
		if lang.Contains(ls.FileExtensions, path.Ext(f)) {
			out = append(out, f)
		}
	}
	return out
}

// extensionOrder lists the importer language's extensions first, then the
// remaining configured ones.
func (r *Importer) extensionOrder(ls *lang.LanguageSpec) []string {
	var out []string
	seen := map[string]bool{}
	if ls != nil {
		for _, ext := range ls.ResolveExtensions {
			if !seen[ext] {
				seen[ext] = true
				out = append(out, ext)
			}
		}
	}
	for _, ext := range r.extensions {
		if !seen[ext] {
			seen[ext] = true
			out = append(out, ext)
		}
	}
	return out
}

func (r *Importer) indexOrder(ls *lang.LanguageSpec) []string {
	var out []string
	seen := map[string]bool{}
	add := func(names []string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	if ls != nil {
		add(ls.IndexFiles)
	}
	for _, l := range lang.AllLanguages() {
		if spec := lang.ForLanguage(l); spec != nil {
			add(spec.IndexFiles)
		}
	}
	return out
}
