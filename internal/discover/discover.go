package discover

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/DeusData/smellgraph/internal/lang"
)

// IgnoreFileName is the per-repository exclude file, in .gitignore syntax.
const IgnoreFileName = ".smellignore"

// IGNORE_PATTERNS are directory names to skip during discovery.
var IGNORE_PATTERNS = map[string]bool{
	".cache": true, ".eggs": true, ".git": true, ".hg": true,
	".idea": true, ".mypy_cache": true, ".nox": true,
	".npm": true, ".nyc_output": true, ".pnpm-store": true,
	".pytest_cache": true, ".ruff_cache": true, ".svn": true,
	".tmp": true, ".tox": true, ".venv": true, ".vs": true,
	".vscode": true, ".yarn": true, "__pycache__": true,
	"bower_components": true, "build": true, "coverage": true,
	"dist": true, "htmlcov": true, "node_modules": true, "out": true,
	"site-packages": true, "target": true, "vendor": true, "venv": true,
}

// IGNORE_SUFFIXES are file suffixes to skip.
var IGNORE_SUFFIXES = map[string]bool{
	".tmp": true, "~": true, ".pyc": true, ".pyo": true,
	".min.js": true, ".bundle.js": true,
}

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // relative to repo root, forward slashes
	Language lang.Language // detected language
	Size     int64
	ModTime  time.Time
}

// Options configures file discovery.
type Options struct {
	// Languages and Extensions form the allow-list; empty means every
	// supported language. A file passes when either list admits it.
	Languages  []lang.Language
	Extensions []string
	// Exclude holds extra patterns in .gitignore syntax.
	Exclude []string
	// IgnoreFile overrides the default <repo>/.smellignore.
	IgnoreFile string
}

func (o *Options) allows(ext string, l lang.Language) bool {
	if o == nil || (len(o.Languages) == 0 && len(o.Extensions) == 0) {
		return true
	}
	for _, allowed := range o.Languages {
		if allowed == l {
			return true
		}
	}
	for _, allowed := range o.Extensions {
		if strings.EqualFold(allowed, ext) || strings.EqualFold("."+allowed, ext) {
			return true
		}
	}
	return false
}

// Matcher builds the exclude matcher for a repository from the ignore file
// and the configured patterns. It returns nil when nothing is excluded.
func Matcher(repoPath string, opts *Options) *ignore.GitIgnore {
	ignFile := filepath.Join(repoPath, IgnoreFileName)
	var extra []string
	if opts != nil {
		if opts.IgnoreFile != "" {
			ignFile = opts.IgnoreFile
		}
		extra = opts.Exclude
	}
	lines, _ := loadIgnoreFile(ignFile)
	lines = append(lines, extra...)
	if len(lines) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(lines...)
}

// Discover walks a repository and returns all source files, sorted by
// relative path.
func Discover(ctx context.Context, repoPath string, opts *Options) ([]FileInfo, error) {
	repoPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}

	// Check cancellation before starting walk
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matcher := Matcher(repoPath, opts)
	excluded := func(rel string, dir bool) bool {
		if matcher == nil {
			return false
		}
		if dir && matcher.MatchesPath(rel+"/") {
			return true
		}
		return matcher.MatchesPath(rel)
	}

	var files []FileInfo

	err = filepath.Walk(repoPath, func(path string, info os.FileInfo, walkErr error) error {
		// Check context cancellation periodically during walk
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, _ := filepath.Rel(repoPath, path)
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." && (IGNORE_PATTERNS[info.Name()] || excluded(rel, true)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		// Skip ignored suffixes
		for suffix := range IGNORE_SUFFIXES {
			if strings.HasSuffix(path, suffix) {
				return nil
			}
		}

		ext := filepath.Ext(path)
		l, ok := lang.LanguageForExtension(ext)
		if !ok || !opts.allows(ext, l) || excluded(rel, false) {
			return nil
		}
		files = append(files, FileInfo{
			Path:     path,
			RelPath:  rel,
			Language: l,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, err
}

func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, scanner.Err()
}
