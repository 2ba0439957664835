package discover

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DeusData/smellgraph/internal/lang"
)

func TestDiscoverBasic(t *testing.T) {
	dir := t.TempDir()

	// Create a Go file and a Python file
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.py"), []byte("def main(): pass\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	files, err := Discover(ctx, dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}

	// Verify file info is populated
	for _, f := range files {
		if f.Path == "" {
			t.Error("expected non-empty Path")
		}
		if f.RelPath == "" {
			t.Error("expected non-empty RelPath")
		}
		if f.Language == "" {
			t.Error("expected non-empty Language")
		}
	}
}

func TestDiscoverCancellation(t *testing.T) {
	dir := t.TempDir()

	// Create a file so the directory isn't empty
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // pre-cancel

	_, err := Discover(ctx, dir, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func relPaths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestDiscoverExcludes(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/app.py":               "x = 1\n",
		"src/gen/schema_pb2.py":    "x = 1\n",
		"src/legacy.js":            "var x;\n",
		"node_modules/lib/index.js": "var x;\n",
		"web/app.min.js":           "var x;\n",
		"README.md":                "# readme\n",
		".smellignore":             "# generated\nsrc/gen/\n",
	})

	files, err := Discover(context.Background(), dir, &Options{Exclude: []string{"*.js"}})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	got := relPaths(files)
	if len(got) != 1 || got[0] != "src/app.py" {
		t.Errorf("files = %v, want [src/app.py]", got)
	}
	if files[0].Size != 6 {
		t.Errorf("size = %d, want 6", files[0].Size)
	}
}

func TestDiscoverAllowList(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"b.py":  "x = 1\n",
		"a.go":  "package a\n",
		"c.ts":  "let x = 1;\n",
		"d.tsx": "let x = 1;\n",
	})

	files, err := Discover(context.Background(), dir, &Options{Languages: []lang.Language{lang.Python}, Extensions: []string{"tsx"}})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	got := relPaths(files)
	if len(got) != 2 || got[0] != "b.py" || got[1] != "d.tsx" {
		t.Errorf("files = %v, want [b.py d.tsx]", got)
	}
}
