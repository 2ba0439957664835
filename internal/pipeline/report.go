package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// BuildReport summarizes one build run.
type BuildReport struct {
	RunID       string `json:"run_id"`
	Project     string `json:"project"`
	Incremental bool   `json:"incremental"`

	FilesProcessed int `json:"files_processed"`
	FilesFailed    int `json:"files_failed"`
	FilesSkipped   int `json:"files_skipped"`  // unchanged since the previous build
	FilesRelinked  int `json:"files_relinked"` // unchanged, outgoing edges rebuilt
	FilesDeleted   int `json:"files_deleted"`

	SymbolsCreated       int `json:"symbols_created"`
	RelationshipsCreated int `json:"relationships_created"`
	UnresolvedImports    int `json:"unresolved_imports"`
	UnresolvedCalls      int `json:"unresolved_calls"`

	Failed   []string      `json:"failed_files,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Elapsed  time.Duration `json:"-"`
	Errors   []error       `json:"-"`
}

// MarshalJSON renders errors as strings and the elapsed time in
// milliseconds.
func (r *BuildReport) MarshalJSON() ([]byte, error) {
	type plain BuildReport
	errs := make([]string, len(r.Errors))
	for i, err := range r.Errors {
		errs[i] = err.Error()
	}
	return json.Marshal(struct {
		*plain
		ElapsedMS int64    `json:"elapsed_ms"`
		Errors    []string `json:"errors,omitempty"`
	}{(*plain)(r), r.Elapsed.Milliseconds(), errs})
}

// WriteText writes a human-readable summary.
func (r *BuildReport) WriteText(w io.Writer) error {
	mode := "full"
	if r.Incremental {
		mode = "incremental"
	}
	_, err := fmt.Fprintf(w, "build %s (%s) run %s in %s\n", r.Project, mode, r.RunID, r.Elapsed.Round(time.Millisecond))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  files:         %d processed, %d failed, %d skipped, %d relinked, %d deleted\n",
		r.FilesProcessed, r.FilesFailed, r.FilesSkipped, r.FilesRelinked, r.FilesDeleted)
	fmt.Fprintf(w, "  symbols:       %d\n", r.SymbolsCreated)
	fmt.Fprintf(w, "  relationships: %d\n", r.RelationshipsCreated)
	fmt.Fprintf(w, "  unresolved:    %d imports, %d calls\n", r.UnresolvedImports, r.UnresolvedCalls)
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  error: %v\n", e)
	}
	return nil
}
