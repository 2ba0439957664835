package pipeline

import (
	"fmt"
	"strings"
)

// ParseError reports a file that could not be read or parsed. It fails that
// file only.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// WriteError reports a write batch that failed. Every file with a statement
// in the batch is marked failed.
type WriteError struct {
	Stage      string
	Batch      int
	Files      []string
	Statements int
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s batch %d (%d statements, files %s): %v",
		e.Stage, e.Batch, e.Statements, strings.Join(e.Files, ", "), e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
