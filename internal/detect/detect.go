// Package detect runs smell detectors over the code graph.
//
// A detector is an independent, read-only rule: it issues queries through a
// Querier and turns the rows into severity-scored findings. Detectors never
// share state, so the Runner executes them concurrently and isolates their
// failures.
package detect

import (
	"context"
	"fmt"

	"github.com/DeusData/smellgraph/internal/cypher"
)

// Severity ranks a finding.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities; higher is more severe. Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Severities lists every severity from most to least severe.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

// Location points at a file and optionally a symbol in it.
type Location struct {
	File   string `json:"file"`
	Symbol string `json:"symbol,omitempty"`
	Line   int    `json:"line,omitempty"`
	Link   string `json:"link,omitempty"`
}

func (l Location) String() string {
	s := l.File
	if l.Line > 0 {
		s = fmt.Sprintf("%s:%d", s, l.Line)
	}
	if l.Symbol != "" {
		s += " (" + l.Symbol + ")"
	}
	return s
}

// Finding is one detected smell.
type Finding struct {
	Detector       string             `json:"detector"`
	Severity       Severity           `json:"severity"`
	Description    string             `json:"description"`
	Locations      []Location         `json:"locations"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
	Recommendation string             `json:"recommendation"`
}

// Querier runs read queries against the graph. *cypher.Executor implements it.
type Querier interface {
	Read(ctx context.Context, query string, params map[string]any) (*cypher.Result, error)
}

// Detector is one smell rule.
type Detector interface {
	Name() string
	Description() string
	Detect(ctx context.Context, q Querier, th Thresholds) ([]Finding, error)
}

// QueryError reports a detector that failed. Other detectors are not
// affected.
type QueryError struct {
	Detector string
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("detector %s: %v", e.Detector, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ConfigError reports invalid detection configuration. It is returned
// before any detector runs.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}
