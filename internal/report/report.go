// Package report aggregates detector findings into a deterministic report
// and renders it as text, HTML or JSON.
package report

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/DeusData/smellgraph/internal/detect"
)

// DefaultBranch is used for links when only a repository URL is set.
const DefaultBranch = "main"

// Links configures source links on finding locations.
type Links struct {
	RepoURL string
	Branch  string
}

// base returns the link prefix, or "" when links are not configured.
func (l Links) base() string {
	repo := strings.TrimSpace(l.RepoURL)
	repo = strings.TrimRight(repo, "/")
	repo = strings.TrimSuffix(repo, ".git")
	repo = strings.TrimRight(repo, "/")
	if repo == "" {
		return ""
	}
	branch := strings.TrimSpace(l.Branch)
	if branch == "" {
		branch = DefaultBranch
	}
	return repo + "/blob/" + branch + "/"
}

// Link returns the source link for a location, or "" without a repo URL.
func (l Links) Link(loc detect.Location) string {
	base := l.base()
	if base == "" || loc.File == "" {
		return ""
	}
	segs := strings.Split(strings.TrimPrefix(loc.File, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	link := base + strings.Join(segs, "/")
	if loc.Line > 0 {
		link += "#L" + itoa(loc.Line)
	}
	return link
}

// DetectorError is a detector that failed during the run.
type DetectorError struct {
	Detector string `json:"detector"`
	Error    string `json:"error"`
}

// Report is the aggregated outcome of one analysis run.
type Report struct {
	RunID       string                  `json:"run_id"`
	Project     string                  `json:"project"`
	GeneratedAt time.Time               `json:"generated_at"`
	Detectors   []string                `json:"detectors"`
	Findings    []detect.Finding        `json:"findings"`
	Counts      map[detect.Severity]int `json:"counts"`
	ByDetector  map[string]int          `json:"by_detector"`
	Errors      []DetectorError         `json:"errors,omitempty"`
	Total       int                     `json:"total"`
	Elapsed     time.Duration           `json:"-"`
}

// Aggregate merges a detector run into a report. Findings are sorted by
// severity (most severe first), then detector name, location and
// description, so identical graphs give identical reports.
func Aggregate(project string, res *detect.Result, links Links) *Report {
	r := &Report{
		RunID:       res.RunID,
		Project:     project,
		GeneratedAt: time.Now().UTC(),
		Detectors:   append([]string(nil), res.Detectors...),
		Counts:      map[detect.Severity]int{},
		ByDetector:  map[string]int{},
		Elapsed:     res.Elapsed,
	}
	for _, s := range detect.Severities() {
		r.Counts[s] = 0
	}
	for _, d := range res.Detectors {
		r.ByDetector[d] = 0
	}

	r.Findings = make([]detect.Finding, 0, len(res.Findings))
	for _, f := range res.Findings {
		locs := make([]detect.Location, len(f.Locations))
		for i, loc := range f.Locations {
			loc.Link = links.Link(loc)
			locs[i] = loc
		}
		f.Locations = locs
		r.Findings = append(r.Findings, f)
		r.Counts[f.Severity]++
		r.ByDetector[f.Detector]++
	}
	sort.SliceStable(r.Findings, func(i, j int) bool { return less(r.Findings[i], r.Findings[j]) })
	r.Total = len(r.Findings)

	for _, e := range res.Errors {
		r.Errors = append(r.Errors, DetectorError{Detector: e.Detector, Error: e.Err.Error()})
	}
	sort.Slice(r.Errors, func(i, j int) bool { return r.Errors[i].Detector < r.Errors[j].Detector })
	return r
}

func less(a, b detect.Finding) bool {
	if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
		return ra > rb
	}
	if a.Detector != b.Detector {
		return a.Detector < b.Detector
	}
	if c := compareLocations(a.Locations, b.Locations); c != 0 {
		return c < 0
	}
	return a.Description < b.Description
}

func compareLocations(a, b []detect.Location) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		x, y := a[i], b[i]
		switch {
		case x.File != y.File:
			return strings.Compare(x.File, y.File)
		case x.Line != y.Line:
			return x.Line - y.Line
		case x.Symbol != y.Symbol:
			return strings.Compare(x.Symbol, y.Symbol)
		}
	}
	return len(a) - len(b)
}

// Failed reports whether any detector failed.
func (r *Report) Failed() bool { return len(r.Errors) > 0 }
