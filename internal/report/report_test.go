package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/smellgraph/internal/detect"
)

func sampleResult() *detect.Result {
	return &detect.Result{
		RunID:     "run-1",
		Detectors: []string{"dead_code", "god_class", "high_fan_in", "long_function"},
		Findings: []detect.Finding{
			{Detector: "long_function", Severity: detect.SeverityMedium, Description: "b",
				Locations: []detect.Location{{File: "src/b.py", Symbol: "b", Line: 10}}},
			{Detector: "dead_code", Severity: detect.SeverityLow, Description: "dead",
				Locations: []detect.Location{{File: "x.py", Symbol: "dead", Line: 1}}},
			{Detector: "long_function", Severity: detect.SeverityMedium, Description: "a",
				Locations: []detect.Location{{File: "src/a.py", Symbol: "a", Line: 3}}},
			{Detector: "high_fan_in", Severity: detect.SeverityCritical, Description: "hub <core>",
				Locations: []detect.Location{{File: "core/my file.py"}},
				Metrics:   map[string]float64{"fan_in": 25}},
			{Detector: "god_class", Severity: detect.SeverityHigh, Description: "god",
				Locations: []detect.Location{{File: "svc.py", Symbol: "Svc", Line: 5}}},
		},
		Errors: []*detect.QueryError{{Detector: "mutual_dependency", Err: errors.New("boom")}},
	}
}

func TestAggregateOrdersAndCounts(t *testing.T) {
	r := Aggregate("proj", sampleResult(), Links{})

	var order []string
	for _, f := range r.Findings {
		order = append(order, f.Detector+":"+f.Description)
	}
	assert.Equal(t, []string{
		"high_fan_in:hub <core>",
		"god_class:god",
		"long_function:a",
		"long_function:b",
		"dead_code:dead",
	}, order)

	assert.Equal(t, 5, r.Total)
	assert.Equal(t, 1, r.Counts[detect.SeverityCritical])
	assert.Equal(t, 2, r.Counts[detect.SeverityMedium])
	assert.Equal(t, 2, r.ByDetector["long_function"])
	assert.Equal(t, 1, r.Counts[detect.SeverityLow])
	assert.Equal(t, "run-1", r.RunID)
	assert.False(t, r.GeneratedAt.IsZero())
	require.Len(t, r.Errors, 1)
	assert.Equal(t, DetectorError{Detector: "mutual_dependency", Error: "boom"}, r.Errors[0])
	assert.True(t, r.Failed())

	for _, f := range r.Findings {
		for _, l := range f.Locations {
			assert.Empty(t, l.Link, "no links without a repo URL")
		}
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	a := Aggregate("proj", sampleResult(), Links{})
	res := sampleResult()
	for i, j := 0, len(res.Findings)-1; i < j; i, j = i+1, j-1 {
		res.Findings[i], res.Findings[j] = res.Findings[j], res.Findings[i]
	}
	b := Aggregate("proj", res, Links{})
	assert.Equal(t, a.Findings, b.Findings)
}

func TestLinks(t *testing.T) {
	loc := detect.Location{File: "core/my file.py", Line: 12}
	tests := []struct {
		name  string
		links Links
		want  string
	}{
		{"unset", Links{}, ""},
		{"default branch", Links{RepoURL: "https://github.com/o/r"}, "https://github.com/o/r/blob/main/core/my%20file.py#L12"},
		{"trim git suffix", Links{RepoURL: "https://github.com/o/r.git/", Branch: "dev"}, "https://github.com/o/r/blob/dev/core/my%20file.py#L12"},
		{"trailing slash", Links{RepoURL: "https://github.com/o/r/"}, "https://github.com/o/r/blob/main/core/my%20file.py#L12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.links.Link(loc))
		})
	}
	assert.Equal(t, "https://x/r/blob/main/a.py", Links{RepoURL: "https://x/r"}.Link(detect.Location{File: "a.py"}))
}

func TestAggregateAttachesLinks(t *testing.T) {
	res := sampleResult()
	r := Aggregate("proj", res, Links{RepoURL: "https://github.com/o/r"})
	assert.Equal(t, "https://github.com/o/r/blob/main/core/my%20file.py", r.Findings[0].Locations[0].Link)
	assert.Empty(t, res.Findings[3].Locations[0].Link, "input is not modified")
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Aggregate("proj", sampleResult(), Links{}).WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, "Smell report for proj (run run-1)")
	assert.Contains(t, out, "5 findings: 1 CRITICAL 1 HIGH 2 MEDIUM 1 LOW")
	assert.Contains(t, out, "[CRITICAL] high_fan_in: hub <core>")
	assert.Contains(t, out, "at src/a.py:3 (a)")
	assert.Contains(t, out, "metrics: fan_in=25")
	assert.Contains(t, out, "error: detector mutual_dependency failed: boom")
	assert.Less(t, strings.Index(out, "high_fan_in"), strings.Index(out, "dead_code"))
}

func TestWriteHTMLEscapes(t *testing.T) {
	var buf bytes.Buffer
	r := Aggregate("proj", sampleResult(), Links{RepoURL: "https://github.com/o/r"})
	require.NoError(t, r.WriteHTML(&buf))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<style>")
	assert.Contains(t, out, "hub &lt;core&gt;")
	assert.NotContains(t, out, "hub <core>")
	assert.Contains(t, out, `href="https://github.com/o/r/blob/main/core/my%20file.py"`)
	assert.Contains(t, out, `class="sev critical"`)
}

func TestWriteFormats(t *testing.T) {
	r := Aggregate("proj", sampleResult(), Links{})

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, FormatJSON))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.EqualValues(t, 5, decoded["total"])

	assert.Error(t, r.Write(&buf, "pdf"))
}
