package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"sort"
	"strconv"
	"strings"
	texttemplate "text/template"

	"github.com/DeusData/smellgraph/internal/detect"
)

// Formats accepted by Write.
const (
	FormatText = "text"
	FormatHTML = "html"
	FormatJSON = "json"
)

func itoa(n int) string { return strconv.Itoa(n) }

var funcs = map[string]any{
	"severities": detect.Severities,
	"lower":      func(s detect.Severity) string { return strings.ToLower(string(s)) },
	"count":      func(m map[detect.Severity]int, s detect.Severity) int { return m[s] },
	"metrics":    formatMetrics,
}

func formatMetrics(m map[string]float64) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(m[k], 'g', 4, 64)
	}
	return strings.Join(parts, " ")
}

var textTmpl = texttemplate.Must(texttemplate.New("text").Funcs(funcs).Parse(
	`Smell report for {{.Project}} (run {{.RunID}})
{{.Total}} findings:{{range severities}} {{count $.Counts .}} {{.}}{{end}}
{{range $i, $f := .Findings}}
[{{$f.Severity}}] {{$f.Detector}}: {{$f.Description}}
{{- range $f.Locations}}
    at {{.}}{{if .Link}} {{.Link}}{{end}}
{{- end}}
{{- with metrics $f.Metrics}}
    metrics: {{.}}
{{- end}}
    fix: {{$f.Recommendation}}
{{end}}
{{- range .Errors}}
error: detector {{.Detector}} failed: {{.Error}}
{{- end}}
`))

var htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Smell report: {{.Project}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; width: 100%; }
th, td { border-bottom: 1px solid #ddd; padding: .4rem .6rem; text-align: left; vertical-align: top; }
.sev { font-weight: bold; border-radius: 3px; padding: 0 .4rem; color: #fff; }
.critical { background: #b00020; } .high { background: #e65100; }
.medium { background: #f9a825; color: #222; } .low { background: #607d8b; }
.summary span { margin-right: 1rem; }
.errors { color: #b00020; }
code { font-size: .9em; }
</style>
</head>
<body>
<h1>Smell report: {{.Project}}</h1>
<p>Run <code>{{.RunID}}</code> generated {{.GeneratedAt.Format "2006-01-02 15:04:05 UTC"}}</p>
<p class="summary">{{.Total}} findings:
{{- range severities}} <span class="sev {{lower .}}">{{count $.Counts .}} {{.}}</span>{{end}}</p>
{{- if .Errors}}
<ul class="errors">
{{- range .Errors}}
<li>detector <code>{{.Detector}}</code> failed: {{.Error}}</li>
{{- end}}
</ul>
{{- end}}
<table>
<thead><tr><th>Severity</th><th>Detector</th><th>Description</th><th>Locations</th><th>Recommendation</th></tr></thead>
<tbody>
{{- range .Findings}}
<tr>
<td><span class="sev {{lower .Severity}}">{{.Severity}}</span></td>
<td>{{.Detector}}</td>
<td>{{.Description}}{{with metrics .Metrics}}<br><small>{{.}}</small>{{end}}</td>
<td>{{range .Locations}}{{if .Link}}<a href="{{.Link}}">{{.}}</a>{{else}}{{.}}{{end}}<br>{{end}}</td>
<td>{{.Recommendation}}</td>
</tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

// WriteText renders the report as plain text.
func (r *Report) WriteText(w io.Writer) error {
	return textTmpl.Execute(w, r)
}

// WriteHTML renders the report as a self-contained HTML page.
func (r *Report) WriteHTML(w io.Writer) error {
	return htmlTmpl.Execute(w, r)
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Write renders the report in format.
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case "", FormatText:
		return r.WriteText(w)
	case FormatHTML:
		return r.WriteHTML(w)
	case FormatJSON:
		return r.WriteJSON(w)
	}
	return fmt.Errorf("unknown report format %q", format)
}
