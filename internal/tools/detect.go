package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/smellgraph/internal/cypher"
	"github.com/DeusData/smellgraph/internal/detect"
	"github.com/DeusData/smellgraph/internal/report"
)

func (s *Server) handleDetectSmells(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	project := getStringArg(args, "project")
	if _, toolErr := s.requireProject(project); toolErr != nil {
		return toolErr, nil
	}

	overrides, err := getNumberMapArg(args, "thresholds")
	if err != nil {
		return errResult(err.Error()), nil
	}
	thresholds := map[string]float64{}
	for k, v := range s.cfg.Detect.Thresholds {
		thresholds[k] = v
	}
	for k, v := range overrides {
		thresholds[k] = v
	}

	include := getStringSliceArg(args, "include")
	if include == nil {
		include = s.cfg.Detect.Include
	}
	exclude := getStringSliceArg(args, "exclude")
	if exclude == nil {
		exclude = s.cfg.Detect.Exclude
	}

	exec := &cypher.Executor{Store: s.store, Project: project}
	r, err := report.Analyze(ctx, exec, project, report.Options{
		Include:     include,
		Exclude:     exclude,
		Thresholds:  thresholds,
		Concurrency: s.cfg.Detect.Concurrency,
		Timeout:     time.Duration(s.cfg.Detect.Timeout),
		Links:       s.cfg.Links(),
	})
	if err != nil {
		var ce *detect.ConfigError
		if errors.As(err, &ce) {
			return errResult(fmt.Sprintf("invalid request: %v (detectors: %s)", ce,
				strings.Join(detect.Default().Names(), ", "))), nil
		}
		return errResult(fmt.Sprintf("detect failed: %v", err)), nil
	}

	if getStringArg(args, "format") == report.FormatText {
		var b strings.Builder
		if err := r.WriteText(&b); err != nil {
			return errResult(fmt.Sprintf("render: %v", err)), nil
		}
		return textResult(b.String()), nil
	}
	return jsonResult(r), nil
}
