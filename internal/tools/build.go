package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/smellgraph/internal/lang"
	"github.com/DeusData/smellgraph/internal/pipeline"
)

func (s *Server) handleBuildGraph(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	repoPath := getStringArg(args, "repo_path")
	if repoPath == "" {
		return errResult("repo_path is required"), nil
	}
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return errResult(fmt.Sprintf("invalid path: %v", err)), nil
	}

	dopts := s.cfg.DiscoverOptions()
	if names := getStringSliceArg(args, "languages"); len(names) > 0 {
		dopts.Languages = nil
		for _, name := range names {
			l, ok := lang.Parse(name)
			if !ok {
				return errResult(fmt.Sprintf("unknown language: %s", name)), nil
			}
			dopts.Languages = append(dopts.Languages, l)
		}
	}
	dopts.Exclude = append(dopts.Exclude, getStringSliceArg(args, "exclude")...)

	popts := s.cfg.PipelineOptions()
	popts.Incremental = getBoolArg(args, "incremental", popts.Incremental)

	// Builds of the same store must not interleave with the watcher.
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	project := pipeline.ProjectNameFromPath(absPath)
	rep, err := pipeline.New(s.store, project, absPath, popts).Run(ctx, dopts)
	if err != nil {
		return errResult(fmt.Sprintf("build failed: %v", err)), nil
	}

	nodeCount, _ := s.store.CountNodes(project)
	edgeCount, _ := s.store.CountEdges(project)
	return jsonResult(map[string]any{
		"project": project,
		"report":  rep,
		"nodes":   nodeCount,
		"edges":   edgeCount,
	}), nil
}
