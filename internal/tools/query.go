package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/smellgraph/internal/cypher"
)

func (s *Server) handleQueryGraph(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	query := getStringArg(args, "query")
	if query == "" {
		return errResult("missing required 'query' parameter"), nil
	}
	project := getStringArg(args, "project")
	if project != "" {
		if _, toolErr := s.requireProject(project); toolErr != nil {
			return toolErr, nil
		}
	}

	exec := &cypher.Executor{Store: s.store, Project: project, MaxRows: cypher.DefaultMaxRows}
	result, err := exec.Read(ctx, query, nil)
	if err != nil {
		return errResult(fmt.Sprintf("query error: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"columns": result.Columns,
		"rows":    result.Rows,
		"total":   len(result.Rows),
	}), nil
}
