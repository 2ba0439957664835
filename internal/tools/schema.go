package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/smellgraph/internal/store"
)

func (s *Server) handleGetGraphSchema(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	var names []string
	if project := getStringArg(args, "project"); project != "" {
		if _, toolErr := s.requireProject(project); toolErr != nil {
			return toolErr, nil
		}
		names = []string{project}
	} else {
		projects, err := s.store.ListProjects()
		if err != nil {
			return errResult(fmt.Sprintf("list projects: %v", err)), nil
		}
		for _, p := range projects {
			names = append(names, p.Name)
		}
	}

	type projectSchema struct {
		Project string            `json:"project"`
		Schema  *store.SchemaInfo `json:"schema"`
	}
	out := make([]projectSchema, 0, len(names))
	for _, name := range names {
		schema, err := s.store.GetSchema(name)
		if err != nil {
			return errResult(fmt.Sprintf("schema: %v", err)), nil
		}
		out = append(out, projectSchema{Project: name, Schema: schema})
	}

	return jsonResult(map[string]any{"projects": out}), nil
}
