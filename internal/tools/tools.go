// Package tools exposes graph building, smell detection and graph queries as
// MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/smellgraph/internal/config"
	"github.com/DeusData/smellgraph/internal/store"
)

// Version is reported to MCP clients.
var Version = "dev"

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp   *mcp.Server
	store *store.Store
	cfg   *config.Config

	// buildMu serializes builds with the watcher and with each other.
	buildMu *sync.Mutex
}

// NewServer creates an MCP server with all tools registered. buildMu may be
// shared with a watcher; nil gets a private lock.
func NewServer(s *store.Store, cfg *config.Config, buildMu *sync.Mutex) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if buildMu == nil {
		buildMu = &sync.Mutex{}
	}
	srv := &Server{
		store:   s,
		cfg:     cfg,
		buildMu: buildMu,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "smellgraph",
				Version: Version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Run serves the tools over stdio until ctx is done or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "build_graph",
		Description: "Build or update the code graph of a repository. Parses Python, JavaScript, TypeScript and Go files, writes File, Function, Class and Method nodes with IMPORTS, CALLS, REFERENCES, DEFINED_IN and CONTAINS edges, and returns the build report. Incremental mode only reprocesses changed files and the files importing them.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"repo_path": {
					"type": "string",
					"description": "Absolute path to the repository root"
				},
				"incremental": {
					"type": "boolean",
					"description": "Skip files whose content hash is unchanged since the last build (default from config)"
				},
				"languages": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Languages to include (python, javascript, typescript, tsx, go); empty means all"
				},
				"exclude": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Extra exclude patterns in .gitignore syntax"
				}
			},
			"required": ["repo_path"]
		}`),
	}, s.handleBuildGraph)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "detect_smells",
		Description: "Run code smell detectors over a built project graph: long functions, god classes, dead code, circular and mutual dependencies, high fan-in/fan-out, hub and orphan modules, instability, barrel files, shotgun surgery and more. Returns findings sorted by severity.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {
					"type": "string",
					"description": "Project name as returned by build_graph or list_projects"
				},
				"include": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Detector names to run; empty means all"
				},
				"exclude": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Detector names to skip"
				},
				"thresholds": {
					"type": "object",
					"additionalProperties": {"type": "number"},
					"description": "Threshold overrides, e.g. {\"long_function_lines\": 80}"
				},
				"format": {
					"type": "string",
					"enum": ["json", "text"],
					"description": "Output format (default json)"
				}
			},
			"required": ["project"]
		}`),
	}, s.handleDetectSmells)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "query_graph",
		Description: "Execute a read-only Cypher-like graph query. Supports MATCH patterns with node labels, label alternation, relationship types, variable-length paths, WHERE filters (=, <>, =~, CONTAINS, STARTS WITH, <, >, NOT pattern) and RETURN with COUNT/DISTINCT/ORDER BY/LIMIT. At most 200 rows are returned.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "Cypher query, e.g. MATCH (a:File)-[:IMPORTS]->(b:File) RETURN a.path, b.path LIMIT 20"
				},
				"project": {
					"type": "string",
					"description": "Restrict the query to one project; empty queries every project"
				}
			},
			"required": ["query"]
		}`),
	}, s.handleQueryGraph)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_graph_schema",
		Description: "Return the schema of a project graph: node label counts, edge type counts, relationship patterns and sample names. Use before writing queries.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {
					"type": "string",
					"description": "Project name; empty means every project"
				}
			}
		}`),
	}, s.handleGetGraphSchema)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_projects",
		Description: "List all built projects with their root path, build time and node/edge counts.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleListProjects)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "delete_project",
		Description: "Delete a project and all its graph data (nodes, edges, file hashes). This action is irreversible.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project_name": {
					"type": "string",
					"description": "Name of the project to delete"
				}
			},
			"required": ["project_name"]
		}`),
	}, s.handleDeleteProject)
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return textResult(string(b))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// getBoolArg extracts a boolean argument, falling back to def.
func getBoolArg(args map[string]any, key string, def bool) bool {
	b, ok := args[key].(bool)
	if !ok {
		return def
	}
	return b
}

// getStringSliceArg extracts a list of strings; non-string items are skipped.
func getStringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// getNumberMapArg extracts an object of numbers. A non-numeric value is an
// error so bad thresholds are not silently dropped.
func getNumberMapArg(args map[string]any, key string) (map[string]float64, error) {
	raw, ok := args[key].(map[string]any)
	if !ok {
		return nil, nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		f, ok := v.(float64) // JSON numbers decode as float64
		if !ok {
			return nil, fmt.Errorf("%s.%s must be a number", key, k)
		}
		out[k] = f
	}
	return out, nil
}

// requireProject returns the project or a tool error when it does not exist.
func (s *Server) requireProject(name string) (*store.Project, *mcp.CallToolResult) {
	if name == "" {
		return nil, errResult("project is required")
	}
	proj, err := s.store.GetProject(name)
	if err != nil || proj == nil {
		return nil, errResult(fmt.Sprintf("project not found: %s", name))
	}
	return proj, nil
}
