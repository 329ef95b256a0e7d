// Package mcp exposes cargomcp services as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fwojciec/cargomcp"
	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Name is the implementation name reported to MCP clients.
const Name = "cargomcp"

// DefaultTimeout applies to run_command calls without timeout_secs.
const DefaultTimeout = 600

// DefaultLimit applies to find_symbol calls without limit.
const DefaultLimit = 50

// Instructions are sent to clients during initialization.
const Instructions = `Tools for a local Cargo project.
Use list_dependencies, crate_overview and find_symbol to explore the API, then
get_documentation with a physical_path returned by find_symbol or
crate_overview. Never construct a physical_path yourself.
run_command starts cargo in the background and returns a task id. Call
poll_task with the returned next cursor as since until the task is terminal.`

// Server dispatches MCP tool calls to the orchestrator and the
// documentation index.
type Server struct {
	Locator      cargomcp.ProjectLocator
	Index        cargomcp.DocIndexService
	Orchestrator cargomcp.Orchestrator

	// ProjectDir is used when a call omits project_dir.
	ProjectDir string

	// Cargo is the cargo program run_command invokes.
	Cargo string

	// Version is reported to clients.
	Version string
}

// NewServer creates a new Server.
func NewServer(locator cargomcp.ProjectLocator, index cargomcp.DocIndexService, orchestrator cargomcp.Orchestrator) *Server {
	return &Server{
		Locator:      locator,
		Index:        index,
		Orchestrator: orchestrator,
		ProjectDir:   ".",
		Cargo:        "cargo",
		Version:      "dev",
	}
}

// handler runs one validated tool call and returns its structured result
// and its text rendering.
type handler func(ctx context.Context, schema *jsonschema.Resolved, raw json.RawMessage) (any, string, error)

type tool struct {
	name        string
	description string
	schema      *jsonschema.Schema
	handle      handler
}

// Register adds every tool to server.
func (s *Server) Register(server *sdk.Server) error {
	for _, t := range s.tools() {
		resolved, err := t.schema.Resolve(nil)
		if err != nil {
			return fmt.Errorf("resolve %s schema: %w", t.name, err)
		}
		server.AddTool(&sdk.Tool{
			Name:        t.name,
			Description: t.description,
			InputSchema: t.schema,
		}, s.wrap(t.handle, resolved))
	}
	return nil
}

// MCPServer creates an MCP server with every tool registered.
func (s *Server) MCPServer() (*sdk.Server, error) {
	server := sdk.NewServer(&sdk.Implementation{Name: Name, Version: s.Version}, &sdk.ServerOptions{
		Instructions: Instructions,
	})
	if err := s.Register(server); err != nil {
		return nil, err
	}
	return server, nil
}

// Run serves MCP over stdin and stdout until the client disconnects or ctx
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server, err := s.MCPServer()
	if err != nil {
		return err
	}
	return server.Run(ctx, &sdk.StdioTransport{})
}

// wrap turns a handler into an SDK tool handler. Failures are reported as
// tool results carrying an error body, never as protocol errors.
func (s *Server) wrap(h handler, schema *jsonschema.Resolved) sdk.ToolHandler {
	return func(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
		var raw json.RawMessage
		if req.Params != nil {
			raw = req.Params.Arguments
		}
		value, text, err := h(ctx, schema, raw)
		if err != nil {
			return errorResult(err), nil
		}
		return &sdk.CallToolResult{
			Content:           []sdk.Content{&sdk.TextContent{Text: text}},
			StructuredContent: value,
		}, nil
	}
}

// locate resolves the project of a call.
func (s *Server) locate(ctx context.Context, dir string, scope cargomcp.Scope) (cargomcp.ProjectRoot, error) {
	if dir == "" {
		dir = s.ProjectDir
	}
	if dir == "" {
		dir = "."
	}
	root, err := s.Locator.Locate(ctx, dir, scope)
	if err != nil {
		return "", fmt.Errorf("locate project %s: %w", dir, err)
	}
	return root, nil
}
