package main

import (
	"github.com/fwojciec/cargomcp/mcp"
)

// Run executes the serve command.
func (c *ServeCmd) Run(deps *Dependencies) error {
	s := mcp.NewServer(deps.Locator, deps.Index, deps.Orchestrator)
	s.ProjectDir = deps.ProjectDir
	s.Cargo = deps.Cargo
	s.Version = version

	deps.Logger.Info("serving MCP on stdio", "project_dir", deps.ProjectDir, "version", version)
	return s.Run(deps.Ctx)
}
