package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/cargomcp"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx          context.Context
	Stdout       io.Writer
	Stderr       io.Writer
	Logger       *slog.Logger
	ProjectDir   string
	Cargo        string
	Locator      cargomcp.ProjectLocator
	Index        cargomcp.DocIndexService
	Orchestrator cargomcp.Orchestrator
	Snapshots    cargomcp.SnapshotStore
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	ProjectDir  string        `name:"project-dir" short:"C" env:"CARGOMCP_PROJECT_DIR" default:"." help:"Directory inside the Cargo project"`
	Cargo       string        `env:"CARGOMCP_CARGO" default:"cargo" help:"Cargo program to run"`
	DB          string        `name:"db" env:"CARGOMCP_DB" help:"Index database path (default ~/.cargomcp/index.db)"`
	GracePeriod time.Duration `default:"5s" help:"Time a cancelled process gets to exit before it is killed"`
	Retention   time.Duration `default:"30m" help:"How long finished tasks stay pollable"`
	DocTimeout  time.Duration `default:"20m" help:"Time limit for documentation builds"`
	LogLevel    string        `enum:"debug,info,warn,error" default:"info" help:"Log level (debug, info, warn, error)"`

	Serve    ServeCmd    `cmd:"" help:"Serve MCP tools over stdin and stdout"`
	Deps     DepsCmd     `cmd:"" help:"List the crates of the project"`
	Overview OverviewCmd `cmd:"" help:"Show the crate-level documentation of a crate"`
	Find     FindCmd     `cmd:"" help:"Look up documented items by logical path"`
	Doc      DocCmd      `cmd:"" help:"Show one documentation page"`
	Run      RunCmd      `cmd:"" help:"Run a cargo command and stream its diagnostics"`
	Export   ExportCmd   `cmd:"" help:"Export the documentation of a crate as markdown files"`
	Cache    CacheCmd    `cmd:"" help:"Inspect or clear stored documentation indexes"`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct{}

// DepsCmd is the "deps" subcommand.
type DepsCmd struct{}

// OverviewCmd is the "overview" subcommand.
type OverviewCmd struct {
	Crate string `arg:"" help:"Crate name or name@version"`
}

// FindCmd is the "find" subcommand.
type FindCmd struct {
	Path    string `arg:"" help:"Logical path, e.g. crate::util::Helper"`
	Limit   int    `short:"n" default:"50" help:"Maximum number of matches"`
	Refresh bool   `help:"Rebuild the documentation index first"`
}

// DocCmd is the "doc" subcommand.
type DocCmd struct {
	Path string `arg:"" help:"Physical path as printed by find or overview"`
	Out  string `short:"o" help:"Write the page as a markdown file under this directory"`
}

// RunCmd is the "run" subcommand.
type RunCmd struct {
	Kind      string        `arg:"" enum:"build,check,test,run,clippy,doc,bench" help:"Cargo subcommand"`
	Args      []string      `arg:"" optional:"" passthrough:"" help:"Arguments passed to cargo"`
	Timeout   time.Duration `default:"10m" help:"Wall clock limit measured from spawn"`
	NoQueue   bool          `help:"Fail instead of waiting when another build is running"`
	Workspace bool          `help:"Run in the enclosing workspace root"`
	Verbose   bool          `short:"v" help:"Also print notes"`
}

// ExportCmd is the "export" subcommand.
type ExportCmd struct {
	Crate string `arg:"" help:"Crate name or name@version"`
	Out   string `short:"o" default:"docs" help:"Directory to export into"`
}

// CacheCmd groups the cache subcommands.
type CacheCmd struct {
	List  CacheListCmd  `cmd:"" help:"List stored documentation indexes"`
	Clear CacheClearCmd `cmd:"" help:"Delete the stored indexes of the project"`
}

// CacheListCmd is the "cache list" subcommand.
type CacheListCmd struct {
	Limit int `short:"n" default:"20" help:"Maximum number of entries"`
}

// CacheClearCmd is the "cache clear" subcommand.
type CacheClearCmd struct {
	Force bool `help:"Confirm deletion"`
}
