package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/cargomcp"
	"github.com/fwojciec/cargomcp/cargo"
	"github.com/google/jsonschema-go/jsonschema"
)

func (s *Server) tools() []tool {
	return []tool{
		{
			name:        "list_dependencies",
			description: "List the crates of the project and its dependencies as crate ids (name@version) with source and enabled features.",
			schema:      object(nil, map[string]*jsonschema.Schema{"project_dir": projectDir}),
			handle:      s.listDependencies,
		},
		{
			name:        "crate_overview",
			description: "Return the crate-level documentation of a crate as markdown, generated locally with cargo doc.",
			schema: object([]string{"crate"}, map[string]*jsonschema.Schema{
				"project_dir": projectDir,
				"crate":       nonEmpty("Crate name or crate id (name@version)."),
			}),
			handle: s.crateOverview,
		},
		{
			name:        "find_symbol",
			description: "Look up documented items by logical path, e.g. crate::util::Helper or serde::de. Returns exact matches, re-exports and prefix matches with the physical_path of each documentation page.",
			schema: object([]string{"path"}, map[string]*jsonschema.Schema{
				"project_dir": projectDir,
				"path":        nonEmpty("Logical path of the item. A leading crate:: refers to the project's own crate."),
				"limit":       integer("Maximum number of matches to return.", 1, 500, "50"),
				"refresh":     boolean("Rebuild the documentation index before the lookup."),
			}),
			handle: s.findSymbol,
		},
		{
			name:        "get_documentation",
			description: "Return one documentation page as markdown. Only accepts a physical_path returned by find_symbol or crate_overview.",
			schema: object([]string{"physical_path"}, map[string]*jsonschema.Schema{
				"project_dir":   projectDir,
				"physical_path": nonEmpty("Page path exactly as returned by find_symbol or crate_overview."),
			}),
			handle: s.getDocumentation,
		},
		{
			name:        "run_command",
			description: "Start a cargo command in the background and return its task. Use poll_task to read diagnostics as they arrive.",
			schema: object([]string{"command"}, map[string]*jsonschema.Schema{
				"project_dir":  projectDir,
				"command":      enum("Cargo subcommand to run.", cargo.Kinds),
				"args":         {Type: "array", Items: str(""), Description: "Extra arguments passed to cargo after the subcommand."},
				"timeout_secs": integer("Wall clock limit measured from spawn.", 1, 7200, "600"),
				"queue":        boolean("Wait for a running build in the same project instead of failing with project_busy. Defaults to true."),
				"workspace":    boolean("Run in the enclosing workspace root instead of the nearest package."),
			}),
			handle: s.runCommand,
		},
		{
			name:        "poll_task",
			description: "Return the state of a task and the diagnostics produced since the given cursor.",
			schema: object([]string{"task_id"}, map[string]*jsonschema.Schema{
				"task_id":     nonEmpty("Task id returned by run_command."),
				"since":       integer("Return diagnostics from this sequence number on. Pass the previous next value.", 0, 0, "0"),
				"acknowledge": boolean("Forget the task once it is terminal. Later polls fail with not_found."),
			}),
			handle: s.pollTask,
		},
		{
			name:        "cancel_task",
			description: "Stop a task. Cancelling a finished task returns its final state.",
			schema: object([]string{"task_id"}, map[string]*jsonschema.Schema{
				"task_id": nonEmpty("Task id returned by run_command."),
			}),
			handle: s.cancelTask,
		},
	}
}

type dependenciesArgs struct {
	ProjectDir string `json:"project_dir"`
}

func (s *Server) listDependencies(ctx context.Context, schema *jsonschema.Resolved, raw json.RawMessage) (any, string, error) {
	var args dependenciesArgs
	if err := decode(schema, raw, &args); err != nil {
		return nil, "", err
	}
	root, err := s.locate(ctx, args.ProjectDir, cargomcp.ScopeProject)
	if err != nil {
		return nil, "", err
	}

	list, err := s.Index.ListCrates(ctx, root)
	if err != nil {
		return nil, "", err
	}

	var b strings.Builder
	for _, c := range list.Crates {
		b.WriteString(c.ID())
		if c.Member {
			b.WriteString(" (workspace member)")
		}
		if len(c.Features) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(c.Features, ", "))
		}
		b.WriteString("\n")
	}
	return list, b.String(), nil
}

type overviewArgs struct {
	ProjectDir string `json:"project_dir"`
	Crate      string `json:"crate"`
}

func (s *Server) crateOverview(ctx context.Context, schema *jsonschema.Resolved, raw json.RawMessage) (any, string, error) {
	var args overviewArgs
	if err := decode(schema, raw, &args); err != nil {
		return nil, "", err
	}
	root, err := s.locate(ctx, args.ProjectDir, cargomcp.ScopeProject)
	if err != nil {
		return nil, "", err
	}

	ov, err := s.Index.Overview(ctx, root, args.Crate)
	if err != nil {
		return nil, "", err
	}

	text := fmt.Sprintf("# %s\nphysical_path: %s\n\n%s", ov.Crate.ID(), ov.PhysicalPath, ov.Markdown)
	return ov, text, nil
}

type findArgs struct {
	ProjectDir string `json:"project_dir"`
	Path       string `json:"path"`
	Limit      *int   `json:"limit"`
	Refresh    bool   `json:"refresh"`
}

func (s *Server) findSymbol(ctx context.Context, schema *jsonschema.Resolved, raw json.RawMessage) (any, string, error) {
	var args findArgs
	if err := decode(schema, raw, &args); err != nil {
		return nil, "", err
	}
	root, err := s.locate(ctx, args.ProjectDir, cargomcp.ScopeProject)
	if err != nil {
		return nil, "", err
	}

	limit := DefaultLimit
	if args.Limit != nil {
		limit = *args.Limit
	}
	res, err := s.Index.FindSymbol(ctx, root, args.Path, cargomcp.FindOptions{Limit: limit, Refresh: args.Refresh})
	if err != nil {
		return nil, "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d matches for %s (index %s)\n", len(res.Matches), res.Total, res.Normalized, res.Version)
	for _, m := range res.Matches {
		fmt.Fprintf(&b, "%s %s [%s] -> %s\n", m.Kind, m.LogicalPath, m.Match, m.PhysicalPath)
	}
	return res, b.String(), nil
}

type documentationArgs struct {
	ProjectDir   string `json:"project_dir"`
	PhysicalPath string `json:"physical_path"`
}

func (s *Server) getDocumentation(ctx context.Context, schema *jsonschema.Resolved, raw json.RawMessage) (any, string, error) {
	var args documentationArgs
	if err := decode(schema, raw, &args); err != nil {
		return nil, "", err
	}
	root, err := s.locate(ctx, args.ProjectDir, cargomcp.ScopeProject)
	if err != nil {
		return nil, "", err
	}

	page, err := s.Index.GetDocumentation(ctx, root, args.PhysicalPath)
	if err != nil {
		return nil, "", err
	}
	return page, page.Markdown, nil
}

type runArgs struct {
	ProjectDir  string   `json:"project_dir"`
	Command     string   `json:"command"`
	Args        []string `json:"args"`
	TimeoutSecs *int     `json:"timeout_secs"`
	Queue       *bool    `json:"queue"`
	Workspace   bool     `json:"workspace"`
}

func (s *Server) runCommand(ctx context.Context, schema *jsonschema.Resolved, raw json.RawMessage) (any, string, error) {
	var args runArgs
	if err := decode(schema, raw, &args); err != nil {
		return nil, "", err
	}

	scope := cargomcp.ScopeProject
	if args.Workspace {
		scope = cargomcp.ScopeWorkspace
	}
	root, err := s.locate(ctx, args.ProjectDir, scope)
	if err != nil {
		return nil, "", err
	}

	timeout := DefaultTimeout
	if args.TimeoutSecs != nil {
		timeout = *args.TimeoutSecs
	}
	gate := cargomcp.GateQueue
	if args.Queue != nil && !*args.Queue {
		gate = cargomcp.GateReject
	}

	cmd, err := cargo.NewCommand(s.Cargo, args.Command, args.Args, root, time.Duration(timeout)*time.Second, gate)
	if err != nil {
		return nil, "", err
	}
	snap, err := s.Orchestrator.Start(ctx, cmd)
	if err != nil {
		return nil, "", fmt.Errorf("cargo %s in %s: %w", args.Command, root, err)
	}
	return snap, cargomcp.FormatSnapshot(snap, false), nil
}

type pollArgs struct {
	TaskID      string `json:"task_id"`
	Since       int    `json:"since"`
	Acknowledge bool   `json:"acknowledge"`
}

// PollResult is a task snapshot plus whether the task was acknowledged.
type PollResult struct {
	*cargomcp.TaskSnapshot
	Acknowledged bool `json:"acknowledged"`
}

func (s *Server) pollTask(ctx context.Context, schema *jsonschema.Resolved, raw json.RawMessage) (any, string, error) {
	var args pollArgs
	if err := decode(schema, raw, &args); err != nil {
		return nil, "", err
	}

	id := cargomcp.TaskID(args.TaskID)
	snap, err := s.Orchestrator.Poll(ctx, id, args.Since)
	if err != nil {
		return nil, "", err
	}

	res := &PollResult{TaskSnapshot: snap}
	if args.Acknowledge && snap.State.Terminal() {
		if err := s.Orchestrator.Acknowledge(ctx, id); err != nil {
			return nil, "", err
		}
		res.Acknowledged = true
	}

	text := cargomcp.FormatSnapshot(snap, false)
	if !snap.State.Terminal() {
		text += fmt.Sprintf("next: %d\n", snap.Next)
	}
	return res, text, nil
}

type cancelArgs struct {
	TaskID string `json:"task_id"`
}

func (s *Server) cancelTask(ctx context.Context, schema *jsonschema.Resolved, raw json.RawMessage) (any, string, error) {
	var args cancelArgs
	if err := decode(schema, raw, &args); err != nil {
		return nil, "", err
	}

	snap, err := s.Orchestrator.Cancel(ctx, cargomcp.TaskID(args.TaskID))
	if err != nil {
		return nil, "", err
	}
	return snap, cargomcp.FormatSnapshot(snap, false), nil
}
