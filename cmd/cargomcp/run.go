package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fwojciec/cargomcp"
	"github.com/fwojciec/cargomcp/cargo"
)

// Run executes the run command. Diagnostics are printed as the task
// produces them.
func (c *RunCmd) Run(deps *Dependencies) error {
	scope := cargomcp.ScopeProject
	if c.Workspace {
		scope = cargomcp.ScopeWorkspace
	}
	root, err := locate(deps, scope)
	if err != nil {
		return err
	}

	gate := cargomcp.GateQueue
	if c.NoQueue {
		gate = cargomcp.GateReject
	}
	cmd, err := cargo.NewCommand(deps.Cargo, c.Kind, c.Args, root, c.Timeout, gate)
	if err != nil {
		return fail(deps, err)
	}

	snap, err := deps.Orchestrator.Start(deps.Ctx, cmd)
	if err != nil {
		if cargomcp.ErrorCode(err) == cargomcp.EBUSY {
			fmt.Fprintf(deps.Stderr, "Hint: drop --no-queue to wait for the running build\n")
		}
		return fail(deps, err)
	}
	defer func() { _ = deps.Orchestrator.Acknowledge(deps.Ctx, snap.ID) }()

	for d := range deps.Orchestrator.Stream(deps.Ctx, snap.ID, 0) {
		if d.Severity == cargomcp.SeverityNote && !c.Verbose {
			continue
		}
		fmt.Fprintln(deps.Stdout, cargomcp.FormatDiagnostic(d))
	}

	final, err := deps.Orchestrator.Wait(deps.Ctx, snap.ID)
	if err != nil {
		// Interrupted: stop the process before giving up on it.
		if cancelled, cerr := deps.Orchestrator.Cancel(context.WithoutCancel(deps.Ctx), snap.ID); cerr == nil {
			final = cancelled
		} else {
			return fail(deps, err)
		}
	}

	fmt.Fprintf(deps.Stdout, "%s: %s, %d errors, %d warnings, %s\n", final.ID, final.State, final.Errors, final.Warnings, final.Elapsed.Round(time.Millisecond))
	if final.State != cargomcp.TaskSucceeded {
		return cargomcp.Errorf(cargomcp.EINTERNAL, "cargo %s %s", c.Kind, final.State)
	}
	return nil
}
