package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fwojciec/cargomcp"
	"github.com/fwojciec/cargomcp/fs"
)

// locate resolves the project of a command and reports failures.
func locate(deps *Dependencies, scope cargomcp.Scope) (cargomcp.ProjectRoot, error) {
	root, err := deps.Locator.Locate(deps.Ctx, deps.ProjectDir, scope)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", cargomcp.ErrorMessage(err))
		return "", err
	}
	return root, nil
}

// fail prints err followed by the build errors it carries.
func fail(deps *Dependencies, err error) error {
	fmt.Fprintf(deps.Stderr, "error: %s\n", cargomcp.ErrorMessage(err))
	var be *cargomcp.DocBuildError
	if errors.As(err, &be) && be.Task != nil {
		for _, d := range be.Task.Diagnostics {
			if d.Severity == cargomcp.SeverityError {
				fmt.Fprintf(deps.Stderr, "  %s\n", cargomcp.FormatDiagnostic(d))
			}
		}
	}
	return err
}

// Run executes the deps command.
func (c *DepsCmd) Run(deps *Dependencies) error {
	root, err := locate(deps, cargomcp.ScopeProject)
	if err != nil {
		return err
	}

	list, err := deps.Index.ListCrates(deps.Ctx, root)
	if err != nil {
		return fail(deps, err)
	}

	for _, crate := range list.Crates {
		marker := " "
		if crate.Member {
			marker = "*"
		}
		fmt.Fprintf(deps.Stdout, "%s %-40s %-8s %s\n", marker, crate.ID(), crate.Source, strings.Join(crate.Features, ","))
	}
	return nil
}

// Run executes the overview command.
func (c *OverviewCmd) Run(deps *Dependencies) error {
	root, err := locate(deps, cargomcp.ScopeProject)
	if err != nil {
		return err
	}

	ov, err := deps.Index.Overview(deps.Ctx, root, c.Crate)
	if err != nil {
		return fail(deps, err)
	}

	fmt.Fprintf(deps.Stdout, "# %s\n(%s)\n\n", ov.Crate.ID(), ov.PhysicalPath)
	fmt.Fprintln(deps.Stdout, ov.Markdown)
	return nil
}

// Run executes the find command.
func (c *FindCmd) Run(deps *Dependencies) error {
	root, err := locate(deps, cargomcp.ScopeProject)
	if err != nil {
		return err
	}

	res, err := deps.Index.FindSymbol(deps.Ctx, root, c.Path, cargomcp.FindOptions{Limit: c.Limit, Refresh: c.Refresh})
	if err != nil {
		return fail(deps, err)
	}

	if len(res.Matches) == 0 {
		fmt.Fprintf(deps.Stdout, "No items match %s.\n", res.Normalized)
		return nil
	}
	for _, m := range res.Matches {
		fmt.Fprintf(deps.Stdout, "%-9s %-8s %s\n          %s\n", m.Kind, m.Match, m.LogicalPath, m.PhysicalPath)
	}
	if res.Total > len(res.Matches) {
		fmt.Fprintf(deps.Stdout, "(%d of %d matches shown)\n", len(res.Matches), res.Total)
	}
	return nil
}

// Run executes the doc command.
func (c *DocCmd) Run(deps *Dependencies) error {
	root, err := locate(deps, cargomcp.ScopeProject)
	if err != nil {
		return err
	}

	page, err := deps.Index.GetDocumentation(deps.Ctx, root, c.Path)
	if err != nil {
		if cargomcp.ErrorCode(err) == cargomcp.ESTALE {
			fmt.Fprintf(deps.Stderr, "Hint: run 'cargomcp find' to get a current page path\n")
		}
		return fail(deps, err)
	}

	if c.Out == "" {
		fmt.Fprintln(deps.Stdout, page.Markdown)
		return nil
	}

	path, err := fs.NewWriter(c.Out).WritePage(deps.Ctx, page)
	if err != nil {
		return fail(deps, err)
	}
	fmt.Fprintf(deps.Stdout, "Wrote %s\n", path)
	return nil
}
