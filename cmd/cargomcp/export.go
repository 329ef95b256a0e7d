package main

import (
	"fmt"
	"sync"

	"github.com/fwojciec/cargomcp"
	"github.com/fwojciec/cargomcp/fs"
	"golang.org/x/sync/errgroup"
)

// exportConcurrency bounds the number of pages rendered at once.
const exportConcurrency = 4

// Run executes the export command.
func (c *ExportCmd) Run(deps *Dependencies) error {
	root, err := locate(deps, cargomcp.ScopeProject)
	if err != nil {
		return err
	}

	list, err := deps.Index.ListCrates(deps.Ctx, root)
	if err != nil {
		return fail(deps, err)
	}
	crate, ok := findCrate(list.Crates, c.Crate)
	if !ok {
		fmt.Fprintf(deps.Stderr, "error: crate %q not found. Use 'cargomcp deps' to see available crates.\n", c.Crate)
		return cargomcp.Errorf(cargomcp.EUNKNOWNCRATE, "crate %q not found", c.Crate)
	}

	// The trailing separator makes this a prefix lookup of every item below
	// the crate root, whose own page is added explicitly.
	res, err := deps.Index.FindSymbol(deps.Ctx, root, crate.DocName+"::", cargomcp.FindOptions{})
	if err != nil {
		return fail(deps, err)
	}

	rootPage := crate.DocName + "/index.html"
	paths := []string{rootPage}
	seen := map[string]bool{rootPage: true}
	for _, m := range res.Matches {
		if m.Crate != crate.DocName || seen[m.PhysicalPath] {
			continue
		}
		seen[m.PhysicalPath] = true
		paths = append(paths, m.PhysicalPath)
	}
	store := fs.NewExportStore(c.Out, crate.DocName)
	var mu sync.Mutex
	var skipped int

	g, ctx := errgroup.WithContext(deps.Ctx)
	g.SetLimit(exportConcurrency)
	for _, p := range paths {
		g.Go(func() error {
			page, err := deps.Index.GetDocumentation(ctx, root, p)
			if cargomcp.ErrorCode(err) == cargomcp.ESTALE {
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			} else if err != nil {
				return err
			}
			return store.Save(ctx, page)
		})
	}
	if err := g.Wait(); err != nil {
		_ = store.Abort()
		return fail(deps, err)
	}
	if err := store.Commit(); err != nil {
		_ = store.Abort()
		return fail(deps, err)
	}

	fmt.Fprintf(deps.Stdout, "Exported %d pages of %s to %s\n", len(paths)-skipped, crate.ID(), store.Dir())
	if skipped > 0 {
		fmt.Fprintf(deps.Stderr, "warning: %d pages changed during export and were skipped\n", skipped)
	}
	return nil
}

// findCrate looks up a crate by name or name@version.
func findCrate(crates []cargomcp.CrateDescriptor, id string) (cargomcp.CrateDescriptor, bool) {
	name, version := cargomcp.ParseCrateID(id)
	for _, c := range crates {
		if (c.Name == name || c.DocName == name) && (version == "" || c.Version == version) {
			return c, true
		}
	}
	return cargomcp.CrateDescriptor{}, false
}
