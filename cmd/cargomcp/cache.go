package main

import (
	"fmt"

	"github.com/fwojciec/cargomcp"
)

// Run executes the cache list command.
func (c *CacheListCmd) Run(deps *Dependencies) error {
	infos, err := deps.Snapshots.FindSnapshots(deps.Ctx, cargomcp.SnapshotFilter{Limit: c.Limit})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", cargomcp.ErrorMessage(err))
		return err
	}

	if len(infos) == 0 {
		fmt.Fprintln(deps.Stdout, "No stored indexes. Indexes are stored after the first documentation lookup.")
		return nil
	}

	for _, info := range infos {
		fmt.Fprintf(deps.Stdout, "%s  %s  %d crates  %d pages  %s\n",
			info.CreatedAt.Format("2006-01-02 15:04"), info.Hash, info.Crates, info.Pages, info.Root)
	}
	return nil
}

// Run executes the cache clear command.
func (c *CacheClearCmd) Run(deps *Dependencies) error {
	if !c.Force {
		fmt.Fprintf(deps.Stderr, "error: use --force to confirm deletion\n")
		return cargomcp.Errorf(cargomcp.EINVALID, "use --force to confirm deletion")
	}

	root, err := locate(deps, cargomcp.ScopeProject)
	if err != nil {
		return err
	}

	if err := deps.Snapshots.DeleteSnapshots(deps.Ctx, root); err != nil {
		if cargomcp.ErrorCode(err) == cargomcp.ENOTFOUND {
			fmt.Fprintf(deps.Stderr, "error: no stored index for %s. Use 'cargomcp cache list' to see stored indexes.\n", root)
		} else {
			fmt.Fprintf(deps.Stderr, "error: %s\n", cargomcp.ErrorMessage(err))
		}
		return err
	}

	fmt.Fprintf(deps.Stdout, "Deleted stored index for %s\n", root)
	return nil
}
