package concore

import (
	"context"
	"fmt"
	"sort"

	"github.com/vas-solutus/arcad/internal/fsbaseline"
	"github.com/vas-solutus/arcad/internal/guestrpc"
	"github.com/vas-solutus/arcad/internal/types"
)

// captureBaseline snapshots c's rootfs and persists it, called once at
// create time for non-deferred containers (a deferred container's
// rootfs isn't materialized yet).
func (core *Core) captureBaseline(c *Container) error {
	baseline, errs := fsbaseline.Capture(c.ID, core.containerRootfsDir(c.ID))
	if len(errs) > 0 {
		return fmt.Errorf("capture baseline for %s: %d errors, first: %w", c.ID, len(errs), errs[0])
	}
	return core.store.SetBaseline(baseline)
}

// GetChanges implements getChanges: for a running container it first
// asks the guest to flush its filesystem buffers, then diffs the
// current rootfs against the stored baseline.
func (core *Core) GetChanges(ctx context.Context, idOrName string) ([]types.DiffEntry, error) {
	c, err := core.Resolve(idOrName)
	if err != nil {
		return nil, err
	}

	if c.Running() {
		if err := c.UseGuest(func(g *guestrpc.Client) error {
			return g.SyncFilesystem(ctx)
		}); err != nil {
			return nil, wrapErr(KindGuestUnreachable, "getChanges: sync", err)
		}
	}

	baseline, err := core.store.GetBaseline(c.ID)
	if err != nil {
		return nil, wrapErr(KindUnknown, "getChanges: load baseline", err)
	}

	diff, err := fsbaseline.Diff(baseline, core.containerRootfsDir(c.ID))
	if err != nil {
		return nil, wrapErr(KindUnknown, "getChanges: diff", err)
	}

	sort.Slice(diff, func(i, j int) bool { return diff[i].Path < diff[j].Path })
	return diff, nil
}
