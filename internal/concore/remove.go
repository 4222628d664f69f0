package concore

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vas-solutus/arcad/internal/types"
)

const defaultStopTimeout = 10 * time.Second

// Remove deletes a container's row and every resource scoped to it:
// its network attachments, log files and filesystem baseline. A
// running container must be stopped first unless force is set, in
// which case Remove kills it.
func (core *Core) Remove(ctx context.Context, idOrName string, force bool) error {
	c, err := core.Resolve(idOrName)
	if err != nil {
		return err
	}

	if c.Running() {
		if !force {
			return wrapErr(KindConflict, "remove", fmt.Errorf("container is running: stop it first or use force"))
		}
		if err := core.Kill(ctx, c.ID); err != nil {
			return wrapErr(KindUnknown, "remove: kill", err)
		}
	}

	c.mu.Lock()
	if _, err := c.transitionLocked(types.StateRemoving, false); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if core.net != nil {
		attachments, err := core.net.ListContainerAttachments(c.ID)
		if err != nil {
			logrus.WithError(err).WithField("container", c.ID).Warn("concore: failed to list attachments during remove")
		}
		for _, a := range attachments {
			if err := core.net.Detach(ctx, a.NetworkID, c.ID); err != nil {
				logrus.WithError(err).WithField("container", c.ID).Warn("concore: failed to detach network during remove")
			}
		}
	}
	if core.ports != nil {
		_ = core.ports.Clear(c.ID)
	}
	if core.logs != nil {
		_ = core.logs.Close(c.ID)
	}
	if err := core.store.DeleteBaseline(c.ID); err != nil {
		logrus.WithError(err).WithField("container", c.ID).Warn("concore: failed to delete filesystem baseline")
	}
	if err := core.store.DeleteContainer(c.ID); err != nil {
		return wrapErr(KindUnknown, "remove: delete row", err)
	}

	core.mu.Lock()
	core.unregisterLocked(c)
	core.mu.Unlock()

	name := c.toRecord().Name
	core.emit("container.remove", c.ID, nil)
	logrus.WithField("container", name).Info("concore: container removed")
	return nil
}

// StopForRemoval is a convenience used by the daemon's shutdown path to
// stop every running container with the default timeout, swallowing
// per-container errors into the log rather than failing the whole
// shutdown on one stuck guest.
func (core *Core) StopForRemoval(ctx context.Context) {
	for _, c := range core.List() {
		if !c.State.Running() {
			continue
		}
		if err := core.Stop(ctx, c.ID, defaultStopTimeout); err != nil {
			logrus.WithError(err).WithField("container", c.Name).Error("concore: failed to stop container during shutdown")
		}
	}
}
