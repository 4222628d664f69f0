package concore

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vas-solutus/arcad/internal/collab"
	"github.com/vas-solutus/arcad/internal/types"
)

// Start launches c's guest VM (allocating a fresh vsock CID on every
// start) and transitions it
// to running once the guest control plane answers. An explicit Start
// call resets restart-policy bookkeeping; the restart-policy loop
// itself starts containers through startForRestart instead.
func (core *Core) Start(ctx context.Context, idOrName string) error {
	c, err := core.Resolve(idOrName)
	if err != nil {
		return err
	}
	core.resetRestartCount(c)
	return core.startContainer(ctx, c)
}

// startForRestart re-launches a container the restart-policy loop
// decided should come back up, without touching its restart counters.
func (core *Core) startForRestart(ctx context.Context, c *Container) error {
	return core.startContainer(ctx, c)
}

// startableState reports the only lifecycle states startContainer may move
// a container out of. created and exited cover a plain start; restarting
// is the restart-policy loop's own re-entry after onGuestExit has
// already parked the container there.
func startableState(s types.ContainerState) bool {
	return s == types.StateCreated || s == types.StateExited || s == types.StateRestarting
}

func (core *Core) startContainer(ctx context.Context, c *Container) error {
	c.mu.Lock()
	old := c.State()
	if old == types.StateRunning {
		c.mu.Unlock()
		return nil
	}
	if !startableState(old) {
		c.mu.Unlock()
		return wrapErr(KindInvalidState, "start", fmt.Errorf("cannot start container in state %s", old))
	}
	record := c.record
	c.mu.Unlock()

	cid, err := core.allocateCID()
	if err != nil {
		return wrapErr(KindUnknown, "start: allocate cid", err)
	}

	vm, guest, err := core.launchVM(ctx, c, cid)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.vm.Store(&vm)
	c.guest.Store(guest)
	startedAt := now()
	c.record.StartedAt = &startedAt
	c.record.Pid = 0
	if _, err := c.transitionLocked(types.StateRunning, true); err != nil {
		c.mu.Unlock()
		_ = vm.ForceStop(ctx)
		_ = vm.Close()
		_ = guest.Close()
		return err
	}
	c.mu.Unlock()

	if core.net != nil {
		if err := core.net.ReconcileAll(ctx); err != nil {
			logrus.WithError(err).WithField("container", record.Name).Warn("concore: network reconciliation after start failed")
		}
	}
	if core.health != nil && record.HostConfig.Health != nil {
		core.health.Watch(c.ID, *record.HostConfig.Health)
	}

	for _, handles := range core.takePendingAttaches(c.ID) {
		core.wireAttach(c, handles)
	}

	go core.watchExit(c, vm)

	core.emit("container.start", c.ID, map[string]string{"name": record.Name})
	logrus.WithField("container", record.Name).Info("concore: container started")
	return nil
}

// Stop asks the guest to shut down gracefully, force-stopping the VM if
// it doesn't exit within timeout.
func (core *Core) Stop(ctx context.Context, idOrName string, timeout time.Duration) error {
	c, err := core.Resolve(idOrName)
	if err != nil {
		return err
	}
	if !c.Running() {
		return nil
	}

	vmPtr := c.vm.Load()
	if vmPtr == nil {
		return wrapErr(KindInvalidState, "stop", fmt.Errorf("container has no live vm"))
	}
	vm := *vmPtr

	c.explicitStop.Store(true)
	c.mu.Lock()
	c.record.StoppedByUser = true
	_ = c.persistLocked()
	c.mu.Unlock()

	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := vm.RequestStop(stopCtx); err != nil {
		logrus.WithError(err).WithField("container", c.toRecord().Name).Warn("concore: graceful stop request failed, forcing")
	}

	select {
	case <-stopCtx.Done():
		if err := vm.ForceStop(ctx); err != nil {
			return wrapErr(KindUnknown, "stop: force stop", err)
		}
	case <-waitForStopped(vm):
	}
	return nil
}

// waitForStopped returns a channel closed once vm reports a terminal
// state, used by Stop to race against its own timeout without
// duplicating watchExit's state-consumption loop.
func waitForStopped(vm collab.VM) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for state := range vm.StateChan() {
			if state == collab.VMStateStopped || state == collab.VMStateError {
				return
			}
		}
	}()
	return done
}

// Kill force-stops the VM immediately, bypassing graceful shutdown.
func (core *Core) Kill(ctx context.Context, idOrName string) error {
	c, err := core.Resolve(idOrName)
	if err != nil {
		return err
	}
	if !c.Running() {
		return nil
	}
	vmPtr := c.vm.Load()
	if vmPtr == nil {
		return wrapErr(KindInvalidState, "kill", fmt.Errorf("container has no live vm"))
	}
	c.explicitStop.Store(true)
	c.mu.Lock()
	c.record.StoppedByUser = true
	_ = c.persistLocked()
	c.mu.Unlock()
	if err := (*vmPtr).ForceStop(ctx); err != nil {
		return wrapErr(KindUnknown, "kill", err)
	}
	return nil
}

// Pause suspends the guest VM without tearing it down.
func (core *Core) Pause(ctx context.Context, idOrName string) error {
	c, err := core.Resolve(idOrName)
	if err != nil {
		return err
	}
	vmPtr := c.vm.Load()
	if vmPtr == nil || !c.Running() {
		return wrapErr(KindInvalidState, "pause", fmt.Errorf("container is not running"))
	}

	c.mu.Lock()
	if _, err := c.transitionLocked(types.StatePaused, false); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if err := (*vmPtr).Pause(ctx); err != nil {
		return wrapErr(KindUnknown, "pause", err)
	}
	core.emit("container.pause", c.ID, nil)
	return nil
}

// Unpause resumes a paused guest VM.
func (core *Core) Unpause(ctx context.Context, idOrName string) error {
	c, err := core.Resolve(idOrName)
	if err != nil {
		return err
	}
	vmPtr := c.vm.Load()
	if vmPtr == nil || c.State() != types.StatePaused {
		return wrapErr(KindInvalidState, "unpause", fmt.Errorf("container is not paused"))
	}

	if err := (*vmPtr).Resume(ctx); err != nil {
		return wrapErr(KindUnknown, "unpause", err)
	}

	c.mu.Lock()
	_, err = c.transitionLocked(types.StateRunning, false)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	core.emit("container.unpause", c.ID, nil)
	return nil
}

// Wait blocks until the container reaches a terminal run (exited or
// dead), returning its final exit code.
func (core *Core) Wait(ctx context.Context, idOrName string) (int, error) {
	c, err := core.Resolve(idOrName)
	if err != nil {
		return 0, err
	}

	c.mu.RLock()
	state := c.State()
	exitCode := c.record.ExitCode
	c.mu.RUnlock()
	if state == types.StateExited || state == types.StateDead {
		return exitCode, nil
	}

	ch := make(chan int, 1)
	c.waitMu.Lock()
	c.waiters = append(c.waiters, ch)
	c.waitMu.Unlock()

	select {
	case code := <-ch:
		return code, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Rename reassigns a container's name, failing if the new name is
// already in use.
func (core *Core) Rename(ctx context.Context, idOrName, newName string) error {
	if err := types.ValidateName(newName); err != nil {
		return wrapErr(KindInvalidArgument, "rename", err)
	}
	c, err := core.Resolve(idOrName)
	if err != nil {
		return err
	}

	core.mu.Lock()
	if _, exists := core.containersByName[newName]; exists {
		core.mu.Unlock()
		return wrapErr(KindConflict, "rename", ErrNameConflict)
	}
	c.mu.Lock()
	oldName := c.record.Name
	c.record.Name = newName
	err = c.persistLocked()
	c.mu.Unlock()
	if err != nil {
		core.mu.Unlock()
		return err
	}
	delete(core.containersByName, oldName)
	core.containersByName[newName] = c
	core.mu.Unlock()

	core.emit("container.rename", c.ID, map[string]string{"old_name": oldName, "new_name": newName})
	return nil
}

// Update patches a subset of a container's HostConfig (currently
// restart policy and resource limits), taking effect immediately for
// the restart policy and on the next start for resource limits, since
// this daemon has no live VM resize path.
func (core *Core) Update(ctx context.Context, idOrName string, patch types.HostConfig) error {
	c, err := core.Resolve(idOrName)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if patch.RestartPolicy.Name != "" {
		c.record.HostConfig.RestartPolicy = patch.RestartPolicy
	}
	if patch.Memory > 0 {
		c.record.HostConfig.Memory = patch.Memory
	}
	if patch.NanoCPUs > 0 {
		c.record.HostConfig.NanoCPUs = patch.NanoCPUs
	}
	return c.persistLocked()
}
