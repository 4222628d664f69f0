package concore

import (
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vas-solutus/arcad/internal/collab"
	"github.com/vas-solutus/arcad/internal/types"
)

// exitCodeFor translates the VM's terminal state into a Docker-style
// exit code when the guest never reported one of its own (e.g. the VM
// crashed instead of vminit relaying a process exit status).
func exitCodeFor(state collab.VMState, reported int) int {
	if state == collab.VMStateError {
		return 137
	}
	return reported
}

// onGuestExit runs once per container run, the moment its VM leaves
// the running/paused state set. It records the exit, fires waiters,
// and consults the restart policy before handing the container back to
// StateExited (or re-starting it).
func (core *Core) onGuestExit(c *Container, vmState collab.VMState) {
	c.mu.Lock()
	wasExplicit := c.explicitStop.Swap(false)
	c.vm.Store(nil)
	if g := c.guest.Load(); g != nil {
		_ = g.Close()
		c.guest.Store(nil)
	}

	exitCode := exitCodeFor(vmState, c.record.ExitCode)
	finishedAt := now()
	c.record.ExitCode = exitCode
	c.record.FinishedAt = &finishedAt

	policy := c.record.HostConfig.RestartPolicy
	attempts := c.record.Restart.Attempts
	willRestart := policy.ShouldRestart(exitCode, attempts, wasExplicit)

	// A container the restart policy is about to relaunch goes straight
	// to "restarting" rather than parking in "exited" first, matching
	// what a caller polling status actually observes.
	target := types.StateExited
	if willRestart {
		target = types.StateRestarting
	}
	if _, err := c.transitionLocked(target, true); err != nil {
		logrus.WithError(err).WithField("container", c.record.Name).Error("concore: failed to transition container after exit")
	}
	name := c.record.Name
	c.mu.Unlock()

	if core.health != nil {
		core.health.Unwatch(c.ID)
	}

	logrus.WithFields(logrus.Fields{
		"container": name,
		"exit_code": exitCode,
		"explicit":  wasExplicit,
	}).Info("concore: container exited")
	core.emit("container.die", c.ID, map[string]string{"exit_code": strconv.Itoa(exitCode)})

	core.notifyWaiters(c, exitCode)

	if willRestart {
		core.scheduleRestart(c, attempts)
	}
}

func (core *Core) notifyWaiters(c *Container, exitCode int) {
	c.waitMu.Lock()
	waiters := c.waiters
	c.waiters = nil
	signals := c.exitSignals
	c.exitSignals = nil
	c.waitMu.Unlock()
	for _, ch := range waiters {
		ch <- exitCode
		close(ch)
	}
	for _, sig := range signals {
		close(sig)
	}
}

// restartDelay is the fixed pause before a restart-policy-triggered
// restart attempt.
const restartDelay = time.Second

// scheduleRestart waits restartDelay and retries Start, recording the
// attempt so the next exit sees an incremented counter.
func (core *Core) scheduleRestart(c *Container, attemptsSoFar int) {
	delay := restartDelay

	c.mu.Lock()
	c.record.Restart.Attempts = attemptsSoFar + 1
	c.record.Restart.NextDelay = delay
	_ = c.persistLocked()
	c.mu.Unlock()

	go func() {
		select {
		case <-time.After(delay):
		case <-core.ctx.Done():
			return
		}
		if err := core.startForRestart(core.ctx, c); err != nil {
			logrus.WithError(err).WithField("container", c.record.Name).Error("concore: restart attempt failed")
		}
	}()
}

// resetRestartCount clears restart bookkeeping, called whenever a
// container is explicitly started by the user rather than by the
// restart-policy loop. StoppedByUser is cleared alongside it: a fresh
// user-requested start supersedes whatever stopped the container last.
func (core *Core) resetRestartCount(c *Container) {
	c.mu.Lock()
	c.record.Restart = types.RestartCount{}
	c.record.StoppedByUser = false
	_ = c.persistLocked()
	c.mu.Unlock()
}

