package concore

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vas-solutus/arcad/internal/types"
)

// Load rebuilds the in-memory registry from the store and performs
// crash recovery: any row left in a running-family state by an unclean
// shutdown is rewritten to exited/137, since its VM and vsock
// connection no longer exist in this process. VMs are not
// reconstructed here; they come back lazily on the next Start, per
// spec.md's crash-recovery contract. Restart-policy evaluation is the
// caller's responsibility, run only after NetworkCore and VolumeStore
// are wired in (ApplyRestartPolicies).
func (core *Core) Load() error {
	records, err := core.store.GetContainers()
	if err != nil {
		return fmt.Errorf("concore: load: %w", err)
	}

	core.mu.Lock()
	defer core.mu.Unlock()

	for _, record := range records {
		if record.State.Running() {
			logrus.WithFields(logrus.Fields{
				"container": record.Name,
				"state":     record.State,
			}).Warn("concore: recovering container left running by unclean shutdown")

			finishedAt := now()
			record.State = types.StateExited
			record.ExitCode = 137
			record.FinishedAt = &finishedAt
			if err := core.store.SetContainer(record); err != nil {
				return fmt.Errorf("concore: load: persist recovered container %s: %w", record.ID, err)
			}
		}
		core.newContainerLocked(record)
	}
	return nil
}

// ApplyRestartPolicies starts every recovered container whose restart
// policy calls for it, run once NetworkCore and VolumeStore are fully
// wired in so a restart's network attach doesn't race initialization.
func (core *Core) ApplyRestartPolicies() {
	for _, record := range core.List() {
		if record.State != types.StateExited {
			continue
		}
		if !record.HostConfig.RestartPolicy.ShouldRestart(record.ExitCode, record.Restart.Attempts, record.StoppedByUser) {
			continue
		}
		c, err := core.GetByID(record.ID)
		if err != nil {
			continue
		}
		if err := core.startForRestart(core.ctx, c); err != nil {
			logrus.WithError(err).WithField("container", record.Name).Error("concore: restart-policy start after recovery failed")
		}
	}
}
