package daemonsvc

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/vas-solutus/arcad/internal/types"
)

// NoopHealthChecker satisfies collab.HealthChecker without running any
// probe loop. A real HEALTHCHECK driver needs a way to exec inside the
// guest (see NoopExecManager) that this daemon's guest control plane
// doesn't expose yet; until it does, health state simply stays
// "none" rather than polling a probe that can't run.
type NoopHealthChecker struct{}

func (NoopHealthChecker) Watch(containerID string, cfg types.HealthConfig) error {
	logrus.WithField("container", containerID).Debug("daemonsvc: health watch requested, no probe driver configured")
	return nil
}

func (NoopHealthChecker) Unwatch(containerID string) {}

// NoopExecManager satisfies collab.ExecManager by reporting that exec
// isn't available yet: this daemon's guest control plane (4.2/6) only
// exposes WireGuard and process-list RPCs, neither of which can start
// an arbitrary command, so there's nothing real to forward to.
type NoopExecManager struct{}

func (NoopExecManager) Start(ctx context.Context, containerID string, cmd []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	return -1, fmt.Errorf("exec: no exec driver configured for container %s", containerID)
}

// NoopPortMapManager satisfies collab.PortMapManager without programming
// any host-side forwarding rules. Host-network driver internals are an
// explicit Non-goal beyond the contract ContainerCore requires; Apply
// logs any non-empty binding set it is given, naming the container, and
// Clear does nothing.
type NoopPortMapManager struct{}

func (NoopPortMapManager) Apply(containerID string, bindings map[string][]types.PortBinding) error {
	if len(bindings) == 0 {
		return nil
	}
	logrus.WithFields(logrus.Fields{
		"container": containerID,
		"bindings":  bindings,
	}).Warn("daemonsvc: port bindings requested, no port-map driver configured")
	return nil
}

func (NoopPortMapManager) Clear(containerID string) error { return nil }
