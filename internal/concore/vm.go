package concore

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vas-solutus/arcad/internal/collab"
	"github.com/vas-solutus/arcad/internal/guestrpc"
	"github.com/vas-solutus/arcad/internal/types"
)

// cidBase is the first vsock context ID this daemon hands out to a
// container VM; low values are reserved for the host and other
// platform VMs the way the teacher's vmgr reserves CID 2 for the host
// hypervisor and a couple of fixed IDs for its own singleton VMs.
const cidBase = 100

// allocateCID hands out the next unused vsock context ID, persisting
// the cursor so restarts don't reuse a CID a still-running VM from a
// previous supervisor generation might hold (the guest side needs no
// cleanup since a reused CID after a real stop is harmless; persisting
// just avoids needless collisions across a daemon restart).
func (core *Core) allocateCID() (uint32, error) {
	cur, err := core.store.GetCIDCursor()
	if err != nil {
		return 0, err
	}
	next := cidBase + cur
	if err := core.store.SetCIDCursor(cur + 1); err != nil {
		return 0, err
	}
	return next, nil
}

// guestDialTimeout bounds how long Start waits for vminit's RPC server
// to come up after the VM reports running, per spec.md's requirement
// that guest calls to unreachable guests must not hang.
const guestDialTimeout = 30 * time.Second

// launchVM brings up c's guest VM via the platform VM abstraction and
// dials its control-plane client, retrying the dial until the guest's
// RPC server answers or guestDialTimeout elapses.
func (core *Core) launchVM(ctx context.Context, c *Container, cid uint32) (collab.VM, *guestrpc.Client, error) {
	if core.launch == nil {
		return nil, nil, wrapErr(KindUnknown, "launch vm", fmt.Errorf("no VM launcher configured"))
	}

	console, err := core.logs.Open(c.ID, types.LogConsole)
	if err != nil {
		return nil, nil, wrapErr(KindUnknown, "launch vm: open console log", err)
	}

	hc := c.record.HostConfig
	spec := collab.VMSpec{
		NativeID:      c.record.NativeID,
		Cpus:          vcpusFor(hc),
		MemoryBytes:   memoryBytesFor(hc),
		RootfsPath:    core.containerRootfsDir(c.ID),
		DiskDataPath:  core.containerDataDisk(c.ID),
		CID:           cid,
		ConsoleWriter: console,
	}

	vm, err := core.launch.Launch(ctx, spec)
	if err != nil {
		return nil, nil, wrapErr(KindUnknown, "launch vm", err)
	}
	if err := vm.Start(ctx); err != nil {
		_ = vm.Close()
		return nil, nil, wrapErr(KindUnknown, "start vm", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, guestDialTimeout)
	defer cancel()

	guest, err := core.dialGuest(dialCtx, cid)
	if err != nil {
		_ = vm.ForceStop(dialCtx)
		_ = vm.Close()
		return nil, nil, wrapErr(KindGuestUnreachable, "dial guest control plane", err)
	}
	if err := guest.Ping(dialCtx); err != nil {
		_ = guest.Close()
		_ = vm.ForceStop(dialCtx)
		_ = vm.Close()
		return nil, nil, wrapErr(KindGuestUnreachable, "ping guest control plane", err)
	}

	return vm, guest, nil
}

func vcpusFor(hc types.HostConfig) int {
	if hc.NanoCPUs > 0 {
		cpus := int(hc.NanoCPUs / 1_000_000_000)
		if cpus < 1 {
			cpus = 1
		}
		return cpus
	}
	return 2
}

func memoryBytesFor(hc types.HostConfig) int64 {
	if hc.Memory > 0 {
		return hc.Memory
	}
	return 1 << 30 // 1GiB default
}

// watchExit runs for the lifetime of a started container's VM, blocking
// on its state channel and invoking the exit monitor once the VM
// leaves the running/paused states. Spawned as its own goroutine so
// Start never blocks on a container's entire run.
func (core *Core) watchExit(c *Container, vm collab.VM) {
	for state := range vm.StateChan() {
		logrus.WithFields(logrus.Fields{
			"container": c.record.Name,
			"state":     state,
		}).Debug("concore: vm state changed")
		if state == collab.VMStateStopped || state == collab.VMStateError {
			core.onGuestExit(c, state)
			return
		}
	}
	// channel closed without a terminal state observed (Close called
	// directly) -- treat as a clean stop.
	core.onGuestExit(c, collab.VMStateStopped)
}
