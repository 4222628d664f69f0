// Package vmlaunch adapts vmgr/vmm's platform VM abstraction (the
// teacher's Monitor/Machine pair, backed here by the Virtualization.framework
// binding in vmgr/vzf) to internal/collab's VMLauncher/VM boundary,
// translating ContainerCore's one-VM-per-container spec into the VzSpec
// shape a concrete Monitor expects.
package vmlaunch

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/vas-solutus/arcad/internal/collab"
	"github.com/vas-solutus/arcad/vmgr/vmm"
)

// Launcher implements collab.VMLauncher against one vmm.Monitor, the
// same seam the teacher's own vmgr/vz.go uses so the VM-launch path
// never needs to know which concrete Monitor backend it was given.
type Launcher struct {
	monitor vmm.Monitor
	kernel  string
	cmdline string
}

// New returns a Launcher that brings up every container VM from the
// same guest kernel image, the way this daemon's single vminit-based
// guest always boots the same kernel regardless of which image the
// container's rootfs came from.
func New(monitor vmm.Monitor, kernelPath, cmdline string) *Launcher {
	return &Launcher{monitor: monitor, kernel: kernelPath, cmdline: cmdline}
}

// Launch builds a VzSpec from spec and asks the monitor for a machine,
// wiring spec.ConsoleWriter to the guest's serial console the same way
// vmgr/vz.go's RunRinitVm wires a pipe for ConsoleLog mode: a read fd
// the guest's console never writes to (stdin is always /dev/null: this
// daemon gives containers no host-side input channel, neither here nor
// over the vsock control plane) and a write fd the host drains into
// spec.ConsoleWriter.
func (l *Launcher) Launch(ctx context.Context, spec collab.VMSpec) (collab.VM, error) {
	if l.monitor == nil {
		return nil, fmt.Errorf("vmlaunch: no platform VM monitor configured")
	}

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return nil, fmt.Errorf("vmlaunch: open %s: %w", os.DevNull, err)
	}
	consoleRead, consoleWrite, err := os.Pipe()
	if err != nil {
		devNull.Close()
		return nil, fmt.Errorf("vmlaunch: console pipe: %w", err)
	}

	kernel := spec.KernelPath
	if kernel == "" {
		kernel = l.kernel
	}
	cmdline := spec.Cmdline
	if cmdline == "" {
		cmdline = l.cmdline
	}

	vzSpec := &vmm.VzSpec{
		Cpus:    spec.Cpus,
		Memory:  uint64(spec.MemoryBytes),
		Kernel:  kernel,
		Cmdline: cmdline,
		Console: &vmm.ConsoleSpec{
			ReadFd:  int(devNull.Fd()),
			WriteFd: int(consoleWrite.Fd()),
		},
		DiskRootfs: spec.RootfsPath,
		DiskData:   spec.DiskDataPath,
		DiskSwap:   spec.DiskSwapPath,
		Mtu:        l.monitor.NetworkMTU(),
		Rng:        true,
		Balloon:    true,
		Vsock:      true,
		Virtiofs:   true,
	}

	machine, err := l.monitor.NewMachine(vzSpec, []*os.File{devNull, consoleWrite})
	if err != nil {
		consoleRead.Close()
		consoleWrite.Close()
		devNull.Close()
		return nil, fmt.Errorf("vmlaunch: new machine for %s: %w", spec.NativeID, err)
	}

	if spec.ConsoleWriter != nil {
		go drainConsole(consoleRead, spec.ConsoleWriter, spec.NativeID)
	} else {
		consoleRead.Close()
	}

	return &machineAdapter{machine: machine, cid: spec.CID}, nil
}

func drainConsole(r *os.File, w io.Writer, nativeID string) {
	defer r.Close()
	if _, err := io.Copy(w, r); err != nil {
		logrus.WithError(err).WithField("vm", nativeID).Debug("vmlaunch: console copy ended")
	}
}

// machineAdapter makes a vmm.Machine satisfy collab.VM: the monitor
// interface predates context.Context plumbing, so every call here just
// drops ctx rather than threading cancellation the teacher's own
// Machine methods were never built to honor.
type machineAdapter struct {
	machine vmm.Machine
	cid     uint32
}

func (a *machineAdapter) Start(ctx context.Context) error       { return a.machine.Start() }
func (a *machineAdapter) RequestStop(ctx context.Context) error { return a.machine.RequestStop() }
func (a *machineAdapter) ForceStop(ctx context.Context) error   { return a.machine.ForceStop() }
func (a *machineAdapter) Pause(ctx context.Context) error       { return a.machine.Pause() }
func (a *machineAdapter) Resume(ctx context.Context) error      { return a.machine.Resume() }
func (a *machineAdapter) Close() error                          { return a.machine.Close() }

func (a *machineAdapter) StateChan() <-chan collab.VMState {
	out := make(chan collab.VMState, 1)
	go func() {
		defer close(out)
		for s := range a.machine.StateChan() {
			out <- translateState(s)
		}
	}()
	return out
}

func translateState(s vmm.MachineState) collab.VMState {
	switch s {
	case vmm.MachineStateStopped:
		return collab.VMStateStopped
	case vmm.MachineStateRunning:
		return collab.VMStateRunning
	case vmm.MachineStatePaused:
		return collab.VMStatePaused
	case vmm.MachineStateError:
		return collab.VMStateError
	case vmm.MachineStateStarting:
		return collab.VMStateStarting
	case vmm.MachineStatePausing:
		return collab.VMStatePausing
	case vmm.MachineStateResuming:
		return collab.VMStateResuming
	case vmm.MachineStateStopping:
		return collab.VMStateStopping
	default:
		return collab.VMStateError
	}
}
