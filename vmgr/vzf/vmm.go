package vzf

import (
	"os"

	"github.com/vas-solutus/arcad/vmgr/osver"
	"github.com/vas-solutus/arcad/vmgr/vmm"
)

type monitor struct{}

// VzSpec and ConsoleSpec are the vmm machine-spec shapes NewMachine
// marshals for the Swift side.
type (
	VzSpec      = vmm.VzSpec
	ConsoleSpec = vmm.ConsoleSpec
)

// Monitor is the Virtualization.framework-backed vmm.Monitor cmd/arcad
// wires into internal/vmlaunch. The teacher also linked an alternate
// Hypervisor.framework backend (vmgr/rsvm) selectable at startup; its
// network callback path depended on a packet-injection helper absent
// from this tree, so only the Virtualization.framework backend ships.
var Monitor vmm.Monitor = &monitor{}

// preferredMTU/baseMTU mirror vmgr/vnet/vnettypes' constants for the
// two vmnet MTU tiers Virtualization.framework has supported across
// macOS releases; inlined here since this adaptation's network stack
// doesn't carry the rest of that package forward.
const (
	baseMTU      = 1500
	preferredMTU = 65520
)

func (m *monitor) NetworkMTU() int {
	if osver.IsAtLeast("v13.0") {
		return preferredMTU
	}
	return baseMTU
}

// NewMachine adapts the package's cgo-backed NewMachine (which reports
// a VzSpec/retainFiles pair plus a rosetta-canceled bool the vmm.Monitor
// contract has no room for) to vmm.Monitor's two-return shape, and
// wraps the resulting *Machine so its Stop method satisfies
// vmm.Machine's ForceStop name.
func (m *monitor) NewMachine(spec *vmm.VzSpec, retainFiles []*os.File) (vmm.Machine, error) {
	machine, rosettaCanceled, err := NewMachine(translateSpec(spec), retainFiles)
	if err != nil {
		return nil, err
	}
	if rosettaCanceled {
		// Rosetta support was unavailable for this machine; the guest
		// still boots, just without x86 emulation. Nothing for the
		// launcher to act on; the flag is dropped here.
		_ = rosettaCanceled
	}
	return machineHandle{machine}, nil
}

func translateSpec(spec *vmm.VzSpec) VzSpec {
	out := VzSpec{
		Cpus:             spec.Cpus,
		Memory:           spec.Memory,
		Kernel:           spec.Kernel,
		Cmdline:          spec.Cmdline,
		Mtu:              spec.Mtu,
		MacAddressPrefix: spec.MacAddressPrefix,
		NetworkNat:       spec.NetworkNat,
		Rng:              spec.Rng,
		DiskRootfs:       spec.DiskRootfs,
		DiskData:         spec.DiskData,
		DiskSwap:         spec.DiskSwap,
		Balloon:          spec.Balloon,
		Vsock:            spec.Vsock,
		Virtiofs:         spec.Virtiofs,
		Rosetta:          spec.Rosetta,
		Sound:            spec.Sound,
	}
	if spec.Console != nil {
		out.Console = &ConsoleSpec{ReadFd: spec.Console.ReadFd, WriteFd: spec.Console.WriteFd}
	}
	return out
}

// machineHandle renames *Machine's Stop to ForceStop so it satisfies
// vmm.Machine without changing the cgo-facing method the rest of this
// package already calls Stop.
type machineHandle struct {
	*Machine
}

func (h machineHandle) ForceStop() error { return h.Machine.Stop() }

func (h machineHandle) StateChan() <-chan vmm.MachineState {
	out := make(chan vmm.MachineState, 1)
	go func() {
		defer close(out)
		for s := range h.Machine.StateChan() {
			out <- vmm.MachineState(s)
		}
	}()
	return out
}
