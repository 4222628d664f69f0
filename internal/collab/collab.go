// Package collab declares the narrow interfaces ContainerCore and
// NetworkCore use to reach subsystems this daemon's spec treats as
// external collaborators rather than core responsibilities: image
// storage, volume management, health checking, exec sessions, the
// event bus and host port mapping. Each concrete implementation lives
// with its own subsystem; this package only pins the contract so
// internal/concore and internal/netcore can be built and tested
// against fakes.
package collab

import (
	"context"
	"io"

	"github.com/vas-solutus/arcad/internal/dockertypes"
	"github.com/vas-solutus/arcad/internal/types"
)

// ImageStore resolves image references to the rootfs/layer data the
// guest's init process mounts at boot. Out of scope for this daemon's
// own persistence (spec Non-goals), but every container create needs
// one.
type ImageStore interface {
	Resolve(ctx context.Context, ref string) (ImageHandle, error)
}

// ImageHandle is the resolved form of an image reference: enough
// information for ContainerCore to hand the guest a rootfs to boot.
type ImageHandle struct {
	ID         string
	RootfsPath string
}

// VolumeStore owns named-volume lifecycle; ContainerCore only needs to
// resolve a volume name to a host path to bind-mount.
type VolumeStore interface {
	Resolve(ctx context.Context, name string) (*dockertypes.Volume, error)
	EnsureCreated(ctx context.Context, name, driver string) (*dockertypes.Volume, error)
}

// HealthChecker runs a container's configured HealthConfig probe and
// reports status transitions; ContainerCore only needs to start/stop
// watching a container, not run the probe loop itself.
type HealthChecker interface {
	Watch(containerID string, cfg types.HealthConfig) error
	Unwatch(containerID string)
}

// ExecManager owns `exec` session lifecycle inside a running container's
// guest. ContainerCore holds this collaborator but exposes no exec
// operation of its own and never calls it.
type ExecManager interface {
	Start(ctx context.Context, containerID string, cmd []string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, err error)
}

// EventEmitter publishes lifecycle events (create/start/stop/die/...)
// to whatever subscribes to this daemon's event stream; ContainerCore
// and NetworkCore both call it as a side effect of their operations but
// never block waiting on a subscriber.
type EventEmitter interface {
	Emit(kind string, actorID string, attrs map[string]string)
}

// PortMapManager programs host-side port forwarding rules for a
// container's published ports, the host half of HostConfig.PortBindings.
type PortMapManager interface {
	Apply(containerID string, bindings map[string][]types.PortBinding) error
	Clear(containerID string) error
}

// GuestHandle is the narrow subset of internal/guestrpc.Client that
// internal/netcore needs in order to push mesh configuration into a
// container's guest: ContainerCore owns the actual VM/vsock connection
// lifecycle and hands out handles rather than NetworkCore dialing guests
// itself, so the two cores stay decoupled.
type GuestHandle interface {
	WireguardGenerateKeyPair(ctx context.Context, networkID string) (string, error)
	WireguardConfigure(ctx context.Context, req WireguardConfigureRequest) error
	WireguardTeardown(ctx context.Context, networkID string) error
}

// WireguardConfigureRequest mirrors guestrpc.ConfigureInterfaceRequest;
// duplicated here (rather than imported) so internal/collab has no
// dependency on internal/guestrpc, keeping the interface boundary real.
type WireguardConfigureRequest struct {
	NetworkID  string
	ListenPort int
	Address    string
	Peers      []WireguardPeer
}

// WireguardPeer mirrors guestrpc.Peer.
type WireguardPeer struct {
	PublicKey  string
	Endpoint   string
	AllowedIPs []string
}

// GuestResolver resolves a container ID to a live guest handle,
// implemented by internal/concore.Core.
type GuestResolver interface {
	GuestHandle(containerID string) (GuestHandle, error)
}

// VMSpec is what ContainerCore hands the platform VM abstraction to
// bring up one container's guest. One VM per container: CPUs/memory
// come from HostConfig, RootfsPath/DiskDataPath are prepared by
// ImageStore and the per-container data subvolume, and CID is the
// vsock context ID internal/guestrpc dials once the machine reports
// running.
type VMSpec struct {
	NativeID      string
	Cpus          int
	MemoryBytes   int64
	KernelPath    string
	Cmdline       string
	RootfsPath    string
	DiskDataPath  string
	DiskSwapPath  string
	CID           uint32
	ConsoleWriter io.Writer
}

// VMState mirrors the platform VM abstraction's machine state enum.
type VMState int

const (
	VMStateStopped VMState = iota
	VMStateStarting
	VMStateRunning
	VMStatePausing
	VMStatePaused
	VMStateResuming
	VMStateStopping
	VMStateError
)

// VM is a handle to one running (or transitioning) container guest.
// ContainerCore calls these directly; it never reaches into the
// hypervisor layer itself.
type VM interface {
	Start(ctx context.Context) error
	RequestStop(ctx context.Context) error
	ForceStop(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	StateChan() <-chan VMState
	Close() error
}

// VMLauncher is the platform VM abstraction ContainerCore asks for a
// guest VM per spec.md's control flow ("creates a guest VM via the
// platform VM abstraction"). Its concrete implementation is host
// hypervisor code outside this package's scope; ContainerCore only
// needs to launch, and later re-attach to, one VM per container.
type VMLauncher interface {
	Launch(ctx context.Context, spec VMSpec) (VM, error)
}
