package concore

import (
	"io"
	"sync"

	"github.com/vas-solutus/arcad/internal/types"
)

const attachLogType = types.LogConsole

// AttachHandles are the stdio connections an interactive client opened
// before calling start on a deferred container, or wants wired into an
// already-running one. Stdout/stderr become live subscribers of the
// container's console broadcast writer. Stdin is accepted but never
// read: nothing forwards it into the guest process.
type AttachHandles struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// ExitSignal, if set, is closed when the monitor records the
	// container's exit. The Stdout/Stderr writers themselves are not
	// closed by the core.
	ExitSignal chan struct{}
}

// pendingAttaches holds attach handles registered before a deferred
// container's first Start call consumes them.
type pendingAttaches struct {
	mu      sync.Mutex
	byID    map[string][]AttachHandles
}

func newPendingAttaches() *pendingAttaches {
	return &pendingAttaches{byID: make(map[string][]AttachHandles)}
}

// RegisterAttach records handles for containerID, to be consumed by
// the next Start call (deferred create) or wired in immediately if the
// container is already running.
func (core *Core) RegisterAttach(containerID string, handles AttachHandles) error {
	c, err := core.GetByID(containerID)
	if err != nil {
		return err
	}

	if c.Running() {
		core.wireAttach(c, handles)
		return nil
	}

	core.attaches.mu.Lock()
	core.attaches.byID[containerID] = append(core.attaches.byID[containerID], handles)
	core.attaches.mu.Unlock()
	return nil
}

// takePendingAttaches removes and returns every attach handle queued
// for containerID, called by startContainer once the container is
// running.
func (core *Core) takePendingAttaches(containerID string) []AttachHandles {
	core.attaches.mu.Lock()
	defer core.attaches.mu.Unlock()
	pending := core.attaches.byID[containerID]
	delete(core.attaches.byID, containerID)
	return pending
}

// wireAttach subscribes handles.Stdout/Stderr to the container's
// console log stream and registers handles.ExitSignal with the exit
// monitor. handles.Stdin is not used.
func (core *Core) wireAttach(c *Container, handles AttachHandles) {
	if handles.Stdout != nil {
		core.subscribeAttachWriter(c.ID, handles.Stdout)
	}
	if handles.Stderr != nil {
		core.subscribeAttachWriter(c.ID, handles.Stderr)
	}
	if handles.ExitSignal != nil {
		core.registerExitSignal(c, handles.ExitSignal)
	}
}

func (core *Core) subscribeAttachWriter(containerID string, dst io.Writer) {
	if core.logs == nil {
		return
	}
	ch, cancel, err := core.logs.Subscribe(containerID, attachLogType, 64)
	if err != nil {
		return
	}
	go func() {
		defer cancel()
		for chunk := range ch {
			if _, err := dst.Write(chunk); err != nil {
				return
			}
		}
	}()
}

func (core *Core) registerExitSignal(c *Container, sig chan struct{}) {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	c.exitSignals = append(c.exitSignals, sig)
}
