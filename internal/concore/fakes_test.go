package concore

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"

	"github.com/vas-solutus/arcad/internal/collab"
	"github.com/vas-solutus/arcad/internal/guestrpc"
)

// fakeVM is an in-memory collab.VM: state transitions happen instantly
// and are broadcast over a channel, mirroring how a real VM reports
// async state changes from the platform VM abstraction.
type fakeVM struct {
	mu     sync.Mutex
	state  collab.VMState
	ch     chan collab.VMState
	closed bool
}

func newFakeVM() *fakeVM {
	return &fakeVM{state: collab.VMStateStopped, ch: make(chan collab.VMState, 8)}
}

func (f *fakeVM) setState(s collab.VMState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.state = s
	f.ch <- s
}

func (f *fakeVM) Start(ctx context.Context) error {
	f.setState(collab.VMStateRunning)
	return nil
}

func (f *fakeVM) RequestStop(ctx context.Context) error {
	f.setState(collab.VMStateStopped)
	return nil
}

func (f *fakeVM) ForceStop(ctx context.Context) error {
	f.setState(collab.VMStateStopped)
	return nil
}

func (f *fakeVM) Pause(ctx context.Context) error {
	f.setState(collab.VMStatePaused)
	return nil
}

func (f *fakeVM) Resume(ctx context.Context) error {
	f.setState(collab.VMStateRunning)
	return nil
}

func (f *fakeVM) StateChan() <-chan collab.VMState {
	return f.ch
}

func (f *fakeVM) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
	return nil
}

// fakeLauncher hands out a fakeVM per Launch call and remembers the
// last spec it was asked to launch, for assertions.
type fakeLauncher struct {
	mu       sync.Mutex
	launched []collab.VMSpec
	vms      []*fakeVM
	failNext bool
}

func (l *fakeLauncher) Launch(ctx context.Context, spec collab.VMSpec) (collab.VM, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failNext {
		l.failNext = false
		return nil, errLaunchFailed
	}
	vm := newFakeVM()
	l.launched = append(l.launched, spec)
	l.vms = append(l.vms, vm)
	return vm, nil
}

func (l *fakeLauncher) lastVM() *fakeVM {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.vms[len(l.vms)-1]
}

var errLaunchFailed = errors.New("fake launcher: induced failure")

// fakeGuestDialer serves a minimal guest control plane (Ping,
// Filesystem.Sync) over an in-memory pipe per dial, so launchVM's dial
// step succeeds without a real vsock peer.
func fakeGuestDialer() func(ctx context.Context, cid uint32) (*guestrpc.Client, error) {
	return func(ctx context.Context, cid uint32) (*guestrpc.Client, error) {
		clientConn, serverConn := net.Pipe()

		srv := jrpc2.NewServer(handler.Map{
			"Ping": handler.New(func(ctx context.Context) (guestrpc.PingResult, error) {
				return guestrpc.PingResult{OK: true}, nil
			}),
			"Filesystem.Sync": handler.New(func(ctx context.Context) (guestrpc.SyncResult, error) {
				return guestrpc.SyncResult{OK: true}, nil
			}),
		}, nil)
		srv.Start(channel.Line(serverConn, serverConn))

		return guestrpc.NewTestClient(clientConn), nil
	}
}
