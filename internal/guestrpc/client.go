// Package guestrpc is the host-side client for the control plane this
// daemon's vminit supervisor exposes inside every container's guest VM:
// the wireguard mesh service and the process-list service, both reached
// over a single vsock connection per VM.
//
// This daemon's other host<->guest and host<->manager control surfaces
// are both plain JSON-RPC 2.0 over creachadair/jrpc2, dialed over a unix
// socket wrapped in an HTTP bridge (jhttp). vsock isn't HTTP-shaped, so
// this client rides the same jrpc2 client/wire-protocol directly over
// the vsock net.Conn via jrpc2's line-delimited channel framing instead
// of jhttp's bridge -- same RPC contract and concurrency model, a
// different channel underneath.
package guestrpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"

	"github.com/vas-solutus/arcad/internal/guestrpc/vsockdial"
)

// GuestControlPort is the fixed vsock port every vminit supervisor
// listens on for control-plane RPCs.
const GuestControlPort uint32 = 9999

// Client is a connected handle to one VM's guest control plane.
type Client struct {
	conn net.Conn
	rpc  *jrpc2.Client

	mu     sync.Mutex
	closed bool
}

// Dial opens a vsock connection to the guest identified by cid, retrying
// with backoff until the guest's listener accepts or ctx is done, and
// wraps it in a jrpc2 client using newline-delimited JSON framing.
func Dial(ctx context.Context, cid uint32) (*Client, error) {
	conn, err := vsockdial.DialWithRetry(ctx, cid, GuestControlPort, 50*time.Millisecond)
	if err != nil {
		return nil, err
	}
	return newClient(conn), nil
}

// NewTestClient wraps an already-connected net.Conn as a Client,
// bypassing the vsock dial. Used by tests that drive a fake guest
// control plane over an in-memory pipe instead of a real VM.
func NewTestClient(conn net.Conn) *Client {
	return newClient(conn)
}

func newClient(conn net.Conn) *Client {
	ch := channel.Line(conn, conn)
	rpc := jrpc2.NewClient(ch, nil)
	return &Client{conn: conn, rpc: rpc}
}

// Close shuts down the underlying jrpc2 client and vsock connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rpc.Close()
}

// Ping verifies the guest's control plane is alive and answering, used
// right after Dial succeeds (a vsock connect can succeed before
// vminit's RPC server has finished its own startup).
func (c *Client) Ping(ctx context.Context) error {
	var res PingResult
	if err := c.rpc.CallResult(ctx, "Ping", nil, &res); err != nil {
		return fmt.Errorf("guestrpc: ping: %w", err)
	}
	if !res.OK {
		return fmt.Errorf("guestrpc: ping: guest reported not ok")
	}
	return nil
}

// WireguardGenerateKeyPair asks the guest to generate (or return the
// existing) wireguard keypair for networkID, returning only the public
// half; the private key never leaves the guest.
func (c *Client) WireguardGenerateKeyPair(ctx context.Context, networkID string) (string, error) {
	var res GenerateKeyPairResult
	req := struct {
		NetworkID string `json:"network_id"`
	}{NetworkID: networkID}
	if err := c.rpc.CallResult(ctx, "Wireguard.GenerateKeyPair", req, &res); err != nil {
		return "", fmt.Errorf("guestrpc: generate keypair for %s: %w", networkID, err)
	}
	return res.PublicKey, nil
}

// WireguardConfigure pushes a full peer set for one network's mesh
// interface, idempotent: the guest reconciles its current peer
// configuration to exactly match req.Peers.
func (c *Client) WireguardConfigure(ctx context.Context, req ConfigureInterfaceRequest) error {
	var noResult struct{}
	if err := c.rpc.CallResult(ctx, "Wireguard.Configure", req, &noResult); err != nil {
		return fmt.Errorf("guestrpc: configure wireguard interface for %s: %w", req.NetworkID, err)
	}
	return nil
}

// WireguardTeardown removes a network's mesh interface from the guest
// entirely, called on detach.
func (c *Client) WireguardTeardown(ctx context.Context, networkID string) error {
	var noResult struct{}
	req := TeardownInterfaceRequest{NetworkID: networkID}
	if err := c.rpc.CallResult(ctx, "Wireguard.Teardown", req, &noResult); err != nil {
		return fmt.Errorf("guestrpc: teardown wireguard interface for %s: %w", networkID, err)
	}
	return nil
}

// SyncFilesystem asks the guest to flush pending writes to the rootfs
// disk image, the step getChanges must complete before the host reads
// the image for a diff (spec.md 4.6).
func (c *Client) SyncFilesystem(ctx context.Context) error {
	var res SyncResult
	if err := c.rpc.CallResult(ctx, "Filesystem.Sync", nil, &res); err != nil {
		return fmt.Errorf("guestrpc: sync filesystem: %w", err)
	}
	return nil
}

// ListProcesses returns the guest's current process table.
func (c *Client) ListProcesses(ctx context.Context) ([]ProcessInfo, error) {
	var procs []ProcessInfo
	if err := c.rpc.CallResult(ctx, "ProcessList.List", nil, &procs); err != nil {
		return nil, fmt.Errorf("guestrpc: list processes: %w", err)
	}
	return procs, nil
}
