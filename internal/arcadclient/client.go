// Package arcadclient is the jrpc2 client side of cmd/arcad's control
// plane, grounded on the teacher's scon/sclient.SconClient: a jhttp
// channel dialed over a fixed transport (there a unix-socket-backed
// http.Client, here the same) wrapped by a thin method per RPC name.
package arcadclient

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/vas-solutus/arcad/internal/arcadrpc"
	"github.com/vas-solutus/arcad/internal/types"
)

const dialTimeout = 5 * time.Second

type Client struct {
	rpc *jrpc2.Client
}

// discard is the scratch target for calls whose result is just the
// RPC's absence of error, matching sclient.SconClient's noResult var.
var discard interface{}

// New dials the daemon's unix control socket and returns a client bound
// to it; no RPC is sent until the first call, matching sclient.New.
func New(socketPath string) *Client {
	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				d := net.Dialer{Timeout: dialTimeout}
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}

	ch := jhttp.NewChannel("http://arcad", &jhttp.ChannelOptions{Client: httpClient})
	return &Client{rpc: jrpc2.NewClient(ch, nil)}
}

func (c *Client) Close() error {
	return c.rpc.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rpc.CallResult(ctx, "Ping", nil, &discard)
}

func (c *Client) Create(ctx context.Context, req arcadrpc.CreateRequest) (*types.Container, error) {
	var resp arcadrpc.CreateResponse
	if err := c.rpc.CallResult(ctx, "Create", req, &resp); err != nil {
		return nil, err
	}
	return resp.Container, nil
}

func (c *Client) Start(ctx context.Context, idOrName string) error {
	return c.rpc.CallResult(ctx, "Start", arcadrpc.IDOrNameRequest{IDOrName: idOrName}, &discard)
}

func (c *Client) Stop(ctx context.Context, idOrName string, timeout time.Duration) error {
	return c.rpc.CallResult(ctx, "Stop", arcadrpc.StopRequest{IDOrName: idOrName, Timeout: timeout}, &discard)
}

func (c *Client) Kill(ctx context.Context, idOrName string) error {
	return c.rpc.CallResult(ctx, "Kill", arcadrpc.IDOrNameRequest{IDOrName: idOrName}, &discard)
}

func (c *Client) Pause(ctx context.Context, idOrName string) error {
	return c.rpc.CallResult(ctx, "Pause", arcadrpc.IDOrNameRequest{IDOrName: idOrName}, &discard)
}

func (c *Client) Unpause(ctx context.Context, idOrName string) error {
	return c.rpc.CallResult(ctx, "Unpause", arcadrpc.IDOrNameRequest{IDOrName: idOrName}, &discard)
}

func (c *Client) Wait(ctx context.Context, idOrName string) (int, error) {
	var resp arcadrpc.WaitResponse
	if err := c.rpc.CallResult(ctx, "Wait", arcadrpc.IDOrNameRequest{IDOrName: idOrName}, &resp); err != nil {
		return 0, err
	}
	return resp.ExitCode, nil
}

func (c *Client) Rename(ctx context.Context, idOrName, newName string) error {
	return c.rpc.CallResult(ctx, "Rename", arcadrpc.RenameRequest{IDOrName: idOrName, NewName: newName}, &discard)
}

func (c *Client) Update(ctx context.Context, idOrName string, patch types.HostConfig) error {
	return c.rpc.CallResult(ctx, "Update", arcadrpc.UpdateRequest{IDOrName: idOrName, Patch: patch}, &discard)
}

func (c *Client) Remove(ctx context.Context, idOrName string, force bool) error {
	return c.rpc.CallResult(ctx, "Remove", arcadrpc.RemoveRequest{IDOrName: idOrName, Force: force}, &discard)
}

func (c *Client) List(ctx context.Context, all bool) (*arcadrpc.ListResponse, error) {
	var resp arcadrpc.ListResponse
	if err := c.rpc.CallResult(ctx, "List", arcadrpc.ListRequest{All: all}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Inspect(ctx context.Context, idOrName string) (*arcadrpc.InspectResponse, error) {
	var resp arcadrpc.InspectResponse
	if err := c.rpc.CallResult(ctx, "Inspect", arcadrpc.IDOrNameRequest{IDOrName: idOrName}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Changes(ctx context.Context, idOrName string) ([]types.DiffEntry, error) {
	var resp arcadrpc.ChangesResponse
	if err := c.rpc.CallResult(ctx, "Changes", arcadrpc.IDOrNameRequest{IDOrName: idOrName}, &resp); err != nil {
		return nil, err
	}
	return resp.Changes, nil
}

func (c *Client) CreateNetwork(ctx context.Context, req arcadrpc.CreateNetworkRequest) (*types.Network, error) {
	var resp arcadrpc.NetworkResponse
	if err := c.rpc.CallResult(ctx, "CreateNetwork", req, &resp); err != nil {
		return nil, err
	}
	return resp.Network, nil
}

func (c *Client) ListNetworks(ctx context.Context) ([]*types.Network, error) {
	var resp arcadrpc.ListNetworksResponse
	if err := c.rpc.CallResult(ctx, "ListNetworks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Networks, nil
}

func (c *Client) RemoveNetwork(ctx context.Context, id string) error {
	return c.rpc.CallResult(ctx, "RemoveNetwork", arcadrpc.NetworkIDRequest{ID: id}, &discard)
}

func (c *Client) AttachNetwork(ctx context.Context, req arcadrpc.AttachRequest) (*types.Attachment, error) {
	var resp arcadrpc.AttachResponse
	if err := c.rpc.CallResult(ctx, "AttachNetwork", req, &resp); err != nil {
		return nil, err
	}
	return resp.Attachment, nil
}

func (c *Client) DetachNetwork(ctx context.Context, networkID, containerID string) error {
	return c.rpc.CallResult(ctx, "DetachNetwork", arcadrpc.DetachRequest{NetworkID: networkID, ContainerID: containerID}, &discard)
}

func (c *Client) Shutdown(ctx context.Context) error {
	return c.rpc.CallResult(ctx, "Shutdown", nil, &discard)
}
