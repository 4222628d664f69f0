package main

import (
	"context"
	"math"
	"net"
	"net/http"
	"os"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/vas-solutus/arcad/internal/arcadrpc"
	"github.com/vas-solutus/arcad/internal/concore"
	"github.com/vas-solutus/arcad/internal/netcore"
)

// daemonServer is the jrpc2 method table cmd/arcactl (and any other local
// client) dials over the control socket, grounded on the teacher's
// SconServer: one receiver struct wrapping the cores it fronts, one
// method per RPC name, all argument/result marshaling left to
// handler.New's reflection.
type daemonServer struct {
	con *concore.Core
	net *netcore.Core
}

func (s *daemonServer) Ping(ctx context.Context) error {
	return nil
}

func (s *daemonServer) Create(ctx context.Context, req arcadrpc.CreateRequest) (*arcadrpc.CreateResponse, error) {
	c, err := s.con.Create(ctx, concore.CreateRequest{
		Name:       req.Name,
		Image:      req.Image,
		Cmd:        req.Cmd,
		Entrypoint: req.Entrypoint,
		Env:        req.Env,
		WorkingDir: req.WorkingDir,
		Labels:     req.Labels,
		HostConfig: req.HostConfig,
		Deferred:   req.Deferred,
	})
	if err != nil {
		return nil, err
	}
	return &arcadrpc.CreateResponse{Container: c}, nil
}

func (s *daemonServer) Start(ctx context.Context, req arcadrpc.IDOrNameRequest) error {
	return s.con.Start(ctx, req.IDOrName)
}

func (s *daemonServer) Stop(ctx context.Context, req arcadrpc.StopRequest) error {
	return s.con.Stop(ctx, req.IDOrName, req.Timeout)
}

func (s *daemonServer) Kill(ctx context.Context, req arcadrpc.IDOrNameRequest) error {
	return s.con.Kill(ctx, req.IDOrName)
}

func (s *daemonServer) Pause(ctx context.Context, req arcadrpc.IDOrNameRequest) error {
	return s.con.Pause(ctx, req.IDOrName)
}

func (s *daemonServer) Unpause(ctx context.Context, req arcadrpc.IDOrNameRequest) error {
	return s.con.Unpause(ctx, req.IDOrName)
}

func (s *daemonServer) Wait(ctx context.Context, req arcadrpc.IDOrNameRequest) (*arcadrpc.WaitResponse, error) {
	code, err := s.con.Wait(ctx, req.IDOrName)
	if err != nil {
		return nil, err
	}
	return &arcadrpc.WaitResponse{ExitCode: code}, nil
}

func (s *daemonServer) Rename(ctx context.Context, req arcadrpc.RenameRequest) error {
	return s.con.Rename(ctx, req.IDOrName, req.NewName)
}

func (s *daemonServer) Update(ctx context.Context, req arcadrpc.UpdateRequest) error {
	return s.con.Update(ctx, req.IDOrName, req.Patch)
}

func (s *daemonServer) Remove(ctx context.Context, req arcadrpc.RemoveRequest) error {
	return s.con.Remove(ctx, req.IDOrName, req.Force)
}

func (s *daemonServer) List(ctx context.Context, req arcadrpc.ListRequest) (*arcadrpc.ListResponse, error) {
	return &arcadrpc.ListResponse{Containers: s.con.ListSummaries(req.All)}, nil
}

func (s *daemonServer) Inspect(ctx context.Context, req arcadrpc.IDOrNameRequest) (*arcadrpc.InspectResponse, error) {
	details, err := s.con.Inspect(req.IDOrName)
	if err != nil {
		return nil, err
	}
	return &arcadrpc.InspectResponse{Details: details}, nil
}

func (s *daemonServer) Changes(ctx context.Context, req arcadrpc.IDOrNameRequest) (*arcadrpc.ChangesResponse, error) {
	changes, err := s.con.GetChanges(ctx, req.IDOrName)
	if err != nil {
		return nil, err
	}
	return &arcadrpc.ChangesResponse{Changes: changes}, nil
}

func (s *daemonServer) CreateNetwork(ctx context.Context, req arcadrpc.CreateNetworkRequest) (*arcadrpc.NetworkResponse, error) {
	n, err := s.net.CreateNetwork(ctx, req.Name, req.Driver, req.IPAM, req.Internal)
	if err != nil {
		return nil, err
	}
	return &arcadrpc.NetworkResponse{Network: n}, nil
}

func (s *daemonServer) ListNetworks(ctx context.Context) (*arcadrpc.ListNetworksResponse, error) {
	nets, err := s.net.ListNetworks()
	if err != nil {
		return nil, err
	}
	return &arcadrpc.ListNetworksResponse{Networks: nets}, nil
}

func (s *daemonServer) RemoveNetwork(ctx context.Context, req arcadrpc.NetworkIDRequest) error {
	return s.net.RemoveNetwork(ctx, req.ID)
}

func (s *daemonServer) AttachNetwork(ctx context.Context, req arcadrpc.AttachRequest) (*arcadrpc.AttachResponse, error) {
	a, err := s.net.Attach(ctx, req.NetworkID, req.ContainerID, req.Aliases)
	if err != nil {
		return nil, err
	}
	return &arcadrpc.AttachResponse{Attachment: a}, nil
}

func (s *daemonServer) DetachNetwork(ctx context.Context, req arcadrpc.DetachRequest) error {
	return s.net.Detach(ctx, req.NetworkID, req.ContainerID)
}

func (s *daemonServer) Shutdown(ctx context.Context) error {
	s.con.StopForRemoval(ctx)
	s.con.Close()
	return nil
}

// methodMap builds the jrpc2 handler.Map the same way SconServer.Serve
// builds its bridge: one named entry per exported RPC.
func (s *daemonServer) methodMap() handler.Map {
	return handler.Map{
		"Ping":          handler.New(s.Ping),
		"Create":        handler.New(s.Create),
		"Start":         handler.New(s.Start),
		"Stop":          handler.New(s.Stop),
		"Kill":          handler.New(s.Kill),
		"Pause":         handler.New(s.Pause),
		"Unpause":       handler.New(s.Unpause),
		"Wait":          handler.New(s.Wait),
		"Rename":        handler.New(s.Rename),
		"Update":        handler.New(s.Update),
		"Remove":        handler.New(s.Remove),
		"List":          handler.New(s.List),
		"Inspect":       handler.New(s.Inspect),
		"Changes":       handler.New(s.Changes),
		"CreateNetwork": handler.New(s.CreateNetwork),
		"ListNetworks":  handler.New(s.ListNetworks),
		"RemoveNetwork": handler.New(s.RemoveNetwork),
		"AttachNetwork": handler.New(s.AttachNetwork),
		"DetachNetwork": handler.New(s.DetachNetwork),
		"Shutdown":      handler.New(s.Shutdown),
	}
}

// serve listens on the unix control socket and blocks serving the jrpc2
// bridge, mirroring SconServer.Serve but over a unix socket rather than
// a localhost TCP port: arcad has no guest-side counterpart reachable
// over the host's LAN-facing interfaces, only local operator tooling.
func (s *daemonServer) serve(socketPath string) error {
	if err := removeStaleSocket(socketPath); err != nil {
		return err
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}

	bridge := jhttp.NewBridge(s.methodMap(), &jhttp.BridgeOptions{
		Server: &jrpc2.ServerOptions{
			Concurrency: math.MaxInt,
		},
	})
	defer bridge.Close()

	return http.Serve(ln, bridge)
}

// removeStaleSocket clears a socket path left behind by a daemon that
// didn't shut down cleanly; a conn that successfully dials means another
// instance is already listening, so that case is left alone.
func removeStaleSocket(path string) error {
	conn, err := net.Dial("unix", path)
	if err == nil {
		conn.Close()
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
