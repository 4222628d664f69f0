package guestrpc

import (
	"context"
	"net"
	"testing"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startFakeGuest spins up an in-process jrpc2 server over a net.Pipe so
// this package's wire contract can be exercised without a real VM.
func startFakeGuest(t *testing.T) *Client {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	srv := jrpc2.NewServer(handler.Map{
		"Ping": handler.New(func(ctx context.Context) (PingResult, error) {
			return PingResult{OK: true}, nil
		}),
		"Wireguard.GenerateKeyPair": handler.New(func(ctx context.Context, req struct {
			NetworkID string `json:"network_id"`
		}) (GenerateKeyPairResult, error) {
			return GenerateKeyPairResult{PublicKey: "pubkey-" + req.NetworkID}, nil
		}),
		"Wireguard.Configure": handler.New(func(ctx context.Context, req ConfigureInterfaceRequest) (struct{}, error) {
			return struct{}{}, nil
		}),
	}, nil).Start(channel.Line(serverConn, serverConn))

	t.Cleanup(func() { srv.Stop() })

	rpc := jrpc2.NewClient(channel.Line(clientConn, clientConn), nil)
	c := &Client{conn: clientConn, rpc: rpc}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientPingAndWireguardRPCs(t *testing.T) {
	c := startFakeGuest(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	pub, err := c.WireguardGenerateKeyPair(ctx, "net1")
	require.NoError(t, err)
	assert.Equal(t, "pubkey-net1", pub)

	err = c.WireguardConfigure(ctx, ConfigureInterfaceRequest{
		NetworkID: "net1",
		Address:   "10.77.0.2/24",
		Peers: []Peer{
			{PublicKey: "peer1", AllowedIPs: []string{"10.77.0.3/32"}},
		},
	})
	require.NoError(t, err)
}
