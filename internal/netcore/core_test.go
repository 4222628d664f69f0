package netcore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vas-solutus/arcad/internal/collab"
	"github.com/vas-solutus/arcad/internal/store"
	"github.com/vas-solutus/arcad/internal/types"
)

type fakeGuestHandle struct {
	keypair string
}

func (f *fakeGuestHandle) WireguardGenerateKeyPair(ctx context.Context, networkID string) (string, error) {
	return f.keypair, nil
}
func (f *fakeGuestHandle) WireguardConfigure(ctx context.Context, req collab.WireguardConfigureRequest) error {
	return nil
}
func (f *fakeGuestHandle) WireguardTeardown(ctx context.Context, networkID string) error {
	return nil
}

type fakeResolver struct {
	handles map[string]*fakeGuestHandle
}

func (f *fakeResolver) GuestHandle(containerID string) (collab.GuestHandle, error) {
	h, ok := f.handles[containerID]
	if !ok {
		h = &fakeGuestHandle{keypair: "pub-" + containerID}
		f.handles[containerID] = h
	}
	return h, nil
}

func newTestCore(t *testing.T) *Core {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "arcad.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	resolver := &fakeResolver{handles: make(map[string]*fakeGuestHandle)}
	return New(st, nil, resolver)
}

func TestCreateAttachDetachWireguardNetwork(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	n, err := c.CreateNetwork(ctx, "mesh0", types.DriverWireguard, types.IPAM{}, false)
	require.NoError(t, err)
	assert.NotEmpty(t, n.IPAM.Config)

	a1, err := c.Attach(ctx, n.ID, "containerA", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, a1.IPv4Address)
	assert.NotEmpty(t, a1.MacAddress)

	a2, err := c.Attach(ctx, n.ID, "containerB", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a1.IPv4Address, a2.IPv4Address)

	require.NoError(t, c.Detach(ctx, n.ID, "containerA"))

	list, err := c.ListContainerAttachments("containerB")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, n.ID, list[0].NetworkID)
}

func TestRemoveNetworkFailsWhileAttached(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	n, err := c.CreateNetwork(ctx, "mesh1", types.DriverWireguard, types.IPAM{}, false)
	require.NoError(t, err)

	_, err = c.Attach(ctx, n.ID, "containerA", nil)
	require.NoError(t, err)

	err = c.RemoveNetwork(ctx, n.ID)
	require.Error(t, err)

	require.NoError(t, c.Detach(ctx, n.ID, "containerA"))
	require.NoError(t, c.RemoveNetwork(ctx, n.ID))
}
