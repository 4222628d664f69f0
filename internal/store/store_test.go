package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vas-solutus/arcad/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "arcad.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestContainerRoundTrip(t *testing.T) {
	s := openTestStore(t)

	c := &types.Container{
		ID:    "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Name:  "web",
		Image: "nginx:latest",
		State: types.StateCreated,
	}
	require.NoError(t, s.SetContainer(c))

	got, err := s.GetContainer(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.State, got.State)

	all, err := s.GetContainers()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteContainer(c.ID))
	_, err = s.GetContainer(c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAllocateAttachmentAssignsDistinctAddresses(t *testing.T) {
	s := openTestStore(t)
	netID := "net1"

	assign := func(containerID string) *types.Attachment {
		a, err := s.AllocateAttachment(netID, func(used map[string]bool) (string, error) {
			for i := 2; i < 10; i++ {
				ip := ipFor(i)
				if !used[ip] {
					return ip, nil
				}
			}
			t.Fatal("ran out of test addresses")
			return "", nil
		}, func(ip string) *types.Attachment {
			return &types.Attachment{
				NetworkID:   netID,
				ContainerID: containerID,
				IPv4Address: ip,
				AttachedAt:  time.Now(),
			}
		})
		require.NoError(t, err)
		return a
	}

	a1 := assign("c1")
	a2 := assign("c2")
	assert.NotEqual(t, a1.IPv4Address, a2.IPv4Address)

	list, err := s.ListAttachmentsForNetwork(netID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func ipFor(i int) string {
	return "10.0.0." + string(rune('0'+i))
}
