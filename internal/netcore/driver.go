package netcore

import (
	"context"

	"github.com/vas-solutus/arcad/internal/types"
)

// Driver is the per-network-driver contract NetworkCore routes network
// lifecycle and attach/detach calls through, one implementation per
// types.NetworkDriver value.
type Driver interface {
	// Create brings up whatever host-side state the driver needs for a
	// new network (bridge interface, NAT rules, ...). Idempotent: called
	// again after a crash-restart, it must tolerate already-existing
	// state.
	Create(ctx context.Context, n *types.Network) error

	// Destroy tears down everything Create set up.
	Destroy(ctx context.Context, n *types.Network) error

	// Attach wires one container's attachment into the network's data
	// plane (host bridge port, or guest-side wireguard interface).
	Attach(ctx context.Context, n *types.Network, a *types.Attachment) error

	// Detach reverses Attach.
	Detach(ctx context.Context, n *types.Network, a *types.Attachment) error

	// ReconcilePeers is called whenever a network's attachment set
	// changes (attach, detach, or container restart) so the driver can
	// push an updated peer list to every still-attached container. No-op
	// for drivers that don't maintain a peer mesh (e.g. plain bridge).
	ReconcilePeers(ctx context.Context, n *types.Network, attachments []*types.Attachment) error
}
