// Package netcore implements NetworkCore: network CRUD, driver routing
// between the bridge and WireGuard-mesh backends, IPAM, MAC derivation,
// and WireGuard peer-mesh reconciliation. Grounded structurally on the
// teacher's scon/network.go ("one Network type owns bridge + NAT + DHCP
// for its subnet") but generalized from a single fixed LXC bridge to a
// driver-routed table of independently created networks.
package netcore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vas-solutus/arcad/internal/collab"
	"github.com/vas-solutus/arcad/internal/store"
	"github.com/vas-solutus/arcad/internal/types"
)

// Core is NetworkCore: the registry of networks and their attachments,
// routed to per-driver implementations.
type Core struct {
	store    *store.Store
	emitter  collab.EventEmitter
	resolver collab.GuestResolver

	mu       sync.RWMutex
	drivers  map[types.NetworkDriver]Driver
}

// New returns a Core wired to its store and collaborators, with the
// bridge and wireguard drivers registered. resolver is used by the
// wireguard driver to reach a container's guest control-plane client;
// it may be nil until ContainerCore has finished initializing, as long
// as SetGuestResolver is called before any wireguard network is used.
func New(st *store.Store, emitter collab.EventEmitter, resolver collab.GuestResolver) *Core {
	c := &Core{
		store:    st,
		emitter:  emitter,
		resolver: resolver,
		drivers:  make(map[types.NetworkDriver]Driver),
	}
	c.drivers[types.DriverBridge] = newBridgeDriver()
	c.drivers[types.DriverWireguard] = newWireguardDriver(resolver)
	c.drivers[types.DriverNone] = noneDriver{}
	return c
}

// SetGuestResolver updates the resolver used by the wireguard driver,
// for the common startup ordering where ContainerCore is constructed
// after NetworkCore but both need a reference to each other.
func (c *Core) SetGuestResolver(resolver collab.GuestResolver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolver = resolver
	if wd, ok := c.drivers[types.DriverWireguard].(*wireguardDriver); ok {
		wd.resolver = resolver
	}
}

func (c *Core) driverFor(n *types.Network) (Driver, error) {
	c.mu.RLock()
	d, ok := c.drivers[n.Driver]
	c.mu.RUnlock()
	if !ok {
		return nil, wrapErr(KindInvalidArgument, "driver lookup", fmt.Errorf("unknown driver %q", n.Driver))
	}
	return d, nil
}

// CreateNetwork allocates (if not explicitly given) a subnet, persists
// the network row and brings up its driver-side state.
func (c *Core) CreateNetwork(ctx context.Context, name string, driver types.NetworkDriver, ipam types.IPAM, internal bool) (*types.Network, error) {
	if len(ipam.Config) == 0 {
		subnet, gateway, err := c.AllocateSubnet()
		if err != nil {
			return nil, err
		}
		ipam = types.IPAM{Driver: "default", Config: []types.IPAMConfig{{Subnet: subnet, Gateway: gateway}}}
	}

	n := &types.Network{
		ID:        types.NewID(),
		Name:      name,
		Driver:    driver,
		IPAM:      ipam,
		Internal:  internal,
		CreatedAt: time.Now(),
	}

	d, err := c.driverFor(n)
	if err != nil {
		return nil, err
	}
	if err := d.Create(ctx, n); err != nil {
		return nil, wrapErr(KindUnknown, "create network driver state", err)
	}

	if err := c.store.SetNetwork(n); err != nil {
		return nil, wrapErr(KindUnknown, "persist network", err)
	}

	if c.emitter != nil {
		c.emitter.Emit("network.create", n.ID, map[string]string{"name": n.Name, "driver": string(n.Driver)})
	}
	return n, nil
}

// GetNetwork returns the persisted row for id.
func (c *Core) GetNetwork(id string) (*types.Network, error) {
	n, err := c.store.GetNetwork(id)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, wrapErr(KindNotFound, "get network", err)
		}
		return nil, wrapErr(KindUnknown, "get network", err)
	}
	return n, nil
}

// ListNetworks returns every persisted network.
func (c *Core) ListNetworks() ([]*types.Network, error) {
	return c.store.GetNetworks()
}

// RemoveNetwork tears down driver state and deletes the network row.
// Fails with KindConflict if any container is still attached.
func (c *Core) RemoveNetwork(ctx context.Context, id string) error {
	n, err := c.GetNetwork(id)
	if err != nil {
		return err
	}
	attached, err := c.store.ListAttachmentsForNetwork(id)
	if err != nil {
		return wrapErr(KindUnknown, "remove network: list attachments", err)
	}
	if len(attached) > 0 {
		return wrapErr(KindConflict, "remove network", fmt.Errorf("network %s still has %d attached containers", id, len(attached)))
	}

	d, err := c.driverFor(n)
	if err != nil {
		return err
	}
	if err := d.Destroy(ctx, n); err != nil {
		return wrapErr(KindUnknown, "destroy network driver state", err)
	}
	if err := c.store.DeleteNetwork(id); err != nil {
		return wrapErr(KindUnknown, "remove network: delete row", err)
	}

	if c.emitter != nil {
		c.emitter.Emit("network.destroy", id, nil)
	}
	return nil
}

// Attach joins containerID to network id, allocating an address and
// deriving a MAC, then asks the driver to wire the attachment in and
// reconciles the mesh peer set if the driver maintains one.
func (c *Core) Attach(ctx context.Context, networkID, containerID string, aliases []string) (*types.Attachment, error) {
	n, err := c.GetNetwork(networkID)
	if err != nil {
		return nil, err
	}
	if len(n.IPAM.Config) == 0 {
		return nil, wrapErr(KindInvalidArgument, "attach", fmt.Errorf("network %s has no IPAM pool", networkID))
	}
	subnet := n.IPAM.Config[0].Subnet

	mac := DeriveMacAddress(containerID, networkID)
	a, err := c.store.AllocateAttachment(networkID, func(used map[string]bool) (string, error) {
		return pickIPInSubnet(subnet, used)
	}, func(ip string) *types.Attachment {
		return &types.Attachment{
			NetworkID:   networkID,
			ContainerID: containerID,
			IPv4Address: ip,
			MacAddress:  mac,
			Aliases:     aliases,
			AttachedAt:  time.Now(),
		}
	})
	if err != nil {
		return nil, wrapErr(KindExhausted, "attach", err)
	}

	d, err := c.driverFor(n)
	if err != nil {
		return nil, err
	}
	if err := d.Attach(ctx, n, a); err != nil {
		_ = c.store.DeleteAttachment(networkID, containerID)
		return nil, wrapErr(KindGuestUnreachable, "attach: driver", err)
	}
	// The driver may have filled in per-attachment state (the guest's
	// wireguard public key) that reconcile reads back from the store.
	if err := c.store.SetAttachment(a); err != nil {
		_ = c.store.DeleteAttachment(networkID, containerID)
		return nil, wrapErr(KindUnknown, "attach: persist attachment", err)
	}

	if err := c.reconcile(ctx, n, d); err != nil {
		logrus.WithError(err).WithField("network", networkID).Warn("netcore: peer reconciliation failed after attach")
	}

	if c.emitter != nil {
		c.emitter.Emit("network.connect", networkID, map[string]string{"container": containerID, "ip": a.IPv4Address})
	}
	return a, nil
}

// Detach removes containerID's attachment from network id.
func (c *Core) Detach(ctx context.Context, networkID, containerID string) error {
	n, err := c.GetNetwork(networkID)
	if err != nil {
		return err
	}
	a, err := c.store.GetAttachment(networkID, containerID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil
		}
		return wrapErr(KindUnknown, "detach: get attachment", err)
	}

	d, err := c.driverFor(n)
	if err != nil {
		return err
	}
	if err := d.Detach(ctx, n, a); err != nil {
		logrus.WithError(err).WithField("network", networkID).Warn("netcore: driver detach failed, removing attachment row anyway")
	}
	if err := c.store.DeleteAttachment(networkID, containerID); err != nil {
		return wrapErr(KindUnknown, "detach: delete row", err)
	}

	if err := c.reconcile(ctx, n, d); err != nil {
		logrus.WithError(err).WithField("network", networkID).Warn("netcore: peer reconciliation failed after detach")
	}

	if c.emitter != nil {
		c.emitter.Emit("network.disconnect", networkID, map[string]string{"container": containerID})
	}
	return nil
}

func (c *Core) reconcile(ctx context.Context, n *types.Network, d Driver) error {
	attachments, err := c.store.ListAttachmentsForNetwork(n.ID)
	if err != nil {
		return err
	}
	return d.ReconcilePeers(ctx, n, attachments)
}

// ListContainerAttachments returns every network a container is
// currently attached to, used by ContainerCore for inspect output and
// by crash recovery to rebuild peer meshes.
func (c *Core) ListContainerAttachments(containerID string) ([]*types.Attachment, error) {
	return c.store.ListAttachmentsForContainer(containerID)
}

// ReconcileAll is called after crash recovery to re-push peer
// configuration for every wireguard network, since restarted containers
// may have fresh guest control-plane connections with no mesh state yet.
func (c *Core) ReconcileAll(ctx context.Context) error {
	nets, err := c.store.GetNetworks()
	if err != nil {
		return err
	}
	var firstErr error
	for _, n := range nets {
		d, err := c.driverFor(n)
		if err != nil {
			continue
		}
		if err := c.reconcile(ctx, n, d); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
