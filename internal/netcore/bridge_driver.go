package netcore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coreos/go-iptables/iptables"
	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/vas-solutus/arcad/internal/types"
)

const bridgeTxQueueLen = 5000

// bridgeDriver backs types.DriverBridge: one Linux bridge plus a
// MASQUERADE/NAT iptables ruleset per network, grounded verbatim on the
// teacher's scon/network.go newBridge/setupOneNat shape, generalized
// from one fixed bridge (conbr0) to one bridge per network (named from
// the network's ID) and gated so a bridge/NAT setup is created per
// CreateNetwork call instead of once at daemon startup.
type bridgeDriver struct {
	mu      sync.Mutex
	bridges map[string]*netlink.Bridge
}

func newBridgeDriver() *bridgeDriver {
	return &bridgeDriver{bridges: make(map[string]*netlink.Bridge)}
}

func bridgeIfaceName(networkID string) string {
	name := "arcbr-" + networkID
	if len(name) > 15 { // IFNAMSIZ
		name = name[:15]
	}
	return name
}

func (b *bridgeDriver) Create(ctx context.Context, n *types.Network) error {
	if len(n.IPAM.Config) == 0 {
		return fmt.Errorf("bridge driver: network %s has no IPAM config", n.ID)
	}
	gateway := n.IPAM.Config[0].Gateway
	if gateway == "" {
		return fmt.Errorf("bridge driver: network %s has no gateway", n.ID)
	}

	ifName := bridgeIfaceName(n.ID)
	la := netlink.NewLinkAttrs()
	la.Name = ifName
	la.TxQLen = bridgeTxQueueLen
	br := &netlink.Bridge{LinkAttrs: la}

	err := netlink.LinkAdd(br)
	if err != nil && errors.Is(err, unix.EEXIST) {
		logrus.WithField("bridge", ifName).Debug("bridge driver: bridge already exists, recreating")
		if delErr := netlink.LinkDel(br); delErr != nil {
			return fmt.Errorf("bridge driver: recreate %s: %w", ifName, delErr)
		}
		err = netlink.LinkAdd(br)
	}
	if err != nil {
		return fmt.Errorf("bridge driver: create %s: %w", ifName, err)
	}

	ones := 24
	addr, err := netlink.ParseAddr(fmt.Sprintf("%s/%d", gateway, ones))
	if err != nil {
		return fmt.Errorf("bridge driver: parse gateway addr: %w", err)
	}
	if err := netlink.AddrAdd(br, addr); err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("bridge driver: assign gateway addr: %w", err)
	}
	if err := netlink.LinkSetUp(br); err != nil {
		return fmt.Errorf("bridge driver: set %s up: %w", ifName, err)
	}

	if err := setupNAT(n.IPAM.Config[0].Subnet, ifName); err != nil {
		return fmt.Errorf("bridge driver: setup NAT for %s: %w", n.ID, err)
	}

	b.mu.Lock()
	b.bridges[n.ID] = br
	b.mu.Unlock()
	return nil
}

func (b *bridgeDriver) Destroy(ctx context.Context, n *types.Network) error {
	ifName := bridgeIfaceName(n.ID)

	if len(n.IPAM.Config) > 0 {
		if err := teardownNAT(n.IPAM.Config[0].Subnet, ifName); err != nil {
			logrus.WithError(err).WithField("network", n.ID).Warn("bridge driver: NAT teardown failed")
		}
	}

	b.mu.Lock()
	br, ok := b.bridges[n.ID]
	delete(b.bridges, n.ID)
	b.mu.Unlock()
	if !ok {
		la := netlink.NewLinkAttrs()
		la.Name = ifName
		br = &netlink.Bridge{LinkAttrs: la}
	}
	if err := netlink.LinkDel(br); err != nil && !errors.Is(err, unix.ENODEV) {
		return fmt.Errorf("bridge driver: delete %s: %w", ifName, err)
	}
	return nil
}

// Attach is a no-op beyond bookkeeping for the plain bridge driver: the
// veth/tap pairing a container's guest uses to reach the host bridge is
// programmed by the VM hypervisor layer (out of this daemon's scope),
// not by NetworkCore itself. The bridge driver's job is the host-side
// bridge/NAT plumbing the guest's link ultimately attaches to.
func (b *bridgeDriver) Attach(ctx context.Context, n *types.Network, a *types.Attachment) error {
	return nil
}

func (b *bridgeDriver) Detach(ctx context.Context, n *types.Network, a *types.Attachment) error {
	return nil
}

// ReconcilePeers is a no-op for plain bridge networks: the bridge
// itself is the mesh, there is no peer list to push.
func (b *bridgeDriver) ReconcilePeers(ctx context.Context, n *types.Network, attachments []*types.Attachment) error {
	return nil
}

// setupNAT installs MASQUERADE + a minimal accept ruleset for traffic
// leaving subnet over the host's default route, grounded on the
// teacher's setupOneNat (ipt.ClearAll ownership model traded for
// per-rule AppendUnique so multiple networks' rules can coexist).
func setupNAT(subnet, ifName string) error {
	ipt, err := iptables.New(iptables.IPFamily(iptables.ProtocolIPv4), iptables.Timeout(10))
	if err != nil {
		return err
	}

	rules := [][]string{
		{"nat", "POSTROUTING", "-s", subnet, "!", "-o", ifName, "-j", "MASQUERADE"},
		{"filter", "FORWARD", "-i", ifName, "-j", "ACCEPT"},
		{"filter", "FORWARD", "-o", ifName, "-m", "conntrack", "--ctstate", "ESTABLISHED,RELATED", "-j", "ACCEPT"},
	}
	for _, r := range rules {
		if err := ipt.AppendUnique(r[0], r[1], r[2:]...); err != nil {
			return fmt.Errorf("iptables rule %v: %w", r, err)
		}
	}
	return nil
}

func teardownNAT(subnet, ifName string) error {
	ipt, err := iptables.New(iptables.IPFamily(iptables.ProtocolIPv4), iptables.Timeout(10))
	if err != nil {
		return err
	}
	rules := [][]string{
		{"nat", "POSTROUTING", "-s", subnet, "!", "-o", ifName, "-j", "MASQUERADE"},
		{"filter", "FORWARD", "-i", ifName, "-j", "ACCEPT"},
		{"filter", "FORWARD", "-o", ifName, "-m", "conntrack", "--ctstate", "ESTABLISHED,RELATED", "-j", "ACCEPT"},
	}
	var firstErr error
	for _, r := range rules {
		if err := ipt.DeleteIfExists(r[0], r[1], r[2:]...); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// noneDriver backs types.DriverNone: a container attached to it gets no
// network access at all, so every call is a no-op.
type noneDriver struct{}

func (noneDriver) Create(ctx context.Context, n *types.Network) error  { return nil }
func (noneDriver) Destroy(ctx context.Context, n *types.Network) error { return nil }
func (noneDriver) Attach(ctx context.Context, n *types.Network, a *types.Attachment) error {
	return nil
}
func (noneDriver) Detach(ctx context.Context, n *types.Network, a *types.Attachment) error {
	return nil
}
func (noneDriver) ReconcilePeers(ctx context.Context, n *types.Network, attachments []*types.Attachment) error {
	return nil
}
