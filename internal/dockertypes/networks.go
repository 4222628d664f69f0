package dockertypes

import "github.com/vas-solutus/arcad/internal/types"

// Network is the list/inspect wire shape for a network, matching the
// teacher's dockertypes.Network.
type Network struct {
	Name       string `json:"Name"`
	ID         string `json:"Id"`
	Scope      string `json:"Scope"`
	Driver     string `json:"Driver"`
	EnableIPv6 bool   `json:"EnableIPv6"`
	IPAM       IPAM   `json:"IPAM"`
	Internal   bool   `json:"Internal"`
}

type IPAM struct {
	Driver string       `json:"Driver"`
	Config []IPAMConfig `json:"Config"`
}

type IPAMConfig struct {
	Subnet  string `json:"Subnet"`
	Gateway string `json:"Gateway,omitempty"`
}

// FromNetwork adapts an internal/types.Network to its wire shape.
func FromNetwork(n *types.Network) Network {
	cfg := make([]IPAMConfig, 0, len(n.IPAM.Config))
	for _, c := range n.IPAM.Config {
		cfg = append(cfg, IPAMConfig{Subnet: c.Subnet, Gateway: c.Gateway})
	}
	return Network{
		Name:       n.Name,
		ID:         n.ID,
		Scope:      "local",
		Driver:     string(n.Driver),
		EnableIPv6: false,
		Internal:   n.Internal,
		IPAM:       IPAM{Driver: n.IPAM.Driver, Config: cfg},
	}
}
