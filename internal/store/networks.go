package store

import "github.com/vas-solutus/arcad/internal/types"

func (s *Store) GetNetwork(id string) (*types.Network, error) {
	return getSimpleGob[*types.Network](s, bktNetworks, id)
}

func (s *Store) SetNetwork(n *types.Network) error {
	return setSimpleGob(s, bktNetworks, n.ID, n)
}

func (s *Store) DeleteNetwork(id string) error {
	return deleteSimple(s, bktNetworks, id)
}

func (s *Store) GetNetworks() ([]*types.Network, error) {
	var out []*types.Network
	err := forEachGob(s, bktNetworks, func(_ string, n **types.Network) error {
		out = append(out, *n)
		return nil
	})
	return out, err
}
