package store

import "github.com/vas-solutus/arcad/internal/types"

func (s *Store) GetContainer(id string) (*types.Container, error) {
	return getSimpleGob[*types.Container](s, bktContainers, id)
}

func (s *Store) SetContainer(c *types.Container) error {
	return setSimpleGob(s, bktContainers, c.ID, c)
}

func (s *Store) DeleteContainer(id string) error {
	return deleteSimple(s, bktContainers, id)
}

// GetContainers returns every persisted container row. Used on startup
// by crash recovery to rebuild the in-memory registry.
func (s *Store) GetContainers() ([]*types.Container, error) {
	var out []*types.Container
	err := forEachGob(s, bktContainers, func(_ string, c **types.Container) error {
		out = append(out, *c)
		return nil
	})
	return out, err
}
