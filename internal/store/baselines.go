package store

import "github.com/vas-solutus/arcad/internal/types"

func (s *Store) GetBaseline(containerID string) (*types.Baseline, error) {
	return getSimpleGob[*types.Baseline](s, bktBaselines, containerID)
}

func (s *Store) SetBaseline(b *types.Baseline) error {
	return setSimpleGob(s, bktBaselines, b.ContainerID, b)
}

func (s *Store) DeleteBaseline(containerID string) error {
	return deleteSimple(s, bktBaselines, containerID)
}
