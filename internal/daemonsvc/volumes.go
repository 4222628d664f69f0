package daemonsvc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vas-solutus/arcad/internal/dockertypes"
)

// LocalVolumeStore is a directory-per-volume named-volume manager: each
// volume is a subdirectory of root, bind-mounted into containers by
// whatever path ContainerCore resolves from Volume.Mountpoint. Volume
// drivers beyond "local" are out of scope (spec.md Non-goals: "plug-in
// drivers beyond those named").
type LocalVolumeStore struct {
	root string
}

// NewLocalVolumeStore returns a store rooted at dir (conventionally
// "<state dir>/volumes").
func NewLocalVolumeStore(dir string) *LocalVolumeStore {
	return &LocalVolumeStore{root: dir}
}

func (s *LocalVolumeStore) path(name string) string {
	return filepath.Join(s.root, name)
}

// Resolve implements collab.VolumeStore.
func (s *LocalVolumeStore) Resolve(ctx context.Context, name string) (*dockertypes.Volume, error) {
	dir := s.path(name)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("volume %q not found: %w", name, err)
	}
	return &dockertypes.Volume{
		Name:       name,
		Driver:     "local",
		Mountpoint: dir,
		Scope:      "local",
		CreatedAt:  info.ModTime().UTC().Format(time.RFC3339),
	}, nil
}

// EnsureCreated implements collab.VolumeStore, creating the backing
// directory idempotently.
func (s *LocalVolumeStore) EnsureCreated(ctx context.Context, name, driver string) (*dockertypes.Volume, error) {
	if driver != "" && driver != "local" {
		return nil, fmt.Errorf("volume driver %q not supported", driver)
	}
	dir := s.path(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create volume %q: %w", name, err)
	}
	return s.Resolve(ctx, name)
}
