// Package daemonsvc provides this daemon's default implementations of
// the narrow collaborator interfaces internal/collab declares for
// concerns spec.md treats as plug-in boundaries rather than
// ContainerCore/NetworkCore responsibilities: image resolution, named
// volumes, health probing, exec sessions, event publication and host
// port mapping. Image building/pulling is an explicit Non-goal, so
// LocalImageStore only resolves a reference against a pre-populated
// local directory tree; it never fetches anything over the network,
// unlike the teacher's scon/images.go downloader.
package daemonsvc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vas-solutus/arcad/internal/collab"
)

// LocalImageStore resolves an image reference to a rootfs directory
// already present under root, the layout a side-channel import tool
// (out of this daemon's scope) is expected to populate.
type LocalImageStore struct {
	root string
}

// NewLocalImageStore returns a store rooted at dir (conventionally
// "<state dir>/images").
func NewLocalImageStore(dir string) *LocalImageStore {
	return &LocalImageStore{root: dir}
}

func (s *LocalImageStore) imageDir(ref string) string {
	return filepath.Join(s.root, sanitizeRef(ref))
}

// Resolve implements collab.ImageStore.
func (s *LocalImageStore) Resolve(ctx context.Context, ref string) (collab.ImageHandle, error) {
	dir := s.imageDir(ref)
	rootfs := filepath.Join(dir, "rootfs")
	if _, err := os.Stat(rootfs); err != nil {
		return collab.ImageHandle{}, fmt.Errorf("image %q not found under %s: %w", ref, s.root, err)
	}
	return collab.ImageHandle{ID: sanitizeRef(ref), RootfsPath: rootfs}, nil
}

// sanitizeRef turns a reference like "alpine:3.19" or
// "docker.io/library/nginx:latest" into a single path-safe component,
// mirroring how the teacher's image cache keys its on-disk directories
// by a flattened reference string.
func sanitizeRef(ref string) string {
	out := make([]byte, 0, len(ref))
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '.':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
