package concore

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/vas-solutus/arcad/internal/collab"
	"github.com/vas-solutus/arcad/internal/types"
)

// CreateRequest is the daemon-facing shape of a Docker-compatible
// container create call, trimmed to the fields ContainerCore itself
// acts on.
type CreateRequest struct {
	Name       string
	Image      string
	Cmd        []string
	Entrypoint []string
	Env        []string
	WorkingDir string
	Labels     map[string]string
	HostConfig types.HostConfig

	// Deferred, when true, persists the row without launching a VM: the
	// first Start call instantiates it, and attach handles registered
	// before then are queued for that Start. The CLI sets it through
	// `arcactl create --deferred`.
	Deferred bool
}

// Create resolves the image, reserves identity, and persists a new
// container row. Deferred containers stop here; non-deferred ones are
// started immediately, mirroring `docker run` (as opposed to
// `docker create`).
func (core *Core) Create(ctx context.Context, req CreateRequest) (*types.Container, error) {
	if req.Name != "" {
		if err := types.ValidateName(req.Name); err != nil {
			return nil, wrapErr(KindInvalidArgument, "create", err)
		}
	}

	core.mu.Lock()
	if req.Name != "" {
		if _, exists := core.containersByName[req.Name]; exists {
			core.mu.Unlock()
			return nil, wrapErr(KindConflict, "create", ErrNameConflict)
		}
	}
	core.mu.Unlock()

	var img collab.ImageHandle
	if core.images != nil {
		h, err := core.images.Resolve(ctx, req.Image)
		if err != nil {
			return nil, wrapErr(KindUnknown, "create: resolve image", err)
		}
		img = h
	}

	id := types.NewID()
	name := req.Name
	if name == "" {
		name = "arca-" + types.ShortID(id)
	}

	record := &types.Container{
		ID:             id,
		NativeID:       types.NewID(),
		Name:           name,
		Image:          req.Image,
		Cmd:            req.Cmd,
		Entrypoint:     req.Entrypoint,
		Env:            req.Env,
		WorkingDir:     req.WorkingDir,
		Labels:         req.Labels,
		HostConfig:     req.HostConfig,
		State:          types.StateCreated,
		CreatedAt:      now(),
		DeferredCreate: req.Deferred,
	}

	core.mu.Lock()
	if req.Name != "" {
		if _, exists := core.containersByName[req.Name]; exists {
			core.mu.Unlock()
			return nil, wrapErr(KindConflict, "create", ErrNameConflict)
		}
	}
	c := core.newContainerLocked(record)
	core.mu.Unlock()

	if err := core.store.SetContainer(record); err != nil {
		core.mu.Lock()
		core.unregisterLocked(c)
		core.mu.Unlock()
		return nil, wrapErr(KindUnknown, "create: persist", err)
	}

	logrus.WithFields(logrus.Fields{
		"container": record.Name,
		"id":        record.ID,
		"image":     record.Image,
		"rootfs":    img.RootfsPath,
	}).Info("concore: container created")

	core.emit("container.create", record.ID, map[string]string{"name": record.Name, "image": record.Image})

	if !req.Deferred {
		if err := core.captureBaseline(c); err != nil {
			logrus.WithError(err).WithField("container", record.Name).Warn("concore: failed to capture filesystem baseline")
		}
		if err := core.Start(ctx, record.ID); err != nil {
			return record, err
		}
	}

	return c.toRecord(), nil
}

func (core *Core) containerRootDir(id string) string {
	return filepath.Join(core.stateDir, "containers", id)
}

func (core *Core) containerRootfsDir(id string) string {
	return filepath.Join(core.containerRootDir(id), "rootfs")
}

func (core *Core) containerDataDisk(id string) string {
	return filepath.Join(core.containerRootDir(id), "data.img")
}
