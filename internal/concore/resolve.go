package concore

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vas-solutus/arcad/internal/types"
)

// minPrefixLen is the shortest hex prefix Resolve will attempt to match
// against a DockerID, per the resolution rules' "hex prefix >=4 chars".
const minPrefixLen = 4

// Resolve looks up a container by exact ID, exact name (with or without
// a leading "/"), or hex-prefix of the ID, the three forms
// Docker-compatible callers pass interchangeably. A prefix match is
// cached so repeated calls against the same short ID (common from a CLI
// script) skip the linear scan. Multiple IDs sharing a prefix are not
// an error: the match set is sorted ascending and the first is
// returned, with a log line noting the tie.
func (core *Core) Resolve(idOrName string) (*Container, error) {
	name := strings.TrimPrefix(idOrName, "/")

	core.mu.RLock()
	defer core.mu.RUnlock()

	if c, ok := core.containersByID[idOrName]; ok {
		return c, nil
	}
	if c, ok := core.containersByName[name]; ok {
		return c, nil
	}
	if full, ok := core.resolveCache.Get(idOrName); ok {
		if c, ok := core.containersByID[full]; ok {
			return c, nil
		}
		core.resolveCache.Remove(idOrName)
	}

	if len(idOrName) < minPrefixLen {
		return nil, wrapErr(KindNotFound, "resolve", ErrContainerNotFound)
	}
	var matches []string
	for id := range core.containersByID {
		if strings.HasPrefix(id, idOrName) {
			matches = append(matches, id)
		}
	}
	if len(matches) == 0 {
		return nil, wrapErr(KindNotFound, "resolve", ErrContainerNotFound)
	}
	sort.Strings(matches)
	if len(matches) > 1 {
		logrus.WithFields(logrus.Fields{
			"prefix":  idOrName,
			"matches": matches,
		}).Warn("concore: ambiguous ID prefix, resolving to lowest sorting match")
	}
	full := matches[0]
	core.resolveCache.Add(idOrName, full)
	return core.containersByID[full], nil
}

// GetByID returns the container registered under the exact id, with no
// prefix or name fallback.
func (core *Core) GetByID(id string) (*Container, error) {
	core.mu.RLock()
	defer core.mu.RUnlock()
	c, ok := core.containersByID[id]
	if !ok {
		return nil, wrapErr(KindNotFound, "get by id", ErrContainerNotFound)
	}
	return c, nil
}

// List returns a point-in-time record snapshot for every registered
// container.
func (core *Core) List() []*types.Container {
	core.mu.RLock()
	defer core.mu.RUnlock()

	out := make([]*types.Container, 0, len(core.containersByID))
	for _, c := range core.containersByID {
		out = append(out, c.toRecord())
	}
	return out
}
