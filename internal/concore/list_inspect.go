package concore

import (
	"github.com/vas-solutus/arcad/internal/dockertypes"
	"github.com/vas-solutus/arcad/internal/types"
)

// internalLabel marks containers this daemon manages for its own
// purposes (the builtin docker/k8s-compat singletons); List hides them
// unless the caller explicitly asks for all containers.
const internalLabel = "com.arca.internal"

// ListSummaries returns the Docker-API container list shape. Non-all
// callers never see containers carrying the internal label.
func (core *Core) ListSummaries(all bool) []dockertypes.ContainerSummary {
	records := core.List()
	out := make([]dockertypes.ContainerSummary, 0, len(records))
	for _, r := range records {
		if !all && r.Labels[internalLabel] == "true" {
			continue
		}
		if !all && r.State == types.StateExited && r.Builtin {
			continue
		}
		out = append(out, dockertypes.FromContainer(r))
	}
	return out
}

// Inspect composes the full detail view for one container, including
// its current network attachments.
func (core *Core) Inspect(idOrName string) (dockertypes.ContainerDetails, error) {
	c, err := core.Resolve(idOrName)
	if err != nil {
		return dockertypes.ContainerDetails{}, err
	}
	record := c.toRecord()

	attachments := make(map[string]types.Attachment)
	if core.net != nil {
		list, err := core.net.ListContainerAttachments(record.ID)
		if err != nil {
			return dockertypes.ContainerDetails{}, wrapErr(KindUnknown, "inspect: list attachments", err)
		}
		for _, a := range list {
			attachments[a.NetworkID] = *a
		}
	}
	return dockertypes.FromContainerDetails(record, attachments), nil
}
