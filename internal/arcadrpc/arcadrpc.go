// Package arcadrpc defines the request/response shapes carried over the
// jrpc2 control-plane bridge between cmd/arcad and its clients (chiefly
// cmd/arcactl), grounded on the teacher's scon/types request-struct
// idiom (one named struct per RPC method, a bare ID/name lookup struct
// for the read methods).
package arcadrpc

import (
	"time"

	"github.com/vas-solutus/arcad/internal/dockertypes"
	"github.com/vas-solutus/arcad/internal/types"
)

type IDOrNameRequest struct {
	IDOrName string `json:"idOrName"`
}

type CreateRequest struct {
	Name       string            `json:"name"`
	Image      string            `json:"image"`
	Cmd        []string          `json:"cmd,omitempty"`
	Entrypoint []string          `json:"entrypoint,omitempty"`
	Env        []string          `json:"env,omitempty"`
	WorkingDir string            `json:"workingDir,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
	HostConfig types.HostConfig  `json:"hostConfig"`
	Deferred   bool              `json:"deferred,omitempty"`
}

type CreateResponse struct {
	Container *types.Container `json:"container"`
}

type StopRequest struct {
	IDOrName string        `json:"idOrName"`
	Timeout  time.Duration `json:"timeout"`
}

type RenameRequest struct {
	IDOrName string `json:"idOrName"`
	NewName  string `json:"newName"`
}

type UpdateRequest struct {
	IDOrName string           `json:"idOrName"`
	Patch    types.HostConfig `json:"patch"`
}

type RemoveRequest struct {
	IDOrName string `json:"idOrName"`
	Force    bool   `json:"force"`
}

type WaitResponse struct {
	ExitCode int `json:"exitCode"`
}

type ListRequest struct {
	All bool `json:"all"`
}

type ListResponse struct {
	Containers []dockertypes.ContainerSummary `json:"containers"`
}

type InspectResponse struct {
	Details dockertypes.ContainerDetails `json:"details"`
}

type ChangesResponse struct {
	Changes []types.DiffEntry `json:"changes"`
}

type CreateNetworkRequest struct {
	Name     string              `json:"name"`
	Driver   types.NetworkDriver `json:"driver"`
	IPAM     types.IPAM          `json:"ipam"`
	Internal bool                `json:"internal"`
}

type NetworkResponse struct {
	Network *types.Network `json:"network"`
}

type ListNetworksResponse struct {
	Networks []*types.Network `json:"networks"`
}

type AttachRequest struct {
	NetworkID   string   `json:"networkId"`
	ContainerID string   `json:"containerId"`
	Aliases     []string `json:"aliases,omitempty"`
}

type AttachResponse struct {
	Attachment *types.Attachment `json:"attachment"`
}

type DetachRequest struct {
	NetworkID   string `json:"networkId"`
	ContainerID string `json:"containerId"`
}

type NetworkIDRequest struct {
	ID string `json:"id"`
}
