// Package dockertypes holds the Docker-API-compatible wire shapes this
// daemon's external HTTP/CLI surface speaks, kept separate from
// internal/types so the persistence format can evolve without touching
// the client-facing contract. Grounded on the teacher's
// vmgr/dockertypes package.
package dockertypes

import (
	"time"

	"github.com/vas-solutus/arcad/internal/types"
)

// Port mirrors Docker's /containers/json port entry.
type Port struct {
	IP          string `json:"IP,omitempty"`
	PrivatePort uint16 `json:"PrivatePort"`
	PublicPort  uint16 `json:"PublicPort,omitempty"`
	Type        string `json:"Type"`
}

// MountPoint mirrors Docker's container inspect mount entry.
type MountPoint struct {
	Type        string `json:"Type"`
	Source      string `json:"Source"`
	Destination string `json:"Destination"`
	RW          bool   `json:"RW"`
}

// NetworkEndpointSettings describes one network attachment within
// inspect/list output.
type NetworkEndpointSettings struct {
	NetworkID  string `json:"NetworkID"`
	IPAddress  string `json:"IPAddress"`
	MacAddress string `json:"MacAddress"`
}

// SummaryNetworkSettings wraps the per-network endpoint map shown in
// list output.
type SummaryNetworkSettings struct {
	Networks map[string]NetworkEndpointSettings `json:"Networks"`
}

// ContainerSummary is the shape returned by list operations, matching
// the teacher's dockertypes.ContainerSummary field-for-field.
type ContainerSummary struct {
	ID      string   `json:"Id"`
	Names   []string `json:"Names"`
	Image   string   `json:"Image"`
	Command string   `json:"Command"`
	Created int64    `json:"Created"`
	Ports   []Port   `json:"Ports"`
	Labels  map[string]string `json:"Labels"`
	State   string   `json:"State"`
	Status  string   `json:"Status"`

	NetworkSettings *SummaryNetworkSettings `json:"NetworkSettings,omitempty"`
	Mounts          []MountPoint            `json:"Mounts,omitempty"`
}

// ContainerDetails is the shape returned by inspect, a superset of
// ContainerSummary with full host config and state timestamps.
type ContainerDetails struct {
	ID      string `json:"Id"`
	Name    string `json:"Name"`
	Image   string `json:"Image"`
	Created string `json:"Created"`

	State struct {
		Status     string `json:"Status"`
		Running    bool   `json:"Running"`
		Paused     bool   `json:"Paused"`
		Restarting bool   `json:"Restarting"`
		Dead       bool   `json:"Dead"`
		Pid        int    `json:"Pid"`
		ExitCode   int    `json:"ExitCode"`
		Error      string `json:"Error"`
		StartedAt  string `json:"StartedAt"`
		FinishedAt string `json:"FinishedAt"`
	} `json:"State"`

	HostConfig types.HostConfig `json:"HostConfig"`
	Mounts     []MountPoint     `json:"Mounts"`

	NetworkSettings *SummaryNetworkSettings `json:"NetworkSettings"`
}

// FromContainer adapts an internal/types.Container into its Docker-API
// list representation.
func FromContainer(c *types.Container) ContainerSummary {
	state, status := dockerStateStatus(c)
	return ContainerSummary{
		ID:      c.ID,
		Names:   []string{"/" + c.Name},
		Image:   c.Image,
		Command: firstOr(c.Cmd, ""),
		Created: c.CreatedAt.Unix(),
		Labels:  c.Labels,
		State:   state,
		Status:  status,
	}
}

// FromContainerDetails adapts an internal/types.Container into its full
// inspect representation, given its resolved network attachments.
func FromContainerDetails(c *types.Container, attachments map[string]types.Attachment) ContainerDetails {
	var d ContainerDetails
	d.ID = c.ID
	d.Name = "/" + c.Name
	d.Image = c.Image
	d.Created = c.CreatedAt.Format(time.RFC3339Nano)
	d.HostConfig = c.HostConfig

	state, status := dockerStateStatus(c)
	d.State.Status = state
	_ = status
	d.State.Running = c.State.Running() && c.State == types.StateRunning
	d.State.Paused = c.State == types.StatePaused
	d.State.Restarting = c.State == types.StateRestarting
	d.State.Dead = c.State == types.StateDead
	d.State.Pid = c.Pid
	d.State.ExitCode = c.ExitCode
	d.State.Error = c.Error
	if c.StartedAt != nil {
		d.State.StartedAt = c.StartedAt.Format(time.RFC3339Nano)
	}
	if c.FinishedAt != nil {
		d.State.FinishedAt = c.FinishedAt.Format(time.RFC3339Nano)
	}

	if len(attachments) > 0 {
		nets := make(map[string]NetworkEndpointSettings, len(attachments))
		for netID, a := range attachments {
			nets[netID] = NetworkEndpointSettings{
				NetworkID:  netID,
				IPAddress:  a.IPv4Address,
				MacAddress: a.MacAddress,
			}
		}
		d.NetworkSettings = &SummaryNetworkSettings{Networks: nets}
	}

	return d
}

func dockerStateStatus(c *types.Container) (state, status string) {
	switch c.State {
	case types.StateRunning:
		return "running", "Up"
	case types.StatePaused:
		return "paused", "Paused"
	case types.StateRestarting:
		return "restarting", "Restarting"
	case types.StateRemoving:
		return "removing", "Removal In Progress"
	case types.StateExited:
		return "exited", "Exited"
	case types.StateDead:
		return "dead", "Dead"
	default:
		return "created", "Created"
	}
}

func firstOr(s []string, def string) string {
	if len(s) == 0 {
		return def
	}
	return s[0]
}
