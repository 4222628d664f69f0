package dockertypes

// Volume is the wire shape for a named volume, matching the teacher's
// dockertypes.Volume. Volume lifecycle itself lives outside this daemon's
// scope (see internal/collab.VolumeStore); this type exists so the
// container-inspect and list surfaces can describe volume mounts without
// importing the volume manager.
type Volume struct {
	CreatedAt  string            `json:"CreatedAt,omitempty"`
	Driver     string            `json:"Driver"`
	Labels     map[string]string `json:"Labels"`
	Mountpoint string            `json:"Mountpoint"`
	Name       string            `json:"Name"`
	Options    map[string]string `json:"Options,omitempty"`
	Scope      string            `json:"Scope"`
}

// VolumeListResponse is the wire shape for a volume list call.
type VolumeListResponse struct {
	Volumes  []*Volume `json:"Volumes"`
	Warnings []string  `json:"Warnings,omitempty"`
}
