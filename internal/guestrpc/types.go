package guestrpc

// GenerateKeyPairResult is returned by the guest wireguard service after
// it generates a fresh keypair for one network attachment; only the
// public half ever leaves the guest.
type GenerateKeyPairResult struct {
	PublicKey string `json:"public_key"`
}

// ConfigureInterfaceRequest asks the guest wireguard service to
// (re)configure the mesh interface for one network attachment: its own
// address, listen port and the full reconciled peer set.
type ConfigureInterfaceRequest struct {
	NetworkID  string   `json:"network_id"`
	ListenPort int      `json:"listen_port"`
	Address    string   `json:"address"`
	Peers      []Peer   `json:"peers"`
}

// Peer is one mesh peer entry pushed to the guest, matching
// internal/types.PeerDescriptor but shaped for the wire rather than for
// persistence.
type Peer struct {
	PublicKey  string   `json:"public_key"`
	Endpoint   string   `json:"endpoint,omitempty"`
	AllowedIPs []string `json:"allowed_ips"`
}

// TeardownInterfaceRequest asks the guest to remove a network's mesh
// interface entirely, on detach.
type TeardownInterfaceRequest struct {
	NetworkID string `json:"network_id"`
}

// ProcessInfo is one row of the guest's process-list service response,
// the data backing `top`/`ps`-style introspection of a running
// container without needing a full exec session.
type ProcessInfo struct {
	PID     int     `json:"pid"`
	PPID    int     `json:"ppid"`
	Command string  `json:"command"`
	CPUPct  float64 `json:"cpu_pct"`
	RSSKiB  int64   `json:"rss_kib"`
}

// PingResult is the trivial liveness probe response.
type PingResult struct {
	OK bool `json:"ok"`
}

// SyncResult acknowledges a filesystem sync, the signal the host needs
// before it's safe to read the rootfs disk image for a diff.
type SyncResult struct {
	OK bool `json:"ok"`
}
