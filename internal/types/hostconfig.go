package types

// RestartPolicyName is the Docker-compatible restart policy identifier,
// grounded on the teacher's dockertypes.ContainerRestartPolicy.
type RestartPolicyName string

const (
	RestartNo            RestartPolicyName = "no"
	RestartAlways        RestartPolicyName = "always"
	RestartUnlessStopped RestartPolicyName = "unless-stopped"
	RestartOnFailure     RestartPolicyName = "on-failure"
)

// RestartPolicy mirrors Docker's restart policy shape: a name plus an
// optional maximum retry count, meaningful only when Name is on-failure.
type RestartPolicy struct {
	Name              RestartPolicyName `json:"name"`
	MaximumRetryCount int               `json:"maximum_retry_count,omitempty"`
}

// HealthTest mode constants, matching Docker's HEALTHCHECK semantics
// verbatim: NONE disables inherited healthchecks, CMD takes an argv,
// CMD-SHELL takes a single string run through the container's shell.
const (
	HealthTestNone     = "NONE"
	HealthTestCmd      = "CMD"
	HealthTestCmdShell = "CMD-SHELL"
)

// HealthConfig configures the in-guest health probe. Grounded on the
// teacher's vmgr/dockertypes HealthConfig struct.
type HealthConfig struct {
	Test        []string `json:"test,omitempty"`
	Interval    int64    `json:"interval,omitempty"` // nanoseconds
	Timeout     int64    `json:"timeout,omitempty"`
	StartPeriod int64    `json:"start_period,omitempty"`
	Retries     int      `json:"retries,omitempty"`
}

// PortBinding maps one published container port to a host address/port.
type PortBinding struct {
	HostIP   string `json:"host_ip,omitempty"`
	HostPort string `json:"host_port,omitempty"`
}

// Mount describes a bind mount or named-volume mount to be wired into
// the guest's rootfs before the init process starts.
type Mount struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	ReadOnly    bool   `json:"read_only,omitempty"`
	Type        string `json:"type"` // "bind" | "volume" | "tmpfs"
}

// HostConfig is the resource-limit and host-integration surface of a
// container, generalized from the teacher's vmgr/dockertypes
// ContainerHostConfig to the fields this daemon's data model names.
type HostConfig struct {
	// CPU
	CPUShares   int64  `json:"cpu_shares,omitempty"`
	NanoCPUs    int64  `json:"nano_cpus,omitempty"`
	CpusetCpus  string `json:"cpuset_cpus,omitempty"`
	CpusetMems  string `json:"cpuset_mems,omitempty"`

	// Memory
	Memory            int64 `json:"memory,omitempty"`
	MemoryReservation int64 `json:"memory_reservation,omitempty"`
	MemorySwap        int64 `json:"memory_swap,omitempty"`
	MemorySwappiness  *int64 `json:"memory_swappiness,omitempty"`

	// Capabilities
	CapAdd     []string `json:"cap_add,omitempty"`
	CapDrop    []string `json:"cap_drop,omitempty"`
	Privileged bool     `json:"privileged,omitempty"`

	// Networking
	NetworkMode   string                   `json:"network_mode,omitempty"`
	PortBindings  map[string][]PortBinding `json:"port_bindings,omitempty"`

	// Storage
	Binds   []string `json:"binds,omitempty"`
	Mounts  []Mount  `json:"mounts,omitempty"`

	// Misc
	GroupAdd      []string       `json:"group_add,omitempty"`
	RestartPolicy RestartPolicy  `json:"restart_policy"`
	AutoRemove    bool           `json:"auto_remove,omitempty"`
	Health        *HealthConfig  `json:"health,omitempty"`
}

// Clone deep-copies the slice/map fields so a returned Container can be
// freely mutated by the caller.
func (h HostConfig) Clone() HostConfig {
	cp := h
	cp.CapAdd = append([]string(nil), h.CapAdd...)
	cp.CapDrop = append([]string(nil), h.CapDrop...)
	cp.Binds = append([]string(nil), h.Binds...)
	cp.Mounts = append([]Mount(nil), h.Mounts...)
	cp.GroupAdd = append([]string(nil), h.GroupAdd...)
	if h.PortBindings != nil {
		cp.PortBindings = make(map[string][]PortBinding, len(h.PortBindings))
		for k, v := range h.PortBindings {
			cp.PortBindings[k] = append([]PortBinding(nil), v...)
		}
	}
	if h.MemorySwappiness != nil {
		v := *h.MemorySwappiness
		cp.MemorySwappiness = &v
	}
	if h.Health != nil {
		health := *h.Health
		health.Test = append([]string(nil), h.Health.Test...)
		cp.Health = &health
	}
	return cp
}

// EffectiveRetryLimit returns the restart policy's configured retry cap,
// or -1 if the policy never gives up (always / unless-stopped, or
// on-failure with MaximumRetryCount unset).
func (p RestartPolicy) EffectiveRetryLimit() int {
	if p.Name != RestartOnFailure {
		return -1
	}
	if p.MaximumRetryCount <= 0 {
		return -1
	}
	return p.MaximumRetryCount
}

// ShouldRestart decides, per the restart-policy decision table in the
// spec, whether a container that just exited with exitCode, having
// already been restarted attemptsSoFar times, should be restarted again.
// wasExplicitStop is true when the exit was caused by an explicit Stop
// call rather than the guest process exiting on its own.
func (p RestartPolicy) ShouldRestart(exitCode, attemptsSoFar int, wasExplicitStop bool) bool {
	switch p.Name {
	case RestartAlways:
		return true
	case RestartUnlessStopped:
		return !wasExplicitStop
	case RestartOnFailure:
		if wasExplicitStop {
			return false
		}
		if exitCode == 0 {
			return false
		}
		limit := p.EffectiveRetryLimit()
		return limit < 0 || attemptsSoFar < limit
	default: // RestartNo, or empty
		return false
	}
}
