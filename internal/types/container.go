// Package types holds the wire and persistence shapes shared by the
// container core, the network core and the CLI front ends.
package types

import (
	"fmt"
	"regexp"
	"time"
)

// ContainerState is the lifecycle FSM state of a container, as defined by
// the data model: created -> running -> (paused <-> running) -> exited,
// with restarting and removing as transient states and dead as the
// terminal failure state.
type ContainerState string

const (
	StateCreated    ContainerState = "created"
	StateRunning    ContainerState = "running"
	StatePaused     ContainerState = "paused"
	StateRestarting ContainerState = "restarting"
	StateRemoving   ContainerState = "removing"
	StateExited     ContainerState = "exited"
	StateDead       ContainerState = "dead"
)

// validTransitions enumerates the edges of the lifecycle FSM. Internal
// transitions (driven by the exit monitor or crash recovery, not by an
// explicit API call) are allowed a couple of extra edges that a
// user-initiated call must never take, e.g. created -> exited; see
// internalOnlyTransitions.
var validTransitions = map[ContainerState]map[ContainerState]bool{
	StateCreated: {
		StateRunning: true,
		StateRemoving: true,
		StateDead:    true,
	},
	StateRunning: {
		StatePaused:     true,
		StateRestarting: true,
		StateExited:     true,
		StateRemoving:   true,
		StateDead:       true,
	},
	StatePaused: {
		StateRunning:  true,
		StateRemoving: true,
		StateDead:     true,
	},
	StateRestarting: {
		StateRunning: true,
		StateExited:  true,
		StateDead:    true,
	},
	StateExited: {
		StateRunning:  true,
		StateRemoving: true,
	},
	StateRemoving: {
		StateDead: true,
	},
	StateDead: {},
}

// internalOnlyTransitions are additionally allowed when isInternal is true,
// i.e. the caller is the exit monitor or crash recovery rather than a
// user-facing API call.
var internalOnlyTransitions = map[ContainerState]map[ContainerState]bool{
	StateRunning: {
		StateDead: true,
	},
	StateCreated: {
		StateExited: true,
	},
}

// CanTransitionTo reports whether the FSM may move from s to other.
// isInternal relaxes the edge set for transitions driven by the daemon
// itself (exit monitor, crash recovery) rather than an explicit API call.
func (s ContainerState) CanTransitionTo(other ContainerState, isInternal bool) bool {
	if s == other {
		return false
	}
	if validTransitions[s][other] {
		return true
	}
	if isInternal && internalOnlyTransitions[s][other] {
		return true
	}
	return false
}

// Terminal reports whether the state has no outgoing edges at all
// (a container row in this state will never change again in place).
func (s ContainerState) Terminal() bool {
	return s == StateDead
}

// Running reports whether the state belongs to the running family:
// running, paused (paused containers still hold their VM and vsock
// channel) and restarting (the exit monitor has parked the container
// between runs; it holds no VM in that state).
func (s ContainerState) Running() bool {
	return s == StateRunning || s == StatePaused || s == StateRestarting
}

const (
	// NativeIDReservedPrefix is the ID prefix reserved for builtin containers,
	// mirroring the teacher's reserved-ULID convention for singleton
	// system containers that always exist and can't be removed.
	NativeIDReservedPrefix = "00000000000000000000RSVD"
)

var (
	// ContainerNameRegex matches the hostname-safe subset of names this
	// daemon accepts: must start with an alnum, and may contain alnum,
	// underscore, dash and dot thereafter. Two characters minimum.
	ContainerNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]+$`)

	// ContainerNameBlacklist holds names that collide with reserved
	// hostnames or CLI keywords and can never be assigned to a container.
	ContainerNameBlacklist = map[string]bool{
		"default":  true,
		"host":     true,
		"gateway":  true,
		"services": true,
	}
)

// ValidateName checks a proposed container name against the regex and
// blacklist rules from the data model.
func ValidateName(name string) error {
	if !ContainerNameRegex.MatchString(name) {
		return fmt.Errorf("invalid container name %q: must match %s", name, ContainerNameRegex.String())
	}
	if ContainerNameBlacklist[name] {
		return fmt.Errorf("invalid container name %q: reserved", name)
	}
	return nil
}

// RestartCount tracks the exit-monitor's view of restart-policy progress
// for a single container, reset whenever the container is explicitly
// started by the user.
type RestartCount struct {
	Attempts     int       `json:"attempts"`
	LastExitCode int       `json:"last_exit_code"`
	LastExitAt   time.Time `json:"last_exit_at"`
	NextDelay    time.Duration `json:"next_delay"`
}

// Container is the durable record for one container: identity, image,
// configuration and lifecycle bookkeeping. It is the row persisted by
// the state store and the shape returned by inspect/list calls.
type Container struct {
	ID     string `json:"id"`
	NativeID string `json:"native_id"`
	Name   string `json:"name"`

	Image       string      `json:"image"`
	Cmd         []string    `json:"cmd,omitempty"`
	Entrypoint  []string    `json:"entrypoint,omitempty"`
	Env         []string    `json:"env,omitempty"`
	WorkingDir  string      `json:"working_dir,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`

	HostConfig HostConfig `json:"host_config"`

	State      ContainerState `json:"state"`
	ExitCode   int            `json:"exit_code"`
	Error      string         `json:"error,omitempty"`
	Pid        int            `json:"pid,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Restart RestartCount `json:"restart"`

	// StoppedByUser records whether the container's last stop was an
	// explicit user call (stop/kill) rather than a guest-initiated exit.
	// ApplyRestartPolicies consults this across daemon restarts to decide
	// whether an unless-stopped container should come back up.
	StoppedByUser bool `json:"stopped_by_user"`

	// DeferredCreate is true for a container whose VM has not yet been
	// instantiated: the row exists so that `create` + interactive `attach`
	// can be split into separate API calls. The VM is started by the first
	// Start call; attach handles registered before then are queued for it.
	DeferredCreate bool `json:"deferred_create"`

	Builtin bool `json:"builtin"`
}

// Clone returns a deep-enough copy for safe handoff across the registry
// lock boundary: callers of list/inspect must never be able to mutate
// the core's internal record through the returned value.
func (c *Container) Clone() *Container {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Cmd = append([]string(nil), c.Cmd...)
	cp.Entrypoint = append([]string(nil), c.Entrypoint...)
	cp.Env = append([]string(nil), c.Env...)
	if c.Labels != nil {
		cp.Labels = make(map[string]string, len(c.Labels))
		for k, v := range c.Labels {
			cp.Labels[k] = v
		}
	}
	cp.HostConfig = c.HostConfig.Clone()
	return &cp
}
