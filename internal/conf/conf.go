// Package conf loads the daemon's configuration: a YAML file on disk,
// overridable by ARCAD_-prefixed environment variables, following the
// profile-selection idiom of the teacher's scon/conf package but
// generalized from a hostname switch to an explicit file + env layer.
package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the daemon-wide configuration surface.
type Config struct {
	// StateDir holds the bbolt database, per-container log files and
	// filesystem baselines.
	StateDir string `yaml:"state_dir"`

	// ControlSocket is the unix socket path arcactl and other local
	// clients dial to reach the daemon's jrpc2 control surface.
	ControlSocket string `yaml:"control_socket"`

	// GuestCID is loaded from the config file but not read by the
	// daemon: ContainerCore allocates a fresh vsock CID for every VM it
	// starts.
	GuestCID uint32 `yaml:"guest_cid"`

	// DefaultBridgeSubnet is loaded from the config file but not read by
	// the daemon: NetworkCore creates no builtin bridge network and
	// allocates every subnet from its fixed 172.30.0.0/16 pool.
	DefaultBridgeSubnet string `yaml:"default_bridge_subnet"`

	// WireguardListenPortBase is loaded from the config file but not read
	// by the daemon: NetworkCore assigns no wireguard listen ports, so
	// Network.WireguardListenPort stays zero.
	WireguardListenPortBase int `yaml:"wireguard_listen_port_base"`

	// KernelPath and KernelCmdline are passed to every container VM's
	// platform VM abstraction; every container boots the same guest
	// kernel image, only the rootfs/data disks differ per container.
	KernelPath    string `yaml:"kernel_path"`
	KernelCmdline string `yaml:"kernel_cmdline"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the baseline configuration used when no file is
// present, analogous to the teacher's configTest profile: permissive
// defaults suitable for local development and tests.
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".arcad")
	return &Config{
		StateDir:                base,
		ControlSocket:           filepath.Join(base, "arcad.sock"),
		GuestCID:                0,
		DefaultBridgeSubnet:     "172.30.0.0/16",
		WireguardListenPortBase: 51820,
		KernelPath:              filepath.Join(base, "assets", "vmlinux"),
		KernelCmdline:           "console=hvc0 root=/dev/vda rw",
		LogLevel:                "info",
	}
}

// Load reads path if it exists, applies it on top of Default(), then
// applies any ARCAD_* environment overrides. A missing file is not an
// error: it just means the defaults (plus env) apply, mirroring how the
// teacher falls back to configTest outside the VM.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("conf: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fine, use defaults
		default:
			return nil, fmt.Errorf("conf: read %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ARCAD_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("ARCAD_CONTROL_SOCKET"); v != "" {
		cfg.ControlSocket = v
	}
	if v := os.Getenv("ARCAD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
