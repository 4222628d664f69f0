// Command arcad is the container daemon: it owns ContainerCore and
// NetworkCore, restores state from the previous run, then serves the
// control-plane jrpc2 bridge cmd/arcactl talks to. Wiring order and
// signal handling are grounded on the teacher's scon/main.go
// NewConManager/runSconServer pair and its sigChan/stopChan shutdown
// race.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vas-solutus/arcad/internal/concore"
	"github.com/vas-solutus/arcad/internal/conf"
	"github.com/vas-solutus/arcad/internal/daemonsvc"
	"github.com/vas-solutus/arcad/internal/logfan"
	"github.com/vas-solutus/arcad/internal/netcore"
	"github.com/vas-solutus/arcad/internal/store"
	"github.com/vas-solutus/arcad/internal/vmlaunch"
	"github.com/vas-solutus/arcad/vmgr/vzf"
)

const shutdownTimeout = 30 * time.Second

var configPath string

var rootCmd = &cobra.Command{
	Use:   "arcad",
	Short: "arcad runs the container orchestration core as a background daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(configPath)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to arcad.yaml (defaults to built-in config + env overrides)")
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("arcad: fatal")
		os.Exit(1)
	}
}

func runDaemon(configPath string) error {
	cfg, err := conf.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	imagesDir := filepath.Join(cfg.StateDir, "images")
	volumesDir := filepath.Join(cfg.StateDir, "volumes")
	logsDir := filepath.Join(cfg.StateDir, "logs")
	for _, dir := range []string{cfg.StateDir, imagesDir, volumesDir, logsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir %s: %w", dir, err)
		}
	}

	st, err := store.Open(filepath.Join(cfg.StateDir, "arcad.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	logs, err := logfan.New(logsDir)
	if err != nil {
		return fmt.Errorf("open log fanout: %w", err)
	}

	events := daemonsvc.NewEventBus()

	// NetworkCore is constructed with no guest resolver: it can't reach a
	// container's guest control plane until ContainerCore exists to
	// resolve one, the same bootstrap order constraint the teacher's
	// single Network type sidesteps by owning containers and networks in
	// one struct.
	net := netcore.New(st, events, nil)

	con := concore.New(cfg.StateDir, concore.Deps{
		Store:   st,
		Logs:    logs,
		Net:     net,
		Launch:  vmlaunch.New(vzf.Monitor, cfg.KernelPath, cfg.KernelCmdline),
		Images:  daemonsvc.NewLocalImageStore(imagesDir),
		Volumes: daemonsvc.NewLocalVolumeStore(volumesDir),
		Health:  daemonsvc.NoopHealthChecker{},
		Exec:    daemonsvc.NoopExecManager{},
		Emitter: events,
		Ports:   daemonsvc.NoopPortMapManager{},
	})

	// ContainerCore can now resolve guests, so NetworkCore's wireguard
	// driver can reach them.
	net.SetGuestResolver(con)

	// Restart policies run only after NetworkCore and VolumeStore are
	// wired, so a restarted container's network attachments and mounts
	// are ready before ContainerCore relaunches its VM.
	if err := con.Load(); err != nil {
		return fmt.Errorf("load container state: %w", err)
	}

	liveIDs := make(map[string]bool)
	for _, c := range con.List() {
		liveIDs[c.ID] = true
	}
	if err := logs.GCOrphaned(liveIDs); err != nil {
		logrus.WithError(err).Warn("arcad: orphaned log GC failed")
	}

	ctx := context.Background()
	if err := net.ReconcileAll(ctx); err != nil {
		logrus.WithError(err).Warn("arcad: network reconcile on startup failed")
	}

	con.ApplyRestartPolicies()

	srv := &daemonServer{con: con, net: net}

	serveErr := make(chan error, 1)
	go func() {
		logrus.WithField("socket", cfg.ControlSocket).Info("arcad: listening")
		serveErr <- srv.serve(cfg.ControlSocket)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			logrus.WithError(err).Error("arcad: control server exited")
		}
	case sig := <-sigChan:
		logrus.WithField("signal", sig).Info("arcad: shutting down")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	con.StopForRemoval(stopCtx)
	con.Close()
	os.Remove(cfg.ControlSocket)

	return nil
}
