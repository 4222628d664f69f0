// Command arcactl is the operator CLI for arcad: a thin cobra client
// that dials the daemon's control socket and renders its responses,
// grounded on the teacher's cmd/scli/cmd/root.go root command plus its
// per-verb subcommand files (list.go, stop.go, create.go, ...).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vas-solutus/arcad/internal/arcadclient"
	"github.com/vas-solutus/arcad/internal/conf"
)

var socketPath string

var rootCmd = &cobra.Command{
	Use:   "arcactl",
	Short: "arcactl controls the arcad container daemon",
}

func client() *arcadclient.Client {
	path := socketPath
	if path == "" {
		cfg := conf.Default()
		path = cfg.ControlSocket
	}
	return arcadclient.New(path)
}

func checkCLI(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "path to arcad's control socket (defaults to the daemon's configured path)")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
