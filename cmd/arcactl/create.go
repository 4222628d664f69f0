package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vas-solutus/arcad/internal/arcadrpc"
	"github.com/vas-solutus/arcad/internal/types"
)

var (
	flagName       string
	flagEnv        []string
	flagEntrypoint []string
	flagWorkdir    string
	flagRestart    string
	flagDeferred   bool
	flagPublish    []string
)

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&flagName, "name", "", "container name")
	createCmd.Flags().StringArrayVarP(&flagEnv, "env", "e", nil, "environment variable KEY=VALUE")
	createCmd.Flags().StringArrayVar(&flagEntrypoint, "entrypoint", nil, "override the image entrypoint")
	createCmd.Flags().StringVarP(&flagWorkdir, "workdir", "w", "", "working directory inside the container")
	createCmd.Flags().StringVar(&flagRestart, "restart", "no", "restart policy: no, always, unless-stopped, on-failure")
	createCmd.Flags().BoolVar(&flagDeferred, "deferred", false, "persist the container without launching its VM yet")
	createCmd.Flags().StringArrayVarP(&flagPublish, "publish", "p", nil, "publish a container port: HOSTPORT:CONTAINERPORT/PROTO")
}

var createCmd = &cobra.Command{
	Use:   "create IMAGE [CMD...]",
	Short: "Create a container without starting it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bindings, err := parsePortBindings(flagPublish)
		checkCLI(err)

		req := arcadrpc.CreateRequest{
			Name:       flagName,
			Image:      args[0],
			Cmd:        args[1:],
			Entrypoint: flagEntrypoint,
			Env:        flagEnv,
			WorkingDir: flagWorkdir,
			Deferred:   flagDeferred,
			HostConfig: types.HostConfig{
				RestartPolicy: types.RestartPolicy{Name: types.RestartPolicyName(flagRestart)},
				PortBindings:  bindings,
			},
		}

		c := client()
		defer c.Close()

		ctr, err := c.Create(context.Background(), req)
		checkCLI(err)
		fmt.Println(ctr.ID)
		return nil
	},
}

// parsePortBindings turns "8080:80/tcp" style flags into the
// HostConfig.PortBindings map ContainerCore expects, mirroring how
// Docker's own CLI flattens -p flags before handing them to the daemon.
func parsePortBindings(flags []string) (map[string][]types.PortBinding, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	out := make(map[string][]types.PortBinding)
	for _, f := range flags {
		hostPort, containerPort, proto, err := splitPublishFlag(f)
		if err != nil {
			return nil, err
		}
		key := fmt.Sprintf("%s/%s", containerPort, proto)
		out[key] = append(out[key], types.PortBinding{HostPort: hostPort})
	}
	return out, nil
}

func splitPublishFlag(f string) (hostPort, containerPort, proto string, err error) {
	proto = "tcp"
	rest := f
	if i := strings.LastIndexByte(rest, '/'); i >= 0 {
		proto = rest[i+1:]
		rest = rest[:i]
	}
	i := strings.LastIndexByte(rest, ':')
	if i < 0 {
		return "", "", "", fmt.Errorf("invalid --publish %q: expected HOSTPORT:CONTAINERPORT", f)
	}
	return rest[:i], rest[i+1:], proto, nil
}
