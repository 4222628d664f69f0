package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vas-solutus/arcad/internal/arcadrpc"
	"github.com/vas-solutus/arcad/internal/types"
)

var (
	flagNetDriver   string
	flagNetSubnet   string
	flagNetGateway  string
	flagNetInternal bool
	flagAliases     []string
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Manage networks",
}

func init() {
	rootCmd.AddCommand(networkCmd)
	networkCmd.AddCommand(networkLsCmd, networkCreateCmd, networkRmCmd, networkConnectCmd, networkDisconnectCmd)

	networkCreateCmd.Flags().StringVarP(&flagNetDriver, "driver", "d", string(types.DriverBridge), "network driver: bridge, wireguard")
	networkCreateCmd.Flags().StringVar(&flagNetSubnet, "subnet", "", "subnet CIDR, e.g. 172.30.1.0/24")
	networkCreateCmd.Flags().StringVar(&flagNetGateway, "gateway", "", "gateway address within the subnet")
	networkCreateCmd.Flags().BoolVar(&flagNetInternal, "internal", false, "restrict the network to inter-container traffic only")

	networkConnectCmd.Flags().StringArrayVar(&flagAliases, "alias", nil, "network-scoped DNS alias for the container")
}

var networkLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List networks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		defer c.Close()

		nets, err := c.ListNetworks(context.Background())
		checkCLI(err)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "NETWORK ID\tNAME\tDRIVER")
		for _, n := range nets {
			fmt.Fprintf(w, "%s\t%s\t%s\n", n.ID, n.Name, n.Driver)
		}
		return nil
	},
}

var networkCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ipam := types.IPAM{}
		if flagNetSubnet != "" {
			ipam.Config = append(ipam.Config, types.IPAMConfig{Subnet: flagNetSubnet, Gateway: flagNetGateway})
		}

		c := client()
		defer c.Close()

		n, err := c.CreateNetwork(context.Background(), arcadrpc.CreateNetworkRequest{
			Name:     args[0],
			Driver:   types.NetworkDriver(flagNetDriver),
			IPAM:     ipam,
			Internal: flagNetInternal,
		})
		checkCLI(err)
		fmt.Println(n.ID)
		return nil
	},
}

var networkRmCmd = &cobra.Command{
	Use:     "rm NETWORK",
	Aliases: []string{"remove"},
	Short:   "Remove a network",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		defer c.Close()
		err := c.RemoveNetwork(context.Background(), args[0])
		checkCLI(err)
		fmt.Println(args[0])
		return nil
	},
}

var networkConnectCmd = &cobra.Command{
	Use:   "connect NETWORK CONTAINER",
	Short: "Attach a container to a network",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		defer c.Close()
		_, err := c.AttachNetwork(context.Background(), arcadrpc.AttachRequest{
			NetworkID:   args[0],
			ContainerID: args[1],
			Aliases:     flagAliases,
		})
		checkCLI(err)
		return nil
	},
}

var networkDisconnectCmd = &cobra.Command{
	Use:   "disconnect NETWORK CONTAINER",
	Short: "Detach a container from a network",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		defer c.Close()
		err := c.DetachNetwork(context.Background(), args[0], args[1])
		checkCLI(err)
		return nil
	},
}
