package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(inspectCmd, diffCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect ID/NAME",
	Short: "Show detailed container state as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		defer c.Close()

		resp, err := c.Inspect(context.Background(), args[0])
		checkCLI(err)

		out, err := json.MarshalIndent(resp.Details, "", "  ")
		checkCLI(err)
		fmt.Println(string(out))
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff ID/NAME",
	Short: "List filesystem changes against the container's baseline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		defer c.Close()

		changes, err := c.Changes(context.Background(), args[0])
		checkCLI(err)

		for _, entry := range changes {
			fmt.Printf("%s %s\n", entry.Kind, entry.Path)
		}
		return nil
	},
}
