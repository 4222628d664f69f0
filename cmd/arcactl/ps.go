package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var flagAll bool

func init() {
	rootCmd.AddCommand(psCmd)
	psCmd.Flags().BoolVarP(&flagAll, "all", "a", false, "show stopped containers too")
}

var psCmd = &cobra.Command{
	Use:     "ps",
	Aliases: []string{"ls", "list"},
	Short:   "List containers",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		defer c.Close()

		resp, err := c.List(context.Background(), flagAll)
		checkCLI(err)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "CONTAINER ID\tIMAGE\tCOMMAND\tSTATUS\tNAMES")
		for _, s := range resp.Containers {
			id := s.ID
			if len(id) > 12 {
				id = id[:12]
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", id, s.Image, s.Command, s.Status, strings.Join(s.Names, ","))
		}
		return nil
	},
}
