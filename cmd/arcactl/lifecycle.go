package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var flagStopTimeout time.Duration
var flagForce bool

func init() {
	rootCmd.AddCommand(startCmd, stopCmd, killCmd, pauseCmd, unpauseCmd, rmCmd, renameCmd, waitCmd)
	stopCmd.Flags().DurationVarP(&flagStopTimeout, "timeout", "t", 10*time.Second, "time to wait before killing the container")
	rmCmd.Flags().BoolVarP(&flagForce, "force", "f", false, "kill the container first if it's running")
}

func forEachArg(args []string, fn func(idOrName string) error) error {
	for _, a := range args {
		if err := fn(a); err != nil {
			return fmt.Errorf("%s: %w", a, err)
		}
		fmt.Println(a)
	}
	return nil
}

var startCmd = &cobra.Command{
	Use:   "start ID/NAME...",
	Short: "Start one or more stopped containers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		defer c.Close()
		return forEachArg(args, func(id string) error { return c.Start(context.Background(), id) })
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop ID/NAME...",
	Short: "Stop one or more running containers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		defer c.Close()
		return forEachArg(args, func(id string) error { return c.Stop(context.Background(), id, flagStopTimeout) })
	},
}

var killCmd = &cobra.Command{
	Use:   "kill ID/NAME...",
	Short: "Kill one or more running containers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		defer c.Close()
		return forEachArg(args, func(id string) error { return c.Kill(context.Background(), id) })
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause ID/NAME...",
	Short: "Pause one or more running containers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		defer c.Close()
		return forEachArg(args, func(id string) error { return c.Pause(context.Background(), id) })
	},
}

var unpauseCmd = &cobra.Command{
	Use:   "unpause ID/NAME...",
	Short: "Unpause one or more paused containers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		defer c.Close()
		return forEachArg(args, func(id string) error { return c.Unpause(context.Background(), id) })
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm ID/NAME...",
	Aliases: []string{"remove"},
	Short:   "Remove one or more containers",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		defer c.Close()
		return forEachArg(args, func(id string) error { return c.Remove(context.Background(), id, flagForce) })
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename OLD NEW",
	Short: "Rename a container",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		defer c.Close()
		return c.Rename(context.Background(), args[0], args[1])
	},
}

var waitCmd = &cobra.Command{
	Use:   "wait ID/NAME",
	Short: "Block until a container stops and print its exit code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		defer c.Close()
		code, err := c.Wait(context.Background(), args[0])
		checkCLI(err)
		fmt.Println(code)
		return nil
	},
}
