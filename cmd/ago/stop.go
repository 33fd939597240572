package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/ago/pkg/client"
)

var stopAll bool

var stopCmd = &cobra.Command{
	Use:   "stop [agent]",
	Short: "Stop one agent instance, or every instance with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !stopAll && len(args) == 0 {
			return fmt.Errorf("stop requires an agent name or --all")
		}
		var agent string
		if len(args) == 1 {
			agent = args[0]
		}
		ctx, cancel := clientContext()
		defer cancel()
		if err := client.New(controlSocketPath()).Stop(ctx, agent, stopAll); err != nil {
			return err
		}
		fmt.Println("stopped")
		return nil
	},
}

func init() {
	stopCmd.Flags().BoolVar(&stopAll, "all", false, "stop every running instance")
}
