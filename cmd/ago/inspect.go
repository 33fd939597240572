package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/ago/pkg/client"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <agent>",
	Short: "Show detailed state for one agent instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := clientContext()
		defer cancel()
		inst, err := client.New(controlSocketPath()).Inspect(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("ID:        %s\n", inst.ID)
		fmt.Printf("Template:  %s\n", inst.TemplateName)
		fmt.Printf("Name:      %s\n", inst.CustomName)
		fmt.Printf("State:     %s\n", inst.State)
		fmt.Printf("PID:       %d\n", inst.PID)
		fmt.Printf("Socket:    %s\n", inst.SocketPath)
		fmt.Printf("Log:       %s\n", inst.LogPath)
		fmt.Printf("Spawned:   %s\n", inst.SpawnedAt)
		return nil
	},
}
