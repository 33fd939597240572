package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/ago/pkg/client"
)

var (
	runCustomName string
	runInstanceID string
)

var runCmd = &cobra.Command{
	Use:   "run <template>",
	Short: "Create and start a new agent instance from a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := clientContext()
		defer cancel()
		inst, err := client.New(controlSocketPath()).Run(ctx, args[0], runCustomName, runInstanceID)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s  %s\n", inst.ID, inst.TemplateName, inst.State)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runCustomName, "name", "", "friendly name for this instance")
	runCmd.Flags().StringVar(&runInstanceID, "instance-id", "", "reuse an instance ID already created with 'ago create'")
}
