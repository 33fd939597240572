package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/ago/pkg/client"
)

var createCustomName string

var createCmd = &cobra.Command{
	Use:   "create <template>",
	Short: "Materialize a new agent instance's config directory without starting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := clientContext()
		defer cancel()
		res, err := client.New(controlSocketPath()).Create(ctx, args[0], createCustomName)
		if err != nil {
			return err
		}
		fmt.Printf("created %s\nconfig: %s\n", res.InstanceID, res.ConfigDir)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createCustomName, "name", "", "friendly name for this instance")
}
