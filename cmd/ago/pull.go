package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/ago/pkg/client"
)

var pullCmd = &cobra.Command{
	Use:   "pull <registry> <template>",
	Short: "Fetch a template from a configured registry into the pulled layer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := clientContext()
		defer cancel()
		res, err := client.New(controlSocketPath()).Pull(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("pulled to %s\n", res.Path)
		return nil
	},
}
