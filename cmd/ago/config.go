package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/ago/pkg/client"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or change ago's configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the resolved value of a dotted config key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := clientContext()
		defer cancel()
		value, found, err := client.New(controlSocketPath()).ConfigGet(ctx, args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%s is not set", args[0])
		}
		fmt.Println(value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a dotted config key in the local config layer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := clientContext()
		defer cancel()
		return client.New(controlSocketPath()).ConfigSet(ctx, args[0], args[1])
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the fully merged configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := clientContext()
		defer cancel()
		values, err := client.New(controlSocketPath()).ConfigShow(ctx)
		if err != nil {
			return err
		}
		for k, v := range values {
			fmt.Printf("%s = %s\n", k, v)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
}
