package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/ago/pkg/client"
	"github.com/corvid-labs/ago/pkg/types"
)

var sendFrom string

var sendCmd = &cobra.Command{
	Use:   "send <to> <message>",
	Short: "Route a message to an agent's inbound queue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := clientContext()
		defer cancel()
		id, err := client.New(controlSocketPath()).Send(ctx, sendFrom, args[0], args[1], types.MessageUser)
		if err != nil {
			return err
		}
		fmt.Printf("queued message %d\n", id)
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendFrom, "from", "cli", "origin recorded for this message")
}
