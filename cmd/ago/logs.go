package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/ago/pkg/client"
)

var logsFollow bool

var logsCmd = &cobra.Command{
	Use:   "logs <agent>",
	Short: "Print an agent instance's conversation log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := streamContext()
		defer cancel()
		return client.New(controlSocketPath()).Logs(ctx, args[0], logsFollow, func(line string) {
			fmt.Println(line)
		})
	},
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "stream new log entries as they are written")
}
