package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/ago/pkg/client"
	"github.com/corvid-labs/ago/pkg/types"
)

var queuesFollow bool

var queuesCmd = &cobra.Command{
	Use:   "queues",
	Short: "Show per-instance queue depth and delivery counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(controlSocketPath())
		if queuesFollow {
			ctx, cancel := streamContext()
			defer cancel()
			return c.QueuesFollow(ctx, printQueueStats)
		}
		ctx, cancel := clientContext()
		defer cancel()
		stats, err := c.Queues(ctx)
		if err != nil {
			return err
		}
		printQueueStats(stats)
		return nil
	},
}

func printQueueStats(stats []types.QueueStats) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTANCE\tDEPTH\tDELIVERED\tDEAD-LETTERED")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", s.InstanceID, s.Depth, s.Delivered, s.DeadLettered)
	}
	tw.Flush()
}

func init() {
	queuesCmd.Flags().BoolVarP(&queuesFollow, "follow", "f", false, "stream queue stats as they change")
}
