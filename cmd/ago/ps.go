package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/ago/pkg/client"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List agent instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := clientContext()
		defer cancel()
		instances, err := client.New(controlSocketPath()).PS(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTEMPLATE\tNAME\tSTATE\tPID")
		for _, inst := range instances {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", inst.ID, inst.TemplateName, inst.CustomName, inst.State, inst.PID)
		}
		return tw.Flush()
	},
}
