package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/ago/pkg/client"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List templates resolvable from every configured layer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := clientContext()
		defer cancel()
		summaries, err := client.New(controlSocketPath()).Templates(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tVERSION\tLAYER\tDESCRIPTION")
		for _, t := range summaries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, t.Version, t.Layer, t.Description)
		}
		return tw.Flush()
	},
}
