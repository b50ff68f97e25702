package resource

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
)

var showCmd = &cobra.Command{
	Use:   "show [resource-id]",
	Short: "Show a resource and its maintenance windows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("resource id", args[0])
		if err != nil {
			return err
		}

		r, err := app.Registry.GetResource(cmd.Context(), id)
		if err != nil {
			return err
		}

		view := toView(r)
		return cli.Render(cmd, view, func(w io.Writer) {
			printResource(w, view)
			if len(view.Maintenance) == 0 {
				return
			}
			fmt.Fprintln(w, "  maintenance:")
			for _, m := range view.Maintenance {
				fmt.Fprintf(w, "    %s  %s  %s", m.ID, cli.FormatInterval(m.Interval.Start, m.Interval.End), m.Kind)
				if m.Description != "" {
					fmt.Fprintf(w, "  %s", m.Description)
				}
				fmt.Fprintln(w)
			}
		})
	},
}
