package resource

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
)

var (
	rangeFrom string
	rangeTo   string
)

var allocationsCmd = &cobra.Command{
	Use:   "allocations [resource-id]",
	Short: "List the bookings of a resource",
	Long: `List the active bookings of a resource that overlap a time range.
The range defaults to the seven days from today.

Examples:
  cohort resource allocations 6f1c...
  cohort resource allocations 6f1c... --from 2026-03-01 --to 2026-04-01`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("resource id", args[0])
		if err != nil {
			return err
		}
		from, to, err := cli.ParseRange(rangeFrom, rangeTo, 7)
		if err != nil {
			return err
		}

		allocations, err := app.Ledger.QueryAllocations(cmd.Context(), id, from, to)
		if err != nil {
			return fmt.Errorf("failed to query allocations: %w", err)
		}
		views := make([]allocationView, 0, len(allocations))
		for _, a := range allocations {
			views = append(views, toAllocationView(a))
		}

		return cli.Render(cmd, views, func(w io.Writer) {
			if len(views) == 0 {
				fmt.Fprintln(w, "No allocations in range.")
				return
			}
			fmt.Fprintf(w, "Allocations (%d)\n", len(views))
			cli.Rule(w)
			for _, v := range views {
				fmt.Fprintf(w, "%s  %s  %-9s session %s\n", v.ID, cli.FormatInterval(v.Start, v.End), v.Status, v.SessionID)
			}
		})
	},
}

func init() {
	allocationsCmd.Flags().StringVar(&rangeFrom, "from", "", "range start (default today)")
	allocationsCmd.Flags().StringVar(&rangeTo, "to", "", "range end (default seven days after --from)")
}
