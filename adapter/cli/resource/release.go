package resource

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/scheduling/application/commands"
)

var (
	releaseReason string
	confirmHold   bool
)

var releaseCmd = &cobra.Command{
	Use:   "release [allocation-id]",
	Short: "Release an allocation",
	Long: `Release an allocation. Releasing an already released allocation is a no-op.

With --confirm a pending hold is confirmed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("allocation id", args[0])
		if err != nil {
			return err
		}

		if confirmHold {
			a, err := app.Ledger.Confirm(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to confirm allocation: %w", err)
			}
			view := toAllocationView(a)
			return cli.Render(cmd, view, func(w io.Writer) {
				fmt.Fprintf(w, "Allocation confirmed: %s\n", view.ID)
			})
		}

		result, err := app.ReleaseAllocationHandler.Handle(cmd.Context(), commands.ReleaseAllocationCommand{
			ActorID:      app.ActorID,
			AllocationID: id,
			Reason:       releaseReason,
		})
		if err != nil {
			return fmt.Errorf("failed to release allocation: %w", err)
		}
		return cli.Render(cmd, result, func(w io.Writer) {
			if !result.Released {
				fmt.Fprintf(w, "Allocation %s was already released\n", id)
				return
			}
			fmt.Fprintf(w, "Allocation released: %s\n", id)
		})
	},
}

func init() {
	releaseCmd.Flags().StringVar(&releaseReason, "reason", "", "why the allocation is released")
	releaseCmd.Flags().BoolVar(&confirmHold, "confirm", false, "confirm a pending hold instead of releasing it")
}
