package session

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
)

var showCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show a session and its bookings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("session id", args[0])
		if err != nil {
			return err
		}

		s, err := app.Sessions.GetSession(cmd.Context(), id)
		if err != nil {
			return err
		}
		allocations, err := app.Ledger.SessionAllocations(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to load allocations: %w", err)
		}

		view := struct {
			sessionView
			Resources []string `json:"resources"`
		}{sessionView: toView(s)}
		for _, a := range allocations {
			view.Resources = append(view.Resources, a.ResourceID().String())
		}

		return cli.Render(cmd, view, func(w io.Writer) {
			printSession(w, view.sessionView)
			for _, a := range allocations {
				fmt.Fprintf(w, "  resource: %s (%s, allocation %s)\n", a.ResourceID(), a.Status(), a.ID())
			}
		})
	},
}
