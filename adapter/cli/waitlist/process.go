package waitlist

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/commands"
)

var processCmd = &cobra.Command{
	Use:   "process [session-id]",
	Short: "Expire stale entries and fill free seats",
	Long: `Run one reconciliation pass: expired entries are closed, auto-enroll
entries take free seats and the rest are notified. Without a session id
every session with a waitlist is processed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		pc := commands.ProcessWaitlistsCommand{ActorID: app.ActorID}
		if len(args) == 1 {
			if pc.SessionID, err = cli.ParseID("session id", args[0]); err != nil {
				return err
			}
		}

		result, err := app.ProcessWaitlistsHandler.Handle(cmd.Context(), pc)
		if err != nil {
			return fmt.Errorf("failed to process waitlists: %w", err)
		}

		expired, promoted, notified, failed := result.Totals()
		view := struct {
			Sessions []uuid.UUID `json:"sessions"`
			Expired  int         `json:"expired"`
			Promoted int         `json:"promoted"`
			Notified int         `json:"notified"`
			Failed   int         `json:"failed"`
		}{Expired: expired, Promoted: promoted, Notified: notified, Failed: failed}
		for _, s := range result.Sessions {
			view.Sessions = append(view.Sessions, s.SessionID)
		}

		if err := cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintf(w, "Processed %d session(s)\n", len(view.Sessions))
			fmt.Fprintf(w, "  expired: %d\n", expired)
			fmt.Fprintf(w, "  promoted: %d\n", promoted)
			fmt.Fprintf(w, "  notified: %d\n", notified)
			if failed > 0 {
				fmt.Fprintf(w, "  failed: %d\n", failed)
			}
		}); err != nil {
			return err
		}
		return result.Err()
	},
}
