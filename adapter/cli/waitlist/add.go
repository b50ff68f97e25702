package waitlist

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/commands"
)

var (
	requester  string
	priority   string
	autoEnroll bool
	expires    string
)

var addCmd = &cobra.Command{
	Use:   "add [session-id]",
	Short: "Put a requester on a session's waitlist",
	Long: `Put a requester at the end of a session's waitlist. Higher priorities are
offered a seat first.

Examples:
  cohort waitlist add 91ab... --requester 5c2d...
  cohort waitlist add 91ab... --requester 5c2d... --priority urgent --auto-enroll --expires "2026-03-01 18:00"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		sessionID, err := cli.ParseID("session id", args[0])
		if err != nil {
			return err
		}
		requesterID, err := cli.ParseID("requester id", requester)
		if err != nil {
			return err
		}

		ac := commands.AddToWaitlistCommand{
			ActorID:     app.ActorID,
			SessionID:   sessionID,
			RequesterID: requesterID,
			Priority:    priority,
			AutoEnroll:  autoEnroll,
		}
		if expires != "" {
			t, err := cli.ParseTime(expires, time.UTC)
			if err != nil {
				return err
			}
			ac.ExpiresAt = &t
		}

		entry, err := app.AddToWaitlistHandler.Handle(cmd.Context(), ac)
		if err != nil {
			return fmt.Errorf("failed to add to waitlist: %w", err)
		}
		view := toEntryView(entry)
		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintf(w, "Waitlist entry added: %s\n", view.ID)
			fmt.Fprintf(w, "  position: %d\n", view.Position)
			fmt.Fprintf(w, "  priority: %s\n", view.Priority)
		})
	},
}

func init() {
	addCmd.Flags().StringVar(&requester, "requester", "", "id of the person asking for a seat")
	addCmd.Flags().StringVarP(&priority, "priority", "p", "normal", "normal, high or urgent")
	addCmd.Flags().BoolVar(&autoEnroll, "auto-enroll", false, "take a freed seat without confirmation")
	addCmd.Flags().StringVar(&expires, "expires", "", "drop the entry after this time")
	_ = addCmd.MarkFlagRequired("requester")
}
