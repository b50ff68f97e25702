package waitlist

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/queries"
)

var (
	showAll         bool
	showEnrollments bool
)

var showCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show a session's waitlist",
	Long: `Show a session's waitlist in offer order. --all includes closed entries
and --enrollments lists the seated participants.`,
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

		dto, err := app.GetWaitlistHandler.Handle(cmd.Context(), queries.GetWaitlistQuery{
			SessionID:          sessionID,
			IncludeClosed:      showAll,
			IncludeEnrollments: showEnrollments,
		})
		if err != nil {
			return err
		}

		return cli.Render(cmd, dto, func(w io.Writer) {
			fmt.Fprintf(w, "Session %s: %d enrolled, %d waiting\n", dto.SessionID, dto.Enrolled, dto.Waitlisted)
			cli.Rule(w)
			if len(dto.Entries) == 0 {
				fmt.Fprintln(w, "Waitlist is empty.")
			}
			printEntries(w, dto.Entries)
			if len(dto.Enrollments) == 0 {
				return
			}
			fmt.Fprintln(w, "Enrollments")
			for _, e := range dto.Enrollments {
				fmt.Fprintf(w, "  %s  %-9s %s\n", e.ParticipantID, e.Status, e.Source)
			}
		})
	},
}

func init() {
	showCmd.Flags().BoolVarP(&showAll, "all", "a", false, "include closed entries")
	showCmd.Flags().BoolVarP(&showEnrollments, "enrollments", "e", false, "list enrollments")
}
