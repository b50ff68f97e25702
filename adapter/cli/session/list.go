package session

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
)

var (
	listFrom string
	listTo   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions in a time range",
	Long: `List sessions overlapping a time range. The range defaults to the
thirty days from today.

Examples:
  cohort session list
  cohort session list --from 2026-03-01 --to 2026-04-01 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		from, to, err := cli.ParseRange(listFrom, listTo, 30)
		if err != nil {
			return err
		}

		sessions, err := app.Sessions.ListSessions(cmd.Context(), from, to)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		views := make([]sessionView, 0, len(sessions))
		for _, s := range sessions {
			views = append(views, toView(s))
		}

		return cli.Render(cmd, views, func(w io.Writer) {
			if len(views) == 0 {
				fmt.Fprintln(w, "No sessions in range.")
				return
			}
			fmt.Fprintf(w, "Sessions (%d)\n", len(views))
			cli.Rule(w)
			for _, v := range views {
				fmt.Fprintf(w, "%s  %-40s %-10s %d/%d  %s\n",
					v.ID, cli.FormatInterval(v.Start, v.End), v.Status, v.Enrolled, v.MaxParticipants, v.Title)
			}
		})
	},
}

func init() {
	listCmd.Flags().StringVar(&listFrom, "from", "", "range start (default today)")
	listCmd.Flags().StringVar(&listTo, "to", "", "range end (default thirty days after --from)")
}
