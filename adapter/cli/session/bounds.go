package session

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
)

var (
	boundsMin int
	boundsMax int
)

var boundsCmd = &cobra.Command{
	Use:   "bounds [session-id]",
	Short: "Change the participant bounds of a session",
	Long: `Change the minimum and maximum participants of a session. The maximum
cannot drop below the number already enrolled. Seats freed by a higher
maximum are filled on the next "cohort waitlist process".

Examples:
  cohort session bounds 91ab... --max 16
  cohort session bounds 91ab... --min 4 --max 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("session id", args[0])
		if err != nil {
			return err
		}

		current, err := app.Sessions.GetSession(cmd.Context(), id)
		if err != nil {
			return err
		}
		lo, hi := current.MinParticipants(), current.MaxParticipants()
		if cmd.Flags().Changed("min") {
			lo = boundsMin
		}
		if cmd.Flags().Changed("max") {
			hi = boundsMax
		}

		s, err := app.Sessions.UpdateBounds(cmd.Context(), id, lo, hi)
		if err != nil {
			return fmt.Errorf("failed to update bounds: %w", err)
		}
		view := toView(s)
		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintln(w, "Session bounds updated")
			printSession(w, view)
		})
	},
}

func init() {
	boundsCmd.Flags().IntVar(&boundsMin, "min", 0, "minimum participants")
	boundsCmd.Flags().IntVar(&boundsMax, "max", 0, "maximum participants")
}
