package session

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/scheduling/application/commands"
)

var cancelReason string

var rescheduleCmd = &cobra.Command{
	Use:   "reschedule [session-id]",
	Short: "Re-run the optimizer for a placed session",
	Long: `Re-run the optimizer with the request that placed the session. Sessions
placed by hand are searched with their current resource types and instructor.`,
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

		result, err := app.RescheduleSessionHandler.Handle(cmd.Context(), commands.RescheduleSessionCommand{
			ActorID:   app.ActorID,
			SessionID: id,
		})
		if result != nil {
			view := ToResultView(result)
			if renderErr := cli.Render(cmd, view, func(w io.Writer) { PrintResult(w, view) }); renderErr != nil {
				return renderErr
			}
		}
		if err != nil {
			return fmt.Errorf("failed to reschedule session: %w", err)
		}
		return nil
	},
}

var confirmCmd = &cobra.Command{
	Use:   "confirm [session-id]",
	Short: "Confirm a scheduled session",
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

		s, err := app.Sessions.ConfirmSession(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to confirm session: %w", err)
		}
		view := toView(s)
		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintf(w, "Session confirmed: %s\n", view.ID)
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [session-id]",
	Short: "Cancel a session and release its resources",
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

		s, err := app.CancelSessionHandler.Handle(cmd.Context(), commands.CancelSessionCommand{
			ActorID:   app.ActorID,
			SessionID: id,
			Reason:    cancelReason,
		})
		if err != nil {
			return fmt.Errorf("failed to cancel session: %w", err)
		}
		view := toView(s)
		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintf(w, "Session cancelled: %s\n", view.ID)
		})
	},
}

func init() {
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "", "why the session is cancelled")
}
