package waitlist

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/commands"
)

var cancelReason string

var enrollCmd = &cobra.Command{
	Use:   "enroll [session-id] [participant-id]",
	Short: "Seat a participant directly",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		sessionID, err := cli.ParseID("session id", args[0])
		if err != nil {
			return err
		}
		participantID, err := cli.ParseID("participant id", args[1])
		if err != nil {
			return err
		}

		enrollment, err := app.EnrollParticipantHandler.Handle(cmd.Context(), commands.EnrollParticipantCommand{
			ActorID:       app.ActorID,
			SessionID:     sessionID,
			ParticipantID: participantID,
		})
		if err != nil {
			return fmt.Errorf("failed to enroll: %w", err)
		}
		view := toEnrollmentView(enrollment)
		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintf(w, "Participant enrolled: %s\n", view.ParticipantID)
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [session-id] [participant-id]",
	Short: "Cancel an enrollment and offer the seat to the waitlist",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		sessionID, err := cli.ParseID("session id", args[0])
		if err != nil {
			return err
		}
		participantID, err := cli.ParseID("participant id", args[1])
		if err != nil {
			return err
		}

		result, err := app.CancelEnrollmentHandler.Handle(cmd.Context(), commands.CancelEnrollmentCommand{
			ActorID:       app.ActorID,
			SessionID:     sessionID,
			ParticipantID: participantID,
			Reason:        cancelReason,
		})
		if err != nil {
			return fmt.Errorf("failed to cancel enrollment: %w", err)
		}

		view := struct {
			Enrollment enrollmentView `json:"enrollment"`
			Promoted   []string       `json:"promoted,omitempty"`
			Notified   int            `json:"notified"`
		}{Enrollment: toEnrollmentView(result.Enrollment)}
		if r := result.Reconciled; r != nil {
			for _, p := range r.Promoted {
				view.Promoted = append(view.Promoted, p.RequesterID.String())
			}
			view.Notified = r.Notified
		}

		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintf(w, "Enrollment cancelled: %s\n", view.Enrollment.ParticipantID)
			for _, id := range view.Promoted {
				fmt.Fprintf(w, "  promoted from waitlist: %s\n", id)
			}
			if view.Notified > 0 {
				fmt.Fprintf(w, "  notified: %d\n", view.Notified)
			}
		})
	},
}

func init() {
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "", "why the enrollment is cancelled")
}
