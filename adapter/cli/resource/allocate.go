package resource

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

var (
	allocSession string
	allocStart   string
	allocEnd     string
	allocNotes   string
	allocHold    bool
)

type allocationView struct {
	ID         uuid.UUID `json:"id"`
	ResourceID uuid.UUID `json:"resource_id"`
	SessionID  uuid.UUID `json:"session_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
}

func toAllocationView(a *domain.Allocation) allocationView {
	return allocationView{
		ID:         a.ID(),
		ResourceID: a.ResourceID(),
		SessionID:  a.SessionID(),
		Start:      a.Interval().Start,
		End:        a.Interval().End,
		Status:     string(a.Status()),
		Notes:      a.Notes(),
	}
}

var allocateCmd = &cobra.Command{
	Use:   "allocate [resource-id]",
	Short: "Book a resource for a session",
	Long: `Book a resource for a session. The booking defaults to the session's own
interval. With --hold the booking stays pending until confirmed.

Examples:
  cohort resource allocate 6f1c... --session 91ab...
  cohort resource allocate 6f1c... --session 91ab... --start "2026-03-02 09:30" --end "2026-03-02 12:00" --hold`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		resourceID, err := cli.ParseID("resource id", args[0])
		if err != nil {
			return err
		}
		sessionID, err := cli.ParseID("session id", allocSession)
		if err != nil {
			return err
		}

		ac := commands.AllocateResourceCommand{
			ActorID:    app.ActorID,
			ResourceID: resourceID,
			SessionID:  sessionID,
			Notes:      allocNotes,
			Hold:       allocHold,
		}
		if allocStart == "" && allocEnd == "" {
			session, err := app.Sessions.GetSession(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			ac.Start, ac.End = session.Interval().Start, session.Interval().End
		} else {
			if ac.Start, err = cli.ParseTime(allocStart, nil); err != nil {
				return err
			}
			if ac.End, err = cli.ParseTime(allocEnd, nil); err != nil {
				return err
			}
		}

		a, err := app.AllocateResourceHandler.Handle(cmd.Context(), ac)
		if err != nil {
			return fmt.Errorf("failed to allocate resource: %w", err)
		}

		view := toAllocationView(a)
		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintf(w, "Allocation created: %s\n", view.ID)
			fmt.Fprintf(w, "  %s  %s\n", cli.FormatInterval(view.Start, view.End), view.Status)
		})
	},
}

func init() {
	allocateCmd.Flags().StringVarP(&allocSession, "session", "s", "", "session to book for")
	allocateCmd.Flags().StringVar(&allocStart, "start", "", "booking start, defaults to the session start")
	allocateCmd.Flags().StringVar(&allocEnd, "end", "", "booking end, defaults to the session end")
	allocateCmd.Flags().StringVar(&allocNotes, "notes", "", "free text notes")
	allocateCmd.Flags().BoolVar(&allocHold, "hold", false, "keep the booking pending")
	_ = allocateCmd.MarkFlagRequired("session")
}
