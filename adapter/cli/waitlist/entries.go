package waitlist

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/waitlist/application/commands"
)

var (
	removeReason string
	byPriority   bool
	extendUntil  string
)

// sessionAndEntry parses the [session-id] [entry-id] argument pair.
func sessionAndEntry(args []string) (uuid.UUID, uuid.UUID, error) {
	sessionID, err := cli.ParseID("session id", args[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	entryID, err := cli.ParseID("entry id", args[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return sessionID, entryID, nil
}

var removeCmd = &cobra.Command{
	Use:   "remove [session-id] [entry-id]",
	Short: "Take an entry off the waitlist",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		sessionID, entryID, err := sessionAndEntry(args)
		if err != nil {
			return err
		}

		if err := app.EntryHandler.Remove(cmd.Context(), commands.RemoveEntryCommand{
			ActorID:   app.ActorID,
			SessionID: sessionID,
			EntryID:   entryID,
			Reason:    removeReason,
		}); err != nil {
			return fmt.Errorf("failed to remove entry: %w", err)
		}
		return cli.Render(cmd, map[string]any{"id": entryID, "removed": true}, func(w io.Writer) {
			fmt.Fprintf(w, "Waitlist entry removed: %s\n", entryID)
		})
	},
}

var reorderCmd = &cobra.Command{
	Use:   "reorder [session-id] [entry-id...]",
	Short: "Change the order of the waitlist",
	Long: `Change the order of the waitlist. Either list every waiting entry in the
new order, or pass --by-priority to sort by priority and then by arrival.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		sessionID, err := cli.ParseID("session id", args[0])
		if err != nil {
			return err
		}
		if byPriority == (len(args) > 1) {
			return fmt.Errorf("give either the entry order or --by-priority")
		}

		rc := commands.ReorderWaitlistCommand{ActorID: app.ActorID, SessionID: sessionID, ByPriority: byPriority}
		for _, arg := range args[1:] {
			id, err := cli.ParseID("entry id", arg)
			if err != nil {
				return err
			}
			rc.Order = append(rc.Order, id)
		}

		entries, err := app.EntryHandler.Reorder(cmd.Context(), rc)
		if err != nil {
			return fmt.Errorf("failed to reorder waitlist: %w", err)
		}
		views := make([]entryView, 0, len(entries))
		for _, e := range entries {
			views = append(views, toEntryView(e))
		}
		return cli.Render(cmd, views, func(w io.Writer) {
			fmt.Fprintln(w, "Waitlist reordered")
			for _, v := range views {
				fmt.Fprintf(w, "%3d  %s  %s\n", v.Position, v.ID, v.Priority)
			}
		})
	},
}

var extendCmd = &cobra.Command{
	Use:   "extend [session-id] [entry-id]",
	Short: "Move the expiry of a waitlist entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		sessionID, entryID, err := sessionAndEntry(args)
		if err != nil {
			return err
		}
		until, err := cli.ParseTime(extendUntil, time.UTC)
		if err != nil {
			return err
		}

		entry, err := app.EntryHandler.ExtendExpiry(cmd.Context(), commands.ExtendExpiryCommand{
			ActorID:   app.ActorID,
			SessionID: sessionID,
			EntryID:   entryID,
			Until:     until,
		})
		if err != nil {
			return fmt.Errorf("failed to extend entry: %w", err)
		}
		view := toEntryView(entry)
		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintf(w, "Waitlist entry %s now expires %s\n", view.ID, until.Format("2006-01-02 15:04 MST"))
		})
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote [session-id] [entry-id]",
	Short: "Give a waiting requester a free seat",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		sessionID, entryID, err := sessionAndEntry(args)
		if err != nil {
			return err
		}

		enrollment, err := app.EntryHandler.Promote(cmd.Context(), commands.PromoteEntryCommand{
			ActorID:   app.ActorID,
			SessionID: sessionID,
			EntryID:   entryID,
		})
		if err != nil {
			return fmt.Errorf("failed to promote entry: %w", err)
		}
		view := toEnrollmentView(enrollment)
		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintf(w, "Participant enrolled from waitlist: %s\n", view.ParticipantID)
		})
	},
}

func init() {
	removeCmd.Flags().StringVar(&removeReason, "reason", "", "why the entry is removed")
	reorderCmd.Flags().BoolVar(&byPriority, "by-priority", false, "sort by priority, then arrival")
	extendCmd.Flags().StringVar(&extendUntil, "until", "", "new expiry")
	_ = extendCmd.MarkFlagRequired("until")
}
