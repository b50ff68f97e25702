package conflict

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/adapter/cli/session"
	"github.com/felixgeelhaar/cohort/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

var strategy string

var resolveCmd = &cobra.Command{
	Use:   "resolve [conflict-id]",
	Short: "Apply a resolution strategy to a recorded conflict",
	Long: `Apply a resolution strategy to a conflict from the conflict log. Without
--strategy the first suggested resolution is used.

Strategies: reschedule, reallocate_resource, change_instructor, split_session, cancel.

Examples:
  cohort conflict resolve 3d4e...
  cohort conflict resolve 3d4e... --strategy reallocate_resource`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("conflict id", args[0])
		if err != nil {
			return err
		}

		outcome, err := app.ResolveConflictHandler.Handle(cmd.Context(), commands.ResolveConflictCommand{
			ActorID:    app.ActorID,
			ConflictID: id,
			Strategy:   domain.ResolutionType(strategy),
		})
		if err != nil {
			return fmt.Errorf("failed to resolve conflict: %w", err)
		}

		view := struct {
			ConflictID  uuid.UUID            `json:"conflict_id"`
			Strategy    string               `json:"strategy"`
			Sessions    []uuid.UUID          `json:"sessions"`
			Details     []string             `json:"details,omitempty"`
			Reschedules []session.ResultView `json:"reschedules,omitempty"`
		}{
			ConflictID: outcome.ConflictID,
			Strategy:   string(outcome.Strategy),
			Sessions:   outcome.Sessions,
			Details:    outcome.Details,
		}
		for _, r := range outcome.Reschedules {
			view.Reschedules = append(view.Reschedules, session.ToResultView(r))
		}

		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintf(w, "Conflict resolved: %s (%s)\n", view.ConflictID, view.Strategy)
			for _, d := range view.Details {
				fmt.Fprintf(w, "  %s\n", d)
			}
			for _, r := range view.Reschedules {
				session.PrintResult(w, r)
			}
		})
	},
}

func init() {
	resolveCmd.Flags().StringVarP(&strategy, "strategy", "s", "", "resolution strategy")
}
