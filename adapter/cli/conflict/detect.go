package conflict

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/scheduling/application/queries"
)

var (
	detectFrom string
	detectTo   string
	record     bool
	openOnly   bool
	forSession string
)

var detectCmd = &cobra.Command{
	Use:   "detect [session-id...]",
	Short: "Detect conflicts among sessions",
	Long: `Detect conflicts among the given sessions, or among every session in a
time range when none are given. The range defaults to the thirty days from
today. With --record the findings are kept in the conflict log so they can
be resolved by id.

Examples:
  cohort conflict detect
  cohort conflict detect 91ab... 77fe... --record
  cohort conflict detect --from 2026-03-01 --to 2026-03-08`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		q := queries.DetectConflictsQuery{Record: record}
		for _, arg := range args {
			id, err := cli.ParseID("session id", arg)
			if err != nil {
				return err
			}
			q.SessionIDs = append(q.SessionIDs, id)
		}
		if len(q.SessionIDs) == 0 {
			if q.From, q.To, err = cli.ParseRange(detectFrom, detectTo, 30); err != nil {
				return err
			}
		}

		conflicts, err := app.DetectConflictsHandler.Handle(cmd.Context(), q)
		if err != nil {
			return fmt.Errorf("failed to detect conflicts: %w", err)
		}
		return cli.Render(cmd, conflicts, func(w io.Writer) {
			printConflicts(w, conflicts)
		})
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Re-check every upcoming session and refresh the conflict log",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		report, err := app.Audit.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to audit sessions: %w", err)
		}
		view := struct {
			Sessions  int `json:"sessions"`
			Conflicts int `json:"conflicts"`
			New       int `json:"new"`
			Cleared   int `json:"cleared"`
		}{report.Sessions, len(report.Conflicts), report.New, report.Cleared}

		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintf(w, "Audited %d session(s)\n", view.Sessions)
			fmt.Fprintf(w, "  conflicts: %d (%d new, %d cleared)\n", view.Conflicts, view.New, view.Cleared)
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded conflicts",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		sessionID, err := cli.ParseOptionalID("session id", forSession)
		if err != nil {
			return err
		}

		conflicts, err := app.ListConflictsHandler.Handle(cmd.Context(), queries.ListConflictsQuery{
			OpenOnly:  openOnly,
			SessionID: sessionID,
		})
		if err != nil {
			return fmt.Errorf("failed to list conflicts: %w", err)
		}
		return cli.Render(cmd, conflicts, func(w io.Writer) {
			printConflicts(w, conflicts)
		})
	},
}

func init() {
	detectCmd.Flags().StringVar(&detectFrom, "from", "", "range start (default today)")
	detectCmd.Flags().StringVar(&detectTo, "to", "", "range end (default thirty days after --from)")
	detectCmd.Flags().BoolVar(&record, "record", false, "keep the findings in the conflict log")

	listCmd.Flags().BoolVar(&openOnly, "open", false, "only unresolved conflicts")
	listCmd.Flags().StringVar(&forSession, "session", "", "only conflicts involving this session")
}
