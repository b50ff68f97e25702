package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/internal/scheduling/infrastructure/catalog"
)

var importDryRun bool

type importView struct {
	Resources   []uuid.UUID          `json:"resources"`
	Instructors map[string]uuid.UUID `json:"instructors"`
	Sessions    []uuid.UUID          `json:"sessions"`
	Placed      []uuid.UUID          `json:"placed"`
	Failed      map[string]string    `json:"failed,omitempty"`
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Load resources, instructors and sessions from a YAML catalog",
	Long: `Import a YAML catalog. Resources and instructors are created first, then
sessions. Sessions with a schedule block are placed by the optimizer right
away; a session that cannot be placed stays in draft.

Examples:
  cohort import catalog.yaml
  cohort import catalog.yaml --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := catalog.Load(args[0])
		if err != nil {
			return err
		}
		if importDryRun {
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog is valid: %d resource(s), %d instructor(s), %d session(s)\n",
				len(f.Resources), len(f.Instructors), len(f.Sessions))
			return nil
		}

		app, err := RequireApp()
		if err != nil {
			return err
		}
		report, err := app.Importer.Import(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("import stopped: %w", err)
		}

		view := importView{
			Resources:   report.Resources,
			Instructors: report.Instructors,
			Sessions:    report.Sessions,
			Placed:      []uuid.UUID{},
		}
		for _, id := range report.Sessions {
			if result, ok := report.Placed[id]; ok && result.Success {
				view.Placed = append(view.Placed, id)
			}
		}
		if len(report.Failed) > 0 {
			view.Failed = make(map[string]string, len(report.Failed))
			for id, err := range report.Failed {
				view.Failed[id.String()] = err.Error()
			}
		}

		return Render(cmd, view, func(w io.Writer) {
			fmt.Fprintln(w, "Catalog imported")
			Rule(w)
			fmt.Fprintf(w, "  resources:   %d\n", len(view.Resources))
			fmt.Fprintf(w, "  instructors: %d\n", len(view.Instructors))
			fmt.Fprintf(w, "  sessions:    %d (%d placed)\n", len(view.Sessions), len(view.Placed))
			failed := make([]string, 0, len(view.Failed))
			for id := range view.Failed {
				failed = append(failed, id)
			}
			sort.Strings(failed)
			for _, id := range failed {
				fmt.Fprintf(w, "  not placed %s: %s\n", id, view.Failed[id])
			}
		})
	},
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "validate the file without importing")

	rootCmd.AddCommand(importCmd)
}
