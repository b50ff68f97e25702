package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/pkg/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check storage, locks and background workers",
	Long: `Run the health checks of the configured backends. Exits non-zero when a
critical component is unhealthy. Workers only run inside cohort-worker, so
a degraded reconciliation check is expected here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		if app.Health == nil {
			return fmt.Errorf("health checks not configured")
		}

		report := app.Health.Check(cmd.Context())
		if err := Render(cmd, report, func(w io.Writer) {
			fmt.Fprintf(w, "Status: %s\n", report.Status)
			Rule(w)
			for _, name := range app.Health.Names() {
				r := report.Checks[name]
				fmt.Fprintf(w, "  %-16s %-10s %s\n", name, r.Status, r.Message)
			}
		}); err != nil {
			return err
		}
		if report.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("unhealthy")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
