package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/internal/scheduling/application/queries"
)

var (
	utilFrom string
	utilTo   string
)

var utilizationCmd = &cobra.Command{
	Use:   "utilization [resource-id]",
	Short: "Report how busy a resource is over a time range",
	Long: `Compare the booked hours of a resource with its available hours and show
when it is busiest. The range defaults to the seven days from today.

Examples:
  cohort utilization 5f0c...
  cohort utilization 5f0c... --from 2026-03-01 --to 2026-04-01 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		id, err := ParseID("resource id", args[0])
		if err != nil {
			return err
		}
		from, to, err := ParseRange(utilFrom, utilTo, 7)
		if err != nil {
			return err
		}

		report, err := app.UtilizationReportHandler.Handle(cmd.Context(), queries.UtilizationReportQuery{
			ResourceID: id,
			From:       from,
			To:         to,
		})
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}
		return Render(cmd, report, func(w io.Writer) {
			printUtilization(w, report)
		})
	},
}

func printUtilization(w io.Writer, r *queries.UtilizationDTO) {
	fmt.Fprintf(w, "Utilization of %s\n", r.ResourceID)
	fmt.Fprintf(w, "  %s to %s\n", r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))
	Rule(w)
	fmt.Fprintf(w, "  available: %.1fh\n", r.AvailableHours)
	fmt.Fprintf(w, "  booked:    %.1fh\n", r.BookedHours)
	fmt.Fprintf(w, "  usage:     %.1f%% %s\n", r.Percentage, bar(r.Percentage/100, 20))
	if r.PeakHour == nil {
		return
	}
	fmt.Fprintf(w, "  peak:      %s %02d:00\n", r.PeakWeekday, *r.PeakHour)
	for _, u := range r.Usage {
		fmt.Fprintf(w, "    %-9s %02d:00 %s\n", u.Weekday, u.Hour, bar(u.Share, 10))
	}
}

func bar(share float64, width int) string {
	if share < 0 {
		share = 0
	}
	if share > 1 {
		share = 1
	}
	filled := int(share*float64(width) + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func init() {
	utilizationCmd.Flags().StringVar(&utilFrom, "from", "", "range start (default today)")
	utilizationCmd.Flags().StringVar(&utilTo, "to", "", "range end (default seven days after --from)")

	rootCmd.AddCommand(utilizationCmd)
}
