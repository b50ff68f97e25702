package resource

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

var (
	maintenanceStart       string
	maintenanceEnd         string
	maintenanceKind        string
	maintenanceDescription string
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Manage maintenance windows",
}

var maintenanceAddCmd = &cobra.Command{
	Use:   "add [resource-id]",
	Short: "Block a resource for maintenance",
	Long: `Block a resource for maintenance. Existing bookings in the window are
reported by the next conflict audit.

Examples:
  cohort resource maintenance add 6f1c... --start "2026-03-04 08:00" --end "2026-03-04 12:00" --kind preventive`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("resource id", args[0])
		if err != nil {
			return err
		}
		start, err := cli.ParseTime(maintenanceStart, nil)
		if err != nil {
			return err
		}
		end, err := cli.ParseTime(maintenanceEnd, nil)
		if err != nil {
			return err
		}
		iv, err := domain.NewInterval(start, end)
		if err != nil {
			return err
		}

		window := domain.NewMaintenanceWindow(iv, domain.MaintenanceKind(maintenanceKind), maintenanceDescription)
		if _, err := app.Registry.AddMaintenance(cmd.Context(), id, window); err != nil {
			return fmt.Errorf("failed to add maintenance: %w", err)
		}

		return cli.Render(cmd, window, func(w io.Writer) {
			fmt.Fprintf(w, "Maintenance window added: %s\n", window.ID)
			fmt.Fprintf(w, "  %s  %s\n", cli.FormatInterval(iv.Start, iv.End), window.Kind)
		})
	},
}

var maintenanceRemoveCmd = &cobra.Command{
	Use:   "remove [resource-id] [window-id]",
	Short: "Remove a maintenance window",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("resource id", args[0])
		if err != nil {
			return err
		}
		windowID, err := cli.ParseID("window id", args[1])
		if err != nil {
			return err
		}

		if _, err := app.Registry.RemoveMaintenance(cmd.Context(), id, windowID); err != nil {
			return fmt.Errorf("failed to remove maintenance: %w", err)
		}
		return cli.Render(cmd, map[string]any{"id": windowID, "removed": true}, func(w io.Writer) {
			fmt.Fprintf(w, "Maintenance window removed: %s\n", windowID)
		})
	},
}

func init() {
	maintenanceAddCmd.Flags().StringVar(&maintenanceStart, "start", "", "window start (RFC 3339 or YYYY-MM-DD HH:MM, UTC)")
	maintenanceAddCmd.Flags().StringVar(&maintenanceEnd, "end", "", "window end")
	maintenanceAddCmd.Flags().StringVar(&maintenanceKind, "kind", string(domain.MaintenanceScheduled), "scheduled, emergency or preventive")
	maintenanceAddCmd.Flags().StringVar(&maintenanceDescription, "description", "", "what the maintenance is for")
	_ = maintenanceAddCmd.MarkFlagRequired("start")
	_ = maintenanceAddCmd.MarkFlagRequired("end")

	maintenanceCmd.AddCommand(maintenanceAddCmd)
	maintenanceCmd.AddCommand(maintenanceRemoveCmd)
}
