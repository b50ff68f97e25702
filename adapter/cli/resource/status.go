package resource

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status [resource-id] [status]",
	Short: "Change the operational status of a resource",
	Long: `Change the operational status of a resource.

Only available resources accept new bookings.

Examples:
  cohort resource status 6f1c... blocked
  cohort resource status 6f1c... available`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("resource id", args[0])
		if err != nil {
			return err
		}

		r, err := app.Registry.SetResourceStatus(cmd.Context(), id, domain.ResourceStatus(args[1]))
		if err != nil {
			return fmt.Errorf("failed to change status: %w", err)
		}

		view := toView(r)
		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintf(w, "%s is now %s\n", view.Name, view.Status)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [resource-id]",
	Short: "Delete a resource without future bookings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("resource id", args[0])
		if err != nil {
			return err
		}

		if err := app.Registry.DeleteResource(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete resource: %w", err)
		}
		return cli.Render(cmd, map[string]any{"id": id, "deleted": true}, func(w io.Writer) {
			fmt.Fprintf(w, "Resource deleted: %s\n", id)
		})
	},
}
