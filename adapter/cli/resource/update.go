package resource

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
)

var (
	updateName     string
	updateCapacity int
	updateLocation string
	updateFeatures []string
	updateHours    []string
	updateTimezone string
)

var updateCmd = &cobra.Command{
	Use:   "update [resource-id]",
	Short: "Change the properties of a resource",
	Long: `Change the properties of a resource. Only the given flags change; --hours
replaces every opening rule and --feature replaces every feature tag.
Maintenance windows and existing allocations are kept, so run
"cohort conflict detect" after reducing capacity or hours.

Examples:
  cohort resource update 5f0c... --capacity 30
  cohort resource update 5f0c... --hours mon-fri=07:00-19:00 --timezone Europe/Berlin`,
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

		current, err := app.Registry.GetResource(cmd.Context(), id)
		if err != nil {
			return err
		}
		spec := current.Spec()
		flags := cmd.Flags()
		if flags.Changed("name") {
			spec.Name = updateName
		}
		if flags.Changed("capacity") {
			spec.Capacity = updateCapacity
		}
		if flags.Changed("location") {
			spec.Location = updateLocation
		}
		if flags.Changed("feature") {
			spec.Features = updateFeatures
		}
		if flags.Changed("timezone") {
			if spec.Availability.Location, err = cli.LoadLocation(updateTimezone); err != nil {
				return err
			}
		}
		if flags.Changed("hours") {
			if spec.Availability.Rules, err = cli.ParseHours(updateHours); err != nil {
				return err
			}
		}

		r, err := app.Registry.UpdateResource(cmd.Context(), id, spec)
		if err != nil {
			return fmt.Errorf("failed to update resource: %w", err)
		}
		view := toView(r)
		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintln(w, "Resource updated")
			printResource(w, view)
		})
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateName, "name", "", "new name")
	updateCmd.Flags().IntVarP(&updateCapacity, "capacity", "c", 0, "number of participants the resource holds")
	updateCmd.Flags().StringVar(&updateLocation, "location", "", "where the resource is")
	updateCmd.Flags().StringSliceVarP(&updateFeatures, "feature", "f", nil, "feature tag, repeatable")
	updateCmd.Flags().StringArrayVar(&updateHours, "hours", nil, "opening hours as DAYS=HH:MM-HH:MM, repeatable")
	updateCmd.Flags().StringVar(&updateTimezone, "timezone", "", "IANA timezone of the opening hours")
}
