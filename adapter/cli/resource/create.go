package resource

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

var (
	resourceType string
	capacity     int
	location     string
	features     []string
	hours        []string
	timezone     string
)

var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Register a resource",
	Long: `Register a bookable resource.

Opening hours are given as DAYS=HH:MM-HH:MM and default to mon-fri=09:00-17:00.

Examples:
  cohort resource create "Room R" --type room --capacity 20 --feature projector
  cohort resource create "Lab" --type room --hours mon-thu=08:00-18:00 --hours fri=08:00-12:00
  cohort resource create "Zoom 1" --type virtual_room --timezone Europe/Berlin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		loc, err := cli.LoadLocation(timezone)
		if err != nil {
			return err
		}
		rulesIn := hours
		if len(rulesIn) == 0 {
			rulesIn = []string{cli.DefaultHours}
		}
		rules, err := cli.ParseHours(rulesIn)
		if err != nil {
			return err
		}

		r, err := app.Registry.CreateResource(cmd.Context(), domain.ResourceSpec{
			Name:         args[0],
			Type:         domain.ResourceType(resourceType),
			Capacity:     capacity,
			Location:     location,
			Features:     features,
			Availability: domain.Availability{Location: loc, Rules: rules},
		})
		if err != nil {
			return fmt.Errorf("failed to create resource: %w", err)
		}

		view := toView(r)
		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintln(w, "Resource created")
			printResource(w, view)
		})
	},
}

func init() {
	createCmd.Flags().StringVarP(&resourceType, "type", "t", string(domain.ResourceRoom), "resource type (room, equipment, instructor_slot, vehicle, venue, virtual_room)")
	createCmd.Flags().IntVarP(&capacity, "capacity", "c", 0, "number of participants the resource holds")
	createCmd.Flags().StringVar(&location, "location", "", "where the resource is")
	createCmd.Flags().StringSliceVarP(&features, "feature", "f", nil, "feature tag, repeatable")
	createCmd.Flags().StringArrayVar(&hours, "hours", nil, "opening hours as DAYS=HH:MM-HH:MM, repeatable")
	createCmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone of the opening hours (default UTC)")
}
