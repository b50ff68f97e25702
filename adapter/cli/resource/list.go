package resource

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

var (
	filterType     string
	filterFeatures []string
	minCapacity    int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources",
	Long: `List registered resources, optionally filtered.

Examples:
  cohort resource list
  cohort resource list --type room --min-capacity 15 --feature projector`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		resources, err := app.Registry.ListResources(cmd.Context(), domain.ResourceFilter{
			Type:        domain.ResourceType(filterType),
			Features:    filterFeatures,
			MinCapacity: minCapacity,
		})
		if err != nil {
			return fmt.Errorf("failed to list resources: %w", err)
		}

		views := make([]resourceView, 0, len(resources))
		for _, r := range resources {
			views = append(views, toView(r))
		}

		return cli.Render(cmd, views, func(w io.Writer) {
			if len(views) == 0 {
				fmt.Fprintln(w, "No resources found.")
				return
			}
			fmt.Fprintf(w, "Resources (%d)\n", len(views))
			cli.Rule(w)
			for _, v := range views {
				line := fmt.Sprintf("%s  %-20s %-12s %s", v.ID, v.Name, v.Type, v.Status)
				if v.Capacity > 0 {
					line += fmt.Sprintf("  cap %d", v.Capacity)
				}
				fmt.Fprintln(w, line)
			}
		})
	},
}

func init() {
	listCmd.Flags().StringVarP(&filterType, "type", "t", "", "only resources of this type")
	listCmd.Flags().StringSliceVarP(&filterFeatures, "feature", "f", nil, "only resources with this feature, repeatable")
	listCmd.Flags().IntVar(&minCapacity, "min-capacity", 0, "only resources holding at least this many")
}
