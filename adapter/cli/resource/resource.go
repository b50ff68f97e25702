package resource

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

// Cmd is the resource command group
var Cmd = &cobra.Command{
	Use:   "resource",
	Short: "Manage bookable resources",
	Long:  `Register rooms, equipment and venues, block them for maintenance and book them for sessions.`,
}

func init() {
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(updateCmd)
	Cmd.AddCommand(statusCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(maintenanceCmd)
	Cmd.AddCommand(allocateCmd)
	Cmd.AddCommand(releaseCmd)
	Cmd.AddCommand(allocationsCmd)
}

type resourceView struct {
	ID          uuid.UUID                  `json:"id"`
	Name        string                     `json:"name"`
	Type        string                     `json:"type"`
	Status      string                     `json:"status"`
	Capacity    int                        `json:"capacity"`
	Location    string                     `json:"location,omitempty"`
	Features    []string                   `json:"features,omitempty"`
	Timezone    string                     `json:"timezone"`
	Hours       []string                   `json:"hours,omitempty"`
	Maintenance []domain.MaintenanceWindow `json:"maintenance,omitempty"`
}

func toView(r *domain.Resource) resourceView {
	avail := r.Availability()
	tz := "UTC"
	if avail.Location != nil {
		tz = avail.Location.String()
	}
	return resourceView{
		ID:          r.ID(),
		Name:        r.Name(),
		Type:        string(r.Type()),
		Status:      string(r.Status()),
		Capacity:    r.Capacity(),
		Location:    r.Location(),
		Features:    r.Features(),
		Timezone:    tz,
		Hours:       describeHours(avail.Rules),
		Maintenance: avail.Maintenance,
	}
}

func describeHours(rules []domain.AvailabilityRule) []string {
	out := make([]string, 0, len(rules))
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		out = append(out, fmt.Sprintf("%s %s-%s", rule.Weekday.String()[:3], rule.Start, rule.End))
	}
	return out
}

func printResource(w io.Writer, v resourceView) {
	fmt.Fprintf(w, "%s  %s\n", v.ID, v.Name)
	fmt.Fprintf(w, "  type: %s\n", v.Type)
	fmt.Fprintf(w, "  status: %s\n", v.Status)
	if v.Capacity > 0 {
		fmt.Fprintf(w, "  capacity: %d\n", v.Capacity)
	}
	if v.Location != "" {
		fmt.Fprintf(w, "  location: %s\n", v.Location)
	}
	if len(v.Features) > 0 {
		fmt.Fprintf(w, "  features: %s\n", strings.Join(v.Features, ", "))
	}
	if len(v.Hours) > 0 {
		fmt.Fprintf(w, "  hours (%s): %s\n", v.Timezone, strings.Join(v.Hours, ", "))
	}
}
