package instructor

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

// Cmd is the instructor command group
var Cmd = &cobra.Command{
	Use:   "instructor",
	Short: "Manage instructors",
	Long:  `Register instructors with their qualifications, working hours and session limits.`,
}

func init() {
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(deleteCmd)
}

type instructorView struct {
	ID                 uuid.UUID              `json:"id"`
	Name               string                 `json:"name"`
	Specializations    []string               `json:"specializations,omitempty"`
	Certifications     []domain.Certification `json:"certifications,omitempty"`
	Rating             float64                `json:"rating"`
	MaxSessionsPerDay  int                    `json:"max_sessions_per_day,omitempty"`
	MaxSessionsPerWeek int                    `json:"max_sessions_per_week,omitempty"`
	Timezone           string                 `json:"timezone"`
}

func toView(i *domain.Instructor) instructorView {
	tz := "UTC"
	if loc := i.Availability().Location; loc != nil {
		tz = loc.String()
	}
	return instructorView{
		ID:                 i.ID(),
		Name:               i.Name(),
		Specializations:    i.Specializations(),
		Certifications:     i.Certifications(),
		Rating:             i.Rating(),
		MaxSessionsPerDay:  i.MaxSessionsPerDay(),
		MaxSessionsPerWeek: i.MaxSessionsPerWeek(),
		Timezone:           tz,
	}
}

func printInstructor(w io.Writer, v instructorView) {
	fmt.Fprintf(w, "%s  %s\n", v.ID, v.Name)
	fmt.Fprintf(w, "  rating: %.1f\n", v.Rating)
	if len(v.Specializations) > 0 {
		fmt.Fprintf(w, "  specializations: %s\n", strings.Join(v.Specializations, ", "))
	}
	for _, c := range v.Certifications {
		if c.ValidUntil != nil {
			fmt.Fprintf(w, "  certification: %s (until %s)\n", c.Name, c.ValidUntil.Format("2006-01-02"))
			continue
		}
		fmt.Fprintf(w, "  certification: %s\n", c.Name)
	}
	if v.MaxSessionsPerDay > 0 || v.MaxSessionsPerWeek > 0 {
		fmt.Fprintf(w, "  limits: %d/day, %d/week\n", v.MaxSessionsPerDay, v.MaxSessionsPerWeek)
	}
}

// parseCertifications reads NAME or NAME:YYYY-MM-DD.
func parseCertifications(values []string) ([]domain.Certification, error) {
	certs := make([]domain.Certification, 0, len(values))
	for _, v := range values {
		name, until, hasExpiry := strings.Cut(v, ":")
		cert := domain.Certification{Name: strings.TrimSpace(name)}
		if hasExpiry {
			t, err := time.Parse("2006-01-02", strings.TrimSpace(until))
			if err != nil {
				return nil, fmt.Errorf("invalid certification %q, use NAME or NAME:YYYY-MM-DD", v)
			}
			end := t.Add(24*time.Hour - time.Second)
			cert.ValidUntil = &end
		}
		certs = append(certs, cert)
	}
	return certs, nil
}
