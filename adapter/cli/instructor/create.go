package instructor

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

var (
	specializations []string
	certifications  []string
	rating          float64
	maxPerDay       int
	maxPerWeek      int
	hours           []string
	timezone        string
)

var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Register an instructor",
	Long: `Register an instructor.

Certifications are NAME or NAME:YYYY-MM-DD with the last valid day.
Working hours are DAYS=HH:MM-HH:MM and default to mon-fri=09:00-17:00.

Examples:
  cohort instructor create "Ada" --specialization go --rating 4.8
  cohort instructor create "Bob" --certification first-aid:2027-01-31 --max-per-day 2 --hours tue,thu=10:00-16:00`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		certs, err := parseCertifications(certifications)
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

		inst, err := app.Registry.CreateInstructor(cmd.Context(), domain.InstructorSpec{
			Name:               args[0],
			Specializations:    specializations,
			Certifications:     certs,
			Availability:       domain.Availability{Location: loc, Rules: rules},
			MaxSessionsPerDay:  maxPerDay,
			MaxSessionsPerWeek: maxPerWeek,
			Rating:             rating,
		})
		if err != nil {
			return fmt.Errorf("failed to create instructor: %w", err)
		}

		view := toView(inst)
		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintln(w, "Instructor created")
			printInstructor(w, view)
		})
	},
}

func init() {
	createCmd.Flags().StringSliceVarP(&specializations, "specialization", "s", nil, "subject the instructor teaches, repeatable")
	createCmd.Flags().StringArrayVarP(&certifications, "certification", "c", nil, "certification as NAME or NAME:YYYY-MM-DD, repeatable")
	createCmd.Flags().Float64VarP(&rating, "rating", "r", 0, "rating from 0 to 5")
	createCmd.Flags().IntVar(&maxPerDay, "max-per-day", 0, "session limit per day (0 for none)")
	createCmd.Flags().IntVar(&maxPerWeek, "max-per-week", 0, "session limit per week (0 for none)")
	createCmd.Flags().StringArrayVar(&hours, "hours", nil, "working hours as DAYS=HH:MM-HH:MM, repeatable")
	createCmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone of the working hours (default UTC)")
}
