package session

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

var (
	start           string
	duration        time.Duration
	timezone        string
	minParticipants int
	maxParticipants int
	waitlist        bool
	autoEnroll      bool
	fundingRef      string
)

var createCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a draft session",
	Long: `Create a draft session. The start is read in --timezone.

Examples:
  cohort session create "Go basics" --start "2026-03-02 10:00" --duration 90m --max 12
  cohort session create "First aid" --start 2026-03-03T09:00:00+01:00 --duration 3h --min 4 --max 10 --waitlist --auto-enroll`,
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
		at, err := cli.ParseTime(start, loc)
		if err != nil {
			return err
		}
		if duration <= 0 {
			return fmt.Errorf("--duration must be positive")
		}

		s, err := app.Sessions.CreateSession(cmd.Context(), domain.SessionSpec{
			Title:           args[0],
			Interval:        domain.IntervalOf(at, duration),
			Timezone:        loc.String(),
			MinParticipants: minParticipants,
			MaxParticipants: maxParticipants,
			Waitlist:        domain.WaitlistConfig{Enabled: waitlist || autoEnroll, AutoEnroll: autoEnroll},
			FundingRef:      fundingRef,
		})
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		view := toView(s)
		return cli.Render(cmd, view, func(w io.Writer) {
			fmt.Fprintln(w, "Session created")
			printSession(w, view)
		})
	},
}

func init() {
	createCmd.Flags().StringVar(&start, "start", "", "session start (RFC 3339 or YYYY-MM-DD HH:MM)")
	createCmd.Flags().DurationVarP(&duration, "duration", "d", time.Hour, "session length")
	createCmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone of the session (default UTC)")
	createCmd.Flags().IntVar(&minParticipants, "min", 0, "minimum participants")
	createCmd.Flags().IntVar(&maxParticipants, "max", 0, "maximum participants")
	createCmd.Flags().BoolVar(&waitlist, "waitlist", false, "keep a waitlist once the session is full")
	createCmd.Flags().BoolVar(&autoEnroll, "auto-enroll", false, "enroll from the waitlist when a seat frees up")
	createCmd.Flags().StringVar(&fundingRef, "funding-ref", "", "reference of the funding programme")
	_ = createCmd.MarkFlagRequired("start")
}
