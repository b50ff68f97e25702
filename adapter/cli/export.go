package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

var (
	exportFormat    string
	exportOutput    string
	exportFrom      string
	exportDays      int
	exportCancelled bool
)

// icsEvent is one calendar entry of an export.
type icsEvent struct {
	ID       uuid.UUID
	Title    string
	Start    time.Time
	End      time.Time
	Status   domain.SessionStatus
	Location string
	Enrolled int
	Capacity int
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sessions to a calendar file",
	Long: `Export the sessions of a time range to ICS (iCalendar) format for import
into Google Calendar, Outlook, Apple Calendar and other calendar apps.
The allocated resources become the event location.

Examples:
  cohort export                           # next 7 days to stdout
  cohort export -o sessions.ics --days 30
  cohort export --from 2026-03-01 --cancelled`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		switch exportFormat {
		case "ics", "ical":
		default:
			return fmt.Errorf("unsupported format: %s (supported: ics)", exportFormat)
		}

		from, to, err := ParseRange(exportFrom, "", exportDays)
		if err != nil {
			return err
		}
		events, err := collectEvents(cmd.Context(), app, from, to)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "No sessions found between %s and %s.\n",
				from.Format("2006-01-02"), to.Format("2006-01-02"))
			return nil
		}

		if exportOutput == "" {
			return writeICS(cmd.OutOrStdout(), events, time.Now())
		}
		var buf bytes.Buffer
		if err := writeICS(&buf, events, time.Now()); err != nil {
			return err
		}
		if err := os.WriteFile(exportOutput, buf.Bytes(), 0600); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d sessions to %s\n", len(events), exportOutput)
		return nil
	},
}

func collectEvents(ctx context.Context, app *App, from, to time.Time) ([]icsEvent, error) {
	sessions, err := app.Sessions.ListSessions(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	names := make(map[uuid.UUID]string)
	events := make([]icsEvent, 0, len(sessions))
	for _, s := range sessions {
		if s.Status() == domain.SessionCancelled && !exportCancelled {
			continue
		}
		allocs, err := app.Ledger.SessionAllocations(ctx, s.ID())
		if err != nil {
			return nil, fmt.Errorf("failed to load allocations: %w", err)
		}
		var rooms []string
		for _, a := range allocs {
			name, ok := names[a.ResourceID()]
			if !ok {
				r, err := app.Registry.GetResource(ctx, a.ResourceID())
				if err != nil {
					return nil, fmt.Errorf("failed to load resource: %w", err)
				}
				name = r.Name()
				names[a.ResourceID()] = name
			}
			rooms = append(rooms, name)
		}
		iv := s.Interval()
		events = append(events, icsEvent{
			ID:       s.ID(),
			Title:    s.Title(),
			Start:    iv.Start,
			End:      iv.End,
			Status:   s.Status(),
			Location: strings.Join(rooms, ", "),
			Enrolled: s.EnrolledCount(),
			Capacity: s.MaxParticipants(),
		})
	}
	return events, nil
}

// buildCalendar turns events into one VCALENDAR. stamp becomes every
// event's DTSTAMP.
func buildCalendar(events []icsEvent, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//Cohort//Cohort CLI//EN")
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")
	cal.Props.SetText(ical.PropMethod, "PUBLISH")
	cal.Props.SetText("X-WR-CALNAME", "Cohort Sessions")

	for _, e := range events {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, e.ID.String()+"@cohort")
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		event.Props.SetDateTime(ical.PropDateTimeStart, e.Start.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, e.End.UTC())
		event.Props.SetText(ical.PropSummary, e.Title)
		if e.Location != "" {
			event.Props.SetText(ical.PropLocation, e.Location)
		}
		event.Props.SetText(ical.PropDescription,
			fmt.Sprintf("Status: %s\nEnrolled: %d/%d", e.Status, e.Enrolled, e.Capacity))
		event.Props.SetText(ical.PropStatus, icsStatus(e.Status))
		cal.Children = append(cal.Children, event.Component)
	}
	return cal
}

func writeICS(w io.Writer, events []icsEvent, stamp time.Time) error {
	if err := ical.NewEncoder(w).Encode(buildCalendar(events, stamp)); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func icsStatus(s domain.SessionStatus) string {
	switch s {
	case domain.SessionConfirmed, domain.SessionCompleted:
		return "CONFIRMED"
	case domain.SessionCancelled:
		return "CANCELLED"
	default:
		return "TENTATIVE"
	}
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "ics", "export format (ics)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "first day (default today)")
	exportCmd.Flags().IntVarP(&exportDays, "days", "d", 7, "number of days to export")
	exportCmd.Flags().BoolVar(&exportCancelled, "cancelled", false, "include cancelled sessions")

	rootCmd.AddCommand(exportCmd)
}
