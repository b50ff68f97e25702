package session

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

// Cmd is the session command group
var Cmd = &cobra.Command{
	Use:   "session",
	Short: "Manage training sessions",
	Long:  `Create sessions, place them with the optimizer and cancel them.`,
}

func init() {
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(scheduleCmd)
	Cmd.AddCommand(rescheduleCmd)
	Cmd.AddCommand(confirmCmd)
	Cmd.AddCommand(boundsCmd)
	Cmd.AddCommand(cancelCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(listCmd)
}

type sessionView struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Status          string     `json:"status"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	Timezone        string     `json:"timezone"`
	MinParticipants int        `json:"min_participants"`
	MaxParticipants int        `json:"max_participants"`
	Enrolled        int        `json:"enrolled"`
	Waitlisted      int        `json:"waitlisted"`
	InstructorID    *uuid.UUID `json:"instructor_id,omitempty"`
	Waitlist        bool       `json:"waitlist"`
	AutoEnroll      bool       `json:"auto_enroll"`
}

func toView(s *domain.Session) sessionView {
	v := sessionView{
		ID:              s.ID(),
		Title:           s.Title(),
		Status:          string(s.Status()),
		Start:           s.Interval().Start,
		End:             s.Interval().End,
		Timezone:        s.Location().String(),
		MinParticipants: s.MinParticipants(),
		MaxParticipants: s.MaxParticipants(),
		Enrolled:        s.EnrolledCount(),
		Waitlisted:      s.WaitlistedCount(),
		Waitlist:        s.Waitlist().Enabled,
		AutoEnroll:      s.Waitlist().AutoEnroll,
	}
	if s.HasInstructor() {
		id := s.InstructorID()
		v.InstructorID = &id
	}
	return v
}

func printSession(w io.Writer, v sessionView) {
	loc, err := time.LoadLocation(v.Timezone)
	if err != nil {
		loc = time.UTC
	}
	fmt.Fprintf(w, "%s  %s\n", v.ID, v.Title)
	fmt.Fprintf(w, "  status: %s\n", v.Status)
	fmt.Fprintf(w, "  when: %s\n", cli.FormatInterval(v.Start.In(loc), v.End.In(loc)))
	fmt.Fprintf(w, "  seats: %d/%d (min %d), waitlisted %d\n", v.Enrolled, v.MaxParticipants, v.MinParticipants, v.Waitlisted)
	if v.InstructorID != nil {
		fmt.Fprintf(w, "  instructor: %s\n", *v.InstructorID)
	}
}

// AlternativeView is one scored placement.
type AlternativeView struct {
	Start        time.Time   `json:"start"`
	End          time.Time   `json:"end"`
	ResourceIDs  []uuid.UUID `json:"resource_ids"`
	InstructorID *uuid.UUID  `json:"instructor_id,omitempty"`
	Score        float64     `json:"score"`
	Viable       bool        `json:"viable"`
	Fallback     bool        `json:"fallback,omitempty"`
	Tradeoffs    []string    `json:"tradeoffs,omitempty"`
	Conflicts    []string    `json:"conflicts,omitempty"`
}

// ResultView is the rendered outcome of one optimizer run.
type ResultView struct {
	SessionID    uuid.UUID         `json:"session_id"`
	Success      bool              `json:"success"`
	Committed    *AlternativeView  `json:"committed,omitempty"`
	Alternatives []AlternativeView `json:"alternatives"`
	Conflicts    []string          `json:"conflicts,omitempty"`
}

func toAlternativeView(a services.Alternative) AlternativeView {
	v := AlternativeView{
		Start:       a.Interval.Start,
		End:         a.Interval.End,
		ResourceIDs: a.ResourceIDs,
		Score:       a.Score,
		Viable:      a.Viable,
		Fallback:    a.Fallback,
		Tradeoffs:   a.Tradeoffs,
		Conflicts:   describeConflicts(a.Conflicts),
	}
	if a.InstructorID != uuid.Nil {
		id := a.InstructorID
		v.InstructorID = &id
	}
	return v
}

func describeConflicts(conflicts []*domain.SchedulingConflict) []string {
	out := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, fmt.Sprintf("%s (%s): %s", c.Type(), c.Severity(), c.Description()))
	}
	return out
}

// ToResultView converts an optimizer result for rendering.
func ToResultView(r *services.OptimizationResult) ResultView {
	v := ResultView{
		SessionID:    r.SessionID,
		Success:      r.Success,
		Alternatives: make([]AlternativeView, 0, len(r.Alternatives)),
		Conflicts:    describeConflicts(r.Conflicts),
	}
	if r.Committed != nil {
		c := toAlternativeView(*r.Committed)
		v.Committed = &c
	}
	for _, a := range r.Alternatives {
		v.Alternatives = append(v.Alternatives, toAlternativeView(a))
	}
	return v
}

// PrintResult writes a human readable optimizer result.
func PrintResult(w io.Writer, v ResultView) {
	if v.Success && v.Committed != nil {
		c := v.Committed
		fmt.Fprintf(w, "Session scheduled: %s\n", v.SessionID)
		fmt.Fprintf(w, "  when: %s\n", cli.FormatInterval(c.Start, c.End))
		fmt.Fprintf(w, "  score: %.1f\n", c.Score)
		for _, id := range c.ResourceIDs {
			fmt.Fprintf(w, "  resource: %s\n", id)
		}
		if c.InstructorID != nil {
			fmt.Fprintf(w, "  instructor: %s\n", *c.InstructorID)
		}
		if len(c.Tradeoffs) > 0 {
			fmt.Fprintf(w, "  tradeoffs: %s\n", strings.Join(c.Tradeoffs, "; "))
		}
	} else {
		fmt.Fprintf(w, "Session not scheduled: %s\n", v.SessionID)
		for _, c := range v.Conflicts {
			fmt.Fprintf(w, "  conflict: %s\n", c)
		}
	}

	if len(v.Alternatives) == 0 {
		return
	}
	fmt.Fprintln(w, "Alternatives")
	cli.Rule(w)
	for _, a := range v.Alternatives {
		mark := " "
		if a.Viable {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %-40s %5.1f", mark, cli.FormatInterval(a.Start, a.End), a.Score)
		if a.Fallback {
			fmt.Fprint(w, "  fallback")
		}
		if len(a.Conflicts) > 0 {
			fmt.Fprintf(w, "  %d conflict(s)", len(a.Conflicts))
		}
		fmt.Fprintln(w)
	}
}
