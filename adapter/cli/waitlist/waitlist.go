package waitlist

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/internal/waitlist/application/queries"
	"github.com/felixgeelhaar/cohort/internal/waitlist/domain"
)

// Cmd is the waitlist command group
var Cmd = &cobra.Command{
	Use:   "waitlist",
	Short: "Manage enrollments and waitlists",
	Long:  `Enroll participants, queue them when a session is full and promote them as seats free up.`,
}

func init() {
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(enrollCmd)
	Cmd.AddCommand(cancelCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(removeCmd)
	Cmd.AddCommand(reorderCmd)
	Cmd.AddCommand(extendCmd)
	Cmd.AddCommand(promoteCmd)
	Cmd.AddCommand(processCmd)
}

type entryView struct {
	ID          string `json:"id"`
	RequesterID string `json:"requester_id"`
	Position    int    `json:"position"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
}

func toEntryView(e *domain.Entry) entryView {
	return entryView{
		ID:          e.ID().String(),
		RequesterID: e.RequesterID().String(),
		Position:    e.Position(),
		Priority:    string(e.Priority()),
		Status:      string(e.Status()),
	}
}

type enrollmentView struct {
	ID            string `json:"id"`
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	Source        string `json:"source"`
	Status        string `json:"status"`
}

func toEnrollmentView(e *domain.Enrollment) enrollmentView {
	return enrollmentView{
		ID:            e.ID().String(),
		SessionID:     e.SessionID().String(),
		ParticipantID: e.ParticipantID().String(),
		Source:        string(e.Source()),
		Status:        string(e.Status()),
	}
}

func printEntries(w io.Writer, entries []queries.EntryDTO) {
	for _, e := range entries {
		pos := "-"
		if e.Position > 0 {
			pos = fmt.Sprint(e.Position)
		}
		line := fmt.Sprintf("%3s  %s  %-7s %-9s requester %s", pos, e.ID, e.Priority, e.Status, e.RequesterID)
		if e.ExpiresAt != nil {
			line += "  expires " + e.ExpiresAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintln(w, line)
	}
}
