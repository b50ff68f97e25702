package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// ErrNotInitialized is returned when a command runs without a container.
var ErrNotInitialized = errors.New("application not initialized - storage configuration required")

// RequireApp returns the global app or ErrNotInitialized.
func RequireApp() (*App, error) {
	if app == nil {
		return nil, ErrNotInitialized
	}
	return app, nil
}

// SetJSONOutput switches JSON output on or off.
func SetJSONOutput(on bool) {
	outputJSON = on
}

// Render prints v as indented JSON under --json, otherwise calls text.
func Render(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(out)
	return nil
}

// Rule prints a separator line.
func Rule(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("-", 40))
}

// ParseID parses a uuid argument, naming the argument on failure.
func ParseID(name, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return id, nil
}

// ParseOptionalID parses a uuid flag that may be empty.
func ParseOptionalID(name, s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, nil
	}
	return ParseID(name, s)
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

// ParseTime accepts RFC 3339 or "YYYY-MM-DD HH:MM" in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q, use RFC 3339 or YYYY-MM-DD HH:MM", s)
}

// FormatInterval prints a start and end on one line.
func FormatInterval(start, end time.Time) string {
	if start.Year() == end.Year() && start.YearDay() == end.YearDay() {
		return fmt.Sprintf("%s %s-%s", start.Format("Mon 2006-01-02"), start.Format("15:04"), end.Format("15:04 MST"))
	}
	return fmt.Sprintf("%s - %s", start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04 MST"))
}

// ParseRange parses --from and --to flags. An empty --from means today
// 00:00 UTC and an empty --to means days after --from.
func ParseRange(from, to string, days int) (time.Time, time.Time, error) {
	start := time.Now().UTC().Truncate(24 * time.Hour)
	var err error
	if from != "" {
		if start, err = ParseTime(from, time.UTC); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	end := start.AddDate(0, 0, days)
	if to != "" {
		if end, err = ParseTime(to, time.UTC); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to must be after --from")
	}
	return start, end, nil
}
