package session

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/cohort/internal/scheduling/domain"
)

var (
	requestFile          string
	preferredStarts      []string
	resources            []string
	instructorID         string
	specializations      []string
	certifications       []string
	minRating            float64
	timeWindow           string
	softWindow           string
	weekdays             string
	minBreak             int
	timeTolerance        int
	dateTolerance        int
	substituteResources  bool
	substituteInstructor bool
	acceptVirtual        bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule [session-id]",
	Short: "Place a session with the optimizer",
	Long: `Search conflict-free placements for a session and commit the best one.

Resources are TYPE[:MIN_CAPACITY][:FEATURE+FEATURE]. A trailing ? on the
type marks the resource optional. Without --at the session's own start is
tried. A request can also be read from a YAML file with --file.

Examples:
  cohort session schedule 91ab... --resource room:12:projector --specialization go
  cohort session schedule 91ab... --at "2026-03-02 10:00" --at "2026-03-03 10:00" --window 09:00-17:00
  cohort session schedule 91ab... --resource "equipment?" --date-tolerance 2 --substitute-resources
  cohort session schedule 91ab... --file request.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		sessionID, err := cli.ParseID("session id", args[0])
		if err != nil {
			return err
		}
		session, err := app.Sessions.GetSession(cmd.Context(), sessionID)
		if err != nil {
			return err
		}

		req, err := buildRequest()
		if err != nil {
			return err
		}
		req.SessionID = sessionID
		if len(req.PreferredStarts) == 0 {
			req.PreferredStarts = append(req.PreferredStarts, session.Interval().Start)
		}

		result, err := app.ScheduleSessionHandler.Handle(cmd.Context(), commands.ScheduleSessionCommand{
			ActorID: app.ActorID,
			Request: req,
		})
		if result != nil {
			view := ToResultView(result)
			if renderErr := cli.Render(cmd, view, func(w io.Writer) { PrintResult(w, view) }); renderErr != nil {
				return renderErr
			}
		}
		if err != nil {
			return fmt.Errorf("failed to schedule session: %w", err)
		}
		return nil
	},
}

func buildRequest() (domain.SchedulingRequest, error) {
	var req domain.SchedulingRequest
	if requestFile != "" {
		data, err := os.ReadFile(requestFile)
		if err != nil {
			return req, fmt.Errorf("failed to read request: %w", err)
		}
		if err := yaml.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("invalid request file: %w", err)
		}
	}

	for _, s := range preferredStarts {
		t, err := cli.ParseTime(s, nil)
		if err != nil {
			return req, err
		}
		req.PreferredStarts = append(req.PreferredStarts, t)
	}
	for _, s := range resources {
		r, err := parseRequirement(s)
		if err != nil {
			return req, err
		}
		req.Resources = append(req.Resources, r)
	}

	id, err := cli.ParseOptionalID("instructor id", instructorID)
	if err != nil {
		return req, err
	}
	if id != uuid.Nil {
		req.Instructor.InstructorID = id
	}
	req.Instructor.Specializations = append(req.Instructor.Specializations, specializations...)
	req.Instructor.Certifications = append(req.Instructor.Certifications, certifications...)
	if minRating > 0 {
		req.Instructor.MinRating = minRating
	}

	for _, w := range []struct {
		value string
		typ   domain.ConstraintType
	}{{timeWindow, domain.ConstraintTypeHard}, {softWindow, domain.ConstraintTypeSoft}} {
		if w.value == "" {
			continue
		}
		c, err := parseWindow(w.value, w.typ)
		if err != nil {
			return req, err
		}
		req.Constraints = append(req.Constraints, c)
	}
	if weekdays != "" {
		days, err := cli.ParseDays(weekdays)
		if err != nil {
			return req, err
		}
		req.Constraints = append(req.Constraints, domain.ConstraintSpec{
			Kind: domain.ConstraintWeekdays, Type: domain.ConstraintTypeHard, Weekdays: days,
		})
	}
	if minBreak > 0 {
		req.Constraints = append(req.Constraints, domain.ConstraintSpec{
			Kind: domain.ConstraintBreak, Type: domain.ConstraintTypeHard, BreakMinutes: minBreak,
		})
	}

	f := &req.Flexibility
	if timeTolerance > 0 {
		f.TimeToleranceMinutes = timeTolerance
	}
	if dateTolerance > 0 {
		f.DateToleranceDays = dateTolerance
	}
	f.AllowResourceSubstitution = f.AllowResourceSubstitution || substituteResources
	f.AllowInstructorSubstitution = f.AllowInstructorSubstitution || substituteInstructor
	f.AcceptVirtual = f.AcceptVirtual || acceptVirtual
	return req, nil
}

// parseRequirement reads TYPE[?][:MIN_CAPACITY][:FEATURE+FEATURE].
func parseRequirement(s string) (domain.ResourceRequirement, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 || parts[0] == "" {
		return domain.ResourceRequirement{}, fmt.Errorf("invalid resource %q, use TYPE[:MIN_CAPACITY][:FEATURE+FEATURE]", s)
	}
	typ, optional := strings.CutSuffix(parts[0], "?")
	req := domain.ResourceRequirement{Type: domain.ResourceType(typ), Optional: optional}
	if len(parts) > 1 && parts[1] != "" {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 0 {
			return domain.ResourceRequirement{}, fmt.Errorf("invalid capacity in resource %q", s)
		}
		req.MinCapacity = n
	}
	if len(parts) > 2 && parts[2] != "" {
		req.Features = strings.Split(parts[2], "+")
	}
	return req, nil
}

// parseWindow reads HH:MM-HH:MM.
func parseWindow(s string, typ domain.ConstraintType) (domain.ConstraintSpec, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return domain.ConstraintSpec{}, fmt.Errorf("invalid window %q, use HH:MM-HH:MM", s)
	}
	open, err := domain.ParseTimeOfDay(from)
	if err != nil {
		return domain.ConstraintSpec{}, err
	}
	closes, err := domain.ParseTimeOfDay(to)
	if err != nil {
		return domain.ConstraintSpec{}, err
	}
	if closes <= open {
		return domain.ConstraintSpec{}, fmt.Errorf("invalid window %q: end must be after start", s)
	}
	return domain.ConstraintSpec{Kind: domain.ConstraintTimeWindow, Type: typ, Start: open, End: closes}, nil
}

func init() {
	scheduleCmd.Flags().StringVar(&requestFile, "file", "", "YAML scheduling request, flags are merged on top")
	scheduleCmd.Flags().StringArrayVar(&preferredStarts, "at", nil, "preferred start, repeatable")
	scheduleCmd.Flags().StringArrayVarP(&resources, "resource", "r", nil, "required resource as TYPE[:MIN_CAPACITY][:FEATURE+FEATURE], repeatable")
	scheduleCmd.Flags().StringVarP(&instructorID, "instructor", "i", "", "instructor id")
	scheduleCmd.Flags().StringSliceVar(&specializations, "specialization", nil, "instructor specialization, repeatable")
	scheduleCmd.Flags().StringSliceVar(&certifications, "certification", nil, "required instructor certification, repeatable")
	scheduleCmd.Flags().Float64Var(&minRating, "min-rating", 0, "minimum instructor rating")
	scheduleCmd.Flags().StringVar(&timeWindow, "window", "", "hard time of day window HH:MM-HH:MM")
	scheduleCmd.Flags().StringVar(&softWindow, "prefer-window", "", "preferred time of day window HH:MM-HH:MM")
	scheduleCmd.Flags().StringVar(&weekdays, "days", "", "allowed weekdays, e.g. mon-fri or tue,thu")
	scheduleCmd.Flags().IntVar(&minBreak, "min-break", 0, "minimum minutes between the instructor's sessions")
	scheduleCmd.Flags().IntVar(&timeTolerance, "time-tolerance", 0, "minutes the start may move")
	scheduleCmd.Flags().IntVar(&dateTolerance, "date-tolerance", 0, "days the date may move")
	scheduleCmd.Flags().BoolVar(&substituteResources, "substitute-resources", false, "allow resources of another type")
	scheduleCmd.Flags().BoolVar(&substituteInstructor, "substitute-instructor", false, "allow another instructor")
	scheduleCmd.Flags().BoolVar(&acceptVirtual, "accept-virtual", false, "accept a virtual room in place of a room")
}
