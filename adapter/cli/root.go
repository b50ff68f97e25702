package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/pkg/observability"
)

var (
	outputJSON bool
	actorFlag  string
	logger     *slog.Logger
)

type commandTimerKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cohort",
	Short: "Cohort - training session scheduling and resource allocation",
	Long: `Cohort schedules training sessions onto rooms, equipment and instructors,
detects and resolves scheduling conflicts, and runs per-session waitlists.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logger == nil {
			logger = slog.Default()
		}
		if app != nil && actorFlag != "" {
			id, err := uuid.Parse(actorFlag)
			if err != nil {
				return fmt.Errorf("invalid --actor: %w", err)
			}
			app.SetActorID(id)
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = observability.WithCorrelationID(ctx, "")
		ctx = observability.WithOperation(ctx, cmd.CommandPath())
		timer := observability.StartTimer(cmd.CommandPath()).WithLogger(logger)
		cmd.SetContext(context.WithValue(ctx, commandTimerKey{}, timer))
		logger.DebugContext(ctx, "command start")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		ctx := cmd.Context()
		if app != nil {
			if err := app.FlushEvents(ctx); err != nil {
				logger.WarnContext(ctx, "failed to relay events", "error", err)
			}
		}
		if timer, ok := ctx.Value(commandTimerKey{}).(*observability.Timer); ok {
			timer.Stop(ctx)
		}
	},
}

// ExecuteContext runs the root command. Cobra has already printed the
// error when one is returned.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "actor id recorded on emitted events")
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// SetLogger sets the CLI logger.
func SetLogger(l *slog.Logger) {
	logger = l
}
