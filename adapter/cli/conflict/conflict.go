package conflict

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/internal/scheduling/application/queries"
)

// Cmd is the conflict command group
var Cmd = &cobra.Command{
	Use:   "conflict",
	Short: "Detect and resolve scheduling conflicts",
	Long: `Find double bookings, instructor clashes, capacity and maintenance
problems, and apply a resolution strategy to them.`,
}

func init() {
	Cmd.AddCommand(detectCmd)
	Cmd.AddCommand(auditCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(resolveCmd)
}

func printConflicts(w io.Writer, conflicts []queries.ConflictDTO) {
	if len(conflicts) == 0 {
		fmt.Fprintln(w, "No conflicts found.")
		return
	}
	fmt.Fprintf(w, "Conflicts (%d)\n", len(conflicts))
	cli.Rule(w)
	for _, c := range conflicts {
		state := "open"
		if c.ResolvedAt != nil {
			state = "resolved by " + c.ResolvedBy
		}
		fmt.Fprintf(w, "%s  %-8s %-24s %s\n", c.ID, c.Severity, c.Type, state)
		fmt.Fprintf(w, "  %s\n", c.Description)
		fmt.Fprintf(w, "  when: %s\n", cli.FormatInterval(c.Start, c.End))
		if len(c.Resolutions) > 0 {
			fmt.Fprintf(w, "  resolutions: %s\n", strings.Join(c.Resolutions, ", "))
		}
	}
}
