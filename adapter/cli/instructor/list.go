package instructor

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cohort/adapter/cli"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List instructors",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		instructors, err := app.Registry.ListInstructors(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list instructors: %w", err)
		}
		views := make([]instructorView, 0, len(instructors))
		for _, i := range instructors {
			views = append(views, toView(i))
		}

		return cli.Render(cmd, views, func(w io.Writer) {
			if len(views) == 0 {
				fmt.Fprintln(w, "No instructors found.")
				return
			}
			fmt.Fprintf(w, "Instructors (%d)\n", len(views))
			cli.Rule(w)
			for _, v := range views {
				fmt.Fprintf(w, "%s  %-20s %.1f  %s\n", v.ID, v.Name, v.Rating, strings.Join(v.Specializations, ", "))
			}
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show [instructor-id]",
	Short: "Show an instructor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("instructor id", args[0])
		if err != nil {
			return err
		}

		inst, err := app.Registry.GetInstructor(cmd.Context(), id)
		if err != nil {
			return err
		}
		view := toView(inst)
		return cli.Render(cmd, view, func(w io.Writer) {
			printInstructor(w, view)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [instructor-id]",
	Short: "Delete an instructor without future sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("instructor id", args[0])
		if err != nil {
			return err
		}

		if err := app.Registry.DeleteInstructor(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete instructor: %w", err)
		}
		return cli.Render(cmd, map[string]any{"id": id, "deleted": true}, func(w io.Writer) {
			fmt.Fprintf(w, "Instructor deleted: %s\n", id)
		})
	},
}
