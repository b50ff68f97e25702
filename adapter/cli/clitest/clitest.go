// Package clitest wires a CLI app over in-memory storage for command tests.
package clitest

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	internalApp "github.com/felixgeelhaar/cohort/internal/app"
)

// ActorID is the actor recorded on events raised by test commands.
var ActorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Setup installs a fresh app as the global CLI app and removes it when the
// test ends.
func Setup(t *testing.T) *cli.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	container, err := internalApp.NewMemoryContainer(context.Background(), logger)
	require.NoError(t, err)

	app := cli.NewApp(container)
	app.SetActorID(ActorID)
	cli.SetApp(app)
	cli.SetJSONOutput(false)

	t.Cleanup(func() {
		cli.SetApp(nil)
		cli.SetJSONOutput(false)
		container.Close()
	})
	return app
}

// Run executes cmd's RunE with args and returns what it printed.
func Run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	defer cmd.SetOut(nil)
	err := cmd.RunE(cmd, args)
	return out.String(), err
}

// NextMonday returns hour:00 UTC on a Monday at least a week out.
func NextMonday(hour int) time.Time {
	d := time.Now().UTC().AddDate(0, 0, 7)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC)
}
