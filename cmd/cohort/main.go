package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/cohort/adapter/cli"
	"github.com/felixgeelhaar/cohort/adapter/cli/conflict"
	"github.com/felixgeelhaar/cohort/adapter/cli/instructor"
	"github.com/felixgeelhaar/cohort/adapter/cli/resource"
	"github.com/felixgeelhaar/cohort/adapter/cli/session"
	"github.com/felixgeelhaar/cohort/adapter/cli/waitlist"
	"github.com/felixgeelhaar/cohort/internal/app"
	"github.com/felixgeelhaar/cohort/pkg/config"
	"github.com/felixgeelhaar/cohort/pkg/observability"
)

func main() {
	logger := observability.NewLogger(observability.DefaultLogConfig())

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Commands print their own output, so the log stays quiet unless asked.
	logCfg := observability.LogConfigFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)
	if os.Getenv("LOG_LEVEL") == "" {
		logCfg.Level = slog.LevelWarn
	}
	logCfg.ServiceVersion = cli.Version
	logger = observability.NewLogger(logCfg)
	slog.SetDefault(logger)
	cli.SetLogger(logger)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	cli.SetApp(cli.NewApp(container))

	cli.AddCommand(resource.Cmd)
	cli.AddCommand(instructor.Cmd)
	cli.AddCommand(session.Cmd)
	cli.AddCommand(waitlist.Cmd)
	cli.AddCommand(conflict.Cmd)

	if err := cli.ExecuteContext(ctx); err != nil {
		container.Close()
		os.Exit(1)
	}
}
