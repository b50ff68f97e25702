// Package observability provides structured logging, metrics and health
// checks for cohort processes.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	Level     slog.Level
	Format    LogFormat
	Output    io.Writer
	AddSource bool
	// ServiceName and ServiceVersion are attached to every record when set.
	ServiceName    string
	ServiceVersion string
}

// DefaultLogConfig is text at info level on stderr.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:          slog.LevelInfo,
		Format:         LogFormatText,
		Output:         os.Stderr,
		ServiceName:    "cohort",
		ServiceVersion: "dev",
	}
}

// LogConfigFor derives a config from the APP_ENV, LOG_LEVEL and LOG_FORMAT
// settings. Production logs JSON with source locations to stdout unless a
// format is given. An unparsable level keeps info.
func LogConfigFor(appEnv, level, format string) LogConfig {
	cfg := DefaultLogConfig()
	if appEnv == "production" {
		cfg.Format = LogFormatJSON
		cfg.Output = os.Stdout
		cfg.AddSource = true
	}
	if lvl, ok := ParseLevel(level); ok {
		cfg.Level = lvl
	}
	if format != "" {
		cfg.Format = LogFormat(strings.ToLower(format))
	}
	return cfg
}

// ParseLevel accepts the slog level names (debug, info, warn, error) with
// optional offsets such as "warn+2". ok is false for empty or unknown input.
func ParseLevel(s string) (slog.Level, bool) {
	var lvl slog.Level
	if s == "" || lvl.UnmarshalText([]byte(s)) != nil {
		return slog.LevelInfo, false
	}
	return lvl, true
}

// NewLogger builds a logger whose records carry the correlation id and
// operation found on the logging context.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}

	var h slog.Handler
	if cfg.Format == LogFormatJSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}

	var attrs []slog.Attr
	if cfg.ServiceName != "" {
		attrs = append(attrs, slog.String("service", cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, slog.String("version", cfg.ServiceVersion))
	}
	if len(attrs) > 0 {
		h = h.WithAttrs(attrs)
	}
	return slog.New(contextHandler{h})
}

// contextHandler copies the context scope onto each record.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	s := scopeOf(ctx)
	if s.correlationID != "" {
		r.AddAttrs(slog.String(CorrelationIDKey, s.correlationID))
	}
	if s.operation != "" {
		r.AddAttrs(slog.String(OperationKey, s.operation))
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
