package infrastructure

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/cohort/internal/notification/domain"
)

// LogNotifier writes notices to the log instead of delivering them.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

// Notify implements domain.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, recipient string, kind domain.Kind, data map[string]any) error {
	if recipient == "" {
		return domain.ErrRecipientRequired
	}
	attrs := make([]any, 0, 4+2*len(data))
	attrs = append(attrs, "recipient", recipient, "kind", kind)
	for k, v := range data {
		attrs = append(attrs, k, v)
	}
	n.logger.InfoContext(ctx, "notification", attrs...)
	return nil
}
