package eventbus

import (
	"context"
	"log/slog"
)

// InProcessEventBus is the Publisher used without a broker. Publish
// decodes the envelope and runs the matching consumers before returning,
// so the CLI sees subscriber effects within the same command. Consumer
// failures are logged and never reach the publisher.
type InProcessEventBus struct {
	registry *ConsumerRegistry
	logger   *slog.Logger
}

func NewInProcessEventBus(logger *slog.Logger) *InProcessEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessEventBus{registry: NewConsumerRegistry(logger), logger: logger}
}

func (b *InProcessEventBus) RegisterConsumer(consumer EventConsumer) {
	b.registry.Register(consumer)
}

func (b *InProcessEventBus) Registry() *ConsumerRegistry { return b.registry }

func (b *InProcessEventBus) Publish(ctx context.Context, routingKey string, body []byte) error {
	event, err := Decode(body, routingKey)
	if err != nil {
		b.logger.ErrorContext(ctx, "dropping undecodable event", "routing_key", routingKey, "error", err)
		return nil
	}
	if err := b.registry.Dispatch(ctx, event); err != nil {
		b.logger.WarnContext(ctx, "in-process delivery failed", "routing_key", event.RoutingKey, "event_id", event.EventID, "error", err)
	}
	return nil
}

// Start blocks until ctx is done; delivery already happens in Publish.
func (b *InProcessEventBus) Start(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (b *InProcessEventBus) Close() error { return nil }
