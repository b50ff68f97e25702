package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConfirmed is returned when the broker nacks a publish.
var ErrNotConfirmed = errors.New("rabbitmq: publish not confirmed")

// RabbitMQPublisher publishes envelopes as persistent messages and waits
// for the broker confirm, so the outbox only marks what the broker holds.
// A closed channel is reopened on the next Publish.
type RabbitMQPublisher struct {
	url    string
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewRabbitMQPublisher connects to url. The first connection must succeed.
func NewRabbitMQPublisher(url string, logger *slog.Logger) (*RabbitMQPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &RabbitMQPublisher{url: url, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	logger.Info("RabbitMQ publisher connected", "exchange", ExchangeName)
	return p, nil
}

// connect must be called with mu held or before p is shared.
func (p *RabbitMQPublisher) connect() error {
	conn, ch, err := openChannel(p.url, ExchangeName)
	if err != nil {
		return err
	}
	if err := ch.Confirm(false); err != nil {
		_ = closeAll(conn, ch)
		return fmt.Errorf("enable publisher confirms: %w", err)
	}
	p.conn, p.channel = conn, ch
	return nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("rabbitmq: publisher closed")
	}
	if p.channel == nil || p.channel.IsClosed() {
		_ = closeAll(p.conn, p.channel)
		if err := p.connect(); err != nil {
			return err
		}
		p.logger.InfoContext(ctx, "RabbitMQ publisher reconnected")
	}

	confirm, err := p.channel.PublishWithDeferredConfirmWithContext(ctx, ExchangeName, routingKey, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Type:         routingKey,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", routingKey, err)
	}
	if !acked {
		return fmt.Errorf("%w: %s", ErrNotConfirmed, routingKey)
	}
	p.logger.DebugContext(ctx, "message published", "routing_key", routingKey, "size", len(body))
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return closeAll(p.conn, p.channel)
}
