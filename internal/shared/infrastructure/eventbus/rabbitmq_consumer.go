package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultConsumerQueueName is the queue the worker binds its consumers to.
const DefaultConsumerQueueName = "cohort.worker"

var errDeliveriesClosed = errors.New("rabbitmq: delivery channel closed")

// RabbitMQConsumerConfig configures a RabbitMQConsumer. Zero values take
// the defaults.
type RabbitMQConsumerConfig struct {
	URL       string
	QueueName string
	Prefetch  int
	// MaxReconnectInterval caps the delay between reconnect attempts.
	MaxReconnectInterval time.Duration
	Logger               *slog.Logger
}

// RabbitMQConsumer feeds a durable queue into a ConsumerRegistry.
//
// A delivery whose handlers fail is requeued once and rejected when it
// fails again on redelivery. Undecodable bodies are rejected at once.
// When the broker drops the connection Start redials with exponential
// backoff and restores every binding.
type RabbitMQConsumer struct {
	cfg      RabbitMQConsumerConfig
	registry *ConsumerRegistry
	logger   *slog.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	patterns []string
	running  bool
	cancel   context.CancelFunc
}

// NewRabbitMQConsumer connects and declares the queue. The first
// connection must succeed so misconfiguration fails at startup.
func NewRabbitMQConsumer(cfg RabbitMQConsumerConfig, registry *ConsumerRegistry) (*RabbitMQConsumer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.QueueName == "" {
		cfg.QueueName = DefaultConsumerQueueName
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.MaxReconnectInterval <= 0 {
		cfg.MaxReconnectInterval = 30 * time.Second
	}
	c := &RabbitMQConsumer{cfg: cfg, registry: registry, logger: cfg.Logger}
	if err := c.connect(); err != nil {
		return nil, err
	}
	c.logger.Info("RabbitMQ consumer connected", "queue", cfg.QueueName, "exchange", ExchangeName)
	return c, nil
}

func (c *RabbitMQConsumer) connect() error {
	conn, ch, err := openChannel(c.cfg.URL, ExchangeName)
	if err != nil {
		return err
	}
	fail := func(err error) error {
		_ = closeAll(conn, ch)
		return err
	}
	if _, err := ch.QueueDeclare(c.cfg.QueueName, true, false, false, false, nil); err != nil {
		return fail(fmt.Errorf("declare queue %s: %w", c.cfg.QueueName, err))
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fail(fmt.Errorf("set qos: %w", err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pattern := range c.patterns {
		if err := ch.QueueBind(c.cfg.QueueName, pattern, ExchangeName, false, nil); err != nil {
			return fail(fmt.Errorf("bind %s: %w", pattern, err))
		}
	}
	c.conn, c.channel = conn, ch
	return nil
}

// RegisterConsumer adds consumer to the registry and binds its patterns.
// AMQP topic patterns and ours share one syntax.
func (c *RabbitMQConsumer) RegisterConsumer(consumer EventConsumer) {
	c.registry.Register(consumer)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pattern := range consumer.EventTypes() {
		c.patterns = append(c.patterns, pattern)
		if c.channel == nil {
			continue
		}
		if err := c.channel.QueueBind(c.cfg.QueueName, pattern, ExchangeName, false, nil); err != nil {
			c.logger.Error("failed to bind queue", "pattern", pattern, "error", err)
			continue
		}
		c.logger.Debug("bound queue", "queue", c.cfg.QueueName, "pattern", pattern)
	}
}

// Start consumes until ctx is done or Close is called. It returns nil after
// Close and ctx.Err() on cancellation.
func (c *RabbitMQConsumer) Start(parent context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("rabbitmq: consumer already running")
	}
	ctx, cancel := context.WithCancel(parent)
	c.running, c.cancel = true, cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return parent.Err()
		}
		c.logger.WarnContext(ctx, "consumer lost connection, reconnecting", "error", err)
		if err := c.reconnect(ctx); err != nil {
			return err
		}
		c.logger.InfoContext(ctx, "consumer reconnected", "queue", c.cfg.QueueName)
	}
}

func (c *RabbitMQConsumer) reconnect(ctx context.Context) error {
	c.mu.Lock()
	_ = closeAll(c.conn, c.channel)
	c.mu.Unlock()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = c.cfg.MaxReconnectInterval
	policy.MaxElapsedTime = 0

	return backoff.RetryNotify(c.connect, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "reconnect failed", "error", err, "retry_in", wait)
	})
}

func (c *RabbitMQConsumer) consume(ctx context.Context) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		return errDeliveriesClosed
	}

	deliveries, err := ch.ConsumeWithContext(ctx, c.cfg.QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.cfg.QueueName, err)
	}
	c.logger.InfoContext(ctx, "consuming events", "queue", c.cfg.QueueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.handle(ctx, d)
		}
	}
}

func (c *RabbitMQConsumer) handle(ctx context.Context, d amqp.Delivery) {
	event, err := Decode(d.Body, d.RoutingKey)
	if err != nil {
		c.logger.ErrorContext(ctx, "rejecting undecodable event", "routing_key", d.RoutingKey, "error", err)
		c.settle(ctx, d.Reject(false))
		return
	}

	start := time.Now()
	if err := c.registry.Dispatch(ctx, event); err != nil {
		requeue := !d.Redelivered
		c.logger.ErrorContext(ctx, "event handling failed",
			"routing_key", event.RoutingKey,
			"event_id", event.EventID,
			"requeue", requeue,
			"error", err,
		)
		c.settle(ctx, d.Nack(false, requeue))
		return
	}
	c.logger.DebugContext(ctx, "event handled",
		"routing_key", event.RoutingKey,
		"event_id", event.EventID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	c.settle(ctx, d.Ack(false))
}

func (c *RabbitMQConsumer) settle(ctx context.Context, err error) {
	if err != nil {
		c.logger.WarnContext(ctx, "failed to settle delivery", "error", err)
	}
}

// Close stops Start and closes the connection. Calling it twice is safe.
func (c *RabbitMQConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	err := closeAll(c.conn, c.channel)
	c.conn, c.channel = nil, nil
	return err
}
