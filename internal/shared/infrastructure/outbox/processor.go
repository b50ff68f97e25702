package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/eventbus"
)

type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
}

func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     100 * time.Millisecond,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
	}
}

// Stats is a snapshot of what a Processor has done since it was created.
type Stats struct {
	IsRunning       bool
	PublishedCount  uint64
	FailedCount     uint64
	DeadCount       uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
	OldestMessageAt *time.Time
}

// Processor relays staged messages to a Publisher. Publishing is at least
// once: a message is marked only after the publisher returns, so a crash in
// between publishes it again and consumers must tolerate duplicates.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	batchSize int
	interval  time.Duration
	policy    RetryPolicy
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	published, failed, dead atomic.Uint64

	statsMu         sync.Mutex
	lastError       string
	lastErrorAt     *time.Time
	lastProcessedAt *time.Time
	oldest          *time.Time
}

func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultProcessorConfig().BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultProcessorConfig().PollInterval
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		batchSize: config.BatchSize,
		interval:  config.PollInterval,
		policy: RetryPolicy{
			MaxAttempts: config.MaxRetries,
			Base:        config.RetryBackoffBase,
			Max:         config.RetryBackoffMax,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Start launches the polling loop and returns. Starting a running
// processor does nothing.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel, p.done = cancel, make(chan struct{})
	go p.loop(ctx, p.done)

	p.logger.Info("outbox processor started", "poll_interval", p.interval, "batch_size", p.batchSize)
	return nil
}

// Stop ends the loop and waits for the batch in flight.
func (p *Processor) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("outbox processor stopped")
}

func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Processor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error("outbox batch failed", "error", err)
			}
		}
	}
}

// ProcessOnce publishes one batch synchronously. Only a failure to load the
// batch is returned; per message failures are recorded on the message.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	batch, err := p.repo.GetUnpublished(ctx, p.batchSize)
	if err != nil {
		p.noteError(err)
		return err
	}
	p.noteBatch(batch)
	for _, msg := range batch {
		p.relay(ctx, msg)
	}
	return nil
}

func (p *Processor) relay(ctx context.Context, msg *Message) {
	err := p.publish(ctx, msg)
	if err == nil {
		if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
			p.logger.Error("failed to mark outbox message published", "id", msg.ID, "event_id", msg.EventID, "error", err)
			return
		}
		p.published.Add(1)
		return
	}

	attempts := msg.Attempts()
	p.logger.Warn("outbox publish failed",
		"id", msg.ID,
		"event_id", msg.EventID,
		"routing_key", msg.RoutingKey,
		"attempt", attempts,
		"error", err,
	)
	p.noteError(err)

	if p.policy.Exhausted(attempts) {
		p.dead.Add(1)
		if markErr := p.repo.MarkDead(ctx, msg.ID, err.Error()); markErr != nil {
			p.logger.Error("failed to dead-letter outbox message", "id", msg.ID, "error", markErr)
		}
		return
	}
	p.failed.Add(1)
	next := p.now().Add(p.policy.Delay(attempts))
	if markErr := p.repo.MarkFailed(ctx, msg.ID, err.Error(), next); markErr != nil {
		p.logger.Error("failed to record outbox retry", "id", msg.ID, "error", markErr)
	}
}

func (p *Processor) publish(ctx context.Context, msg *Message) error {
	body, err := msg.Body()
	if err != nil {
		return err
	}
	return p.publisher.Publish(ctx, msg.RoutingKey, body)
}

func (p *Processor) GetStats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	s := Stats{
		IsRunning:       p.IsRunning(),
		PublishedCount:  p.published.Load(),
		FailedCount:     p.failed.Load(),
		DeadCount:       p.dead.Load(),
		LastError:       p.lastError,
		LastErrorAt:     p.lastErrorAt,
		LastProcessedAt: p.lastProcessedAt,
		OldestMessageAt: p.oldest,
	}
	if p.oldest != nil && p.lastProcessedAt != nil {
		s.LagSeconds = p.lastProcessedAt.Sub(*p.oldest).Seconds()
	}
	return s
}

func (p *Processor) noteError(err error) {
	now := p.now()
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.lastError, p.lastErrorAt = err.Error(), &now
}

// noteBatch tracks the age of the oldest pending message as the lag.
func (p *Processor) noteBatch(batch []*Message) {
	now := p.now()
	var oldest *time.Time
	for _, msg := range batch {
		if oldest == nil || msg.CreatedAt.Before(*oldest) {
			at := msg.CreatedAt
			oldest = &at
		}
	}
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.lastProcessedAt, p.oldest = &now, oldest
}
