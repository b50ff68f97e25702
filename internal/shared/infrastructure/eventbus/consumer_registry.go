package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

type registration struct {
	pattern  string
	words    []string
	consumer EventConsumer
}

// ConsumerRegistry routes events to consumers by topic pattern. Patterns
// follow AMQP topic rules: dot separated words, * matches exactly one word
// and # matches zero or more. Consumers run in registration order.
type ConsumerRegistry struct {
	mu     sync.RWMutex
	routes []registration
	logger *slog.Logger
}

func NewConsumerRegistry(logger *slog.Logger) *ConsumerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerRegistry{logger: logger}
}

// Register adds consumer under each of its patterns.
func (r *ConsumerRegistry) Register(consumer EventConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pattern := range consumer.EventTypes() {
		r.routes = append(r.routes, registration{
			pattern:  pattern,
			words:    strings.Split(pattern, "."),
			consumer: consumer,
		})
		r.logger.Debug("registered consumer", "pattern", pattern)
	}
}

// GetConsumers returns the consumers matching routingKey, each once, in
// registration order.
func (r *ConsumerRegistry) GetConsumers(routingKey string) []EventConsumer {
	key := strings.Split(routingKey, ".")

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []EventConsumer
	seen := make(map[EventConsumer]struct{})
	for _, route := range r.routes {
		if _, dup := seen[route.consumer]; dup || !matchWords(route.words, key) {
			continue
		}
		seen[route.consumer] = struct{}{}
		out = append(out, route.consumer)
	}
	return out
}

// Patterns returns the distinct registered patterns.
func (r *ConsumerRegistry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.routes))
	var out []string
	for _, route := range r.routes {
		if _, ok := seen[route.pattern]; !ok {
			seen[route.pattern] = struct{}{}
			out = append(out, route.pattern)
		}
	}
	return out
}

// ConsumerCount returns the number of pattern registrations.
func (r *ConsumerRegistry) ConsumerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// Dispatch hands event to every matching consumer. A failing consumer does
// not stop the others; all failures are joined.
func (r *ConsumerRegistry) Dispatch(ctx context.Context, event *ConsumedEvent) error {
	var errs []error
	for _, consumer := range r.GetConsumers(event.RoutingKey) {
		if err := consumer.Handle(ctx, event); err != nil {
			r.logger.ErrorContext(ctx, "consumer failed",
				"routing_key", event.RoutingKey,
				"event_id", event.EventID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MatchRoutingKey reports whether key matches the topic pattern.
func MatchRoutingKey(pattern, key string) bool {
	return pattern == key || matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pattern, key []string) bool {
	for i, word := range pattern {
		switch word {
		case "#":
			rest := pattern[i+1:]
			if len(rest) == 0 {
				return true
			}
			for skip := 0; skip <= len(key); skip++ {
				if matchWords(rest, key[skip:]) {
					return true
				}
			}
			return false
		case "*":
			if len(key) == 0 {
				return false
			}
		default:
			if len(key) == 0 || key[0] != word {
				return false
			}
		}
		key = key[1:]
	}
	return len(key) == 0
}
