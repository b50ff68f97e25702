package locking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
)

const (
	// DefaultTTL bounds how long a crashed holder can block a key.
	DefaultTTL = 30 * time.Second
	// DefaultRetryDelay is the pause between acquisition attempts.
	DefaultRetryDelay = 25 * time.Millisecond
	// DefaultPrefix namespaces lock keys in a shared Redis.
	DefaultPrefix = "cohort:lock:"
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Config tunes a RedisLocker.
type Config struct {
	Prefix     string
	TTL        time.Duration
	RetryDelay time.Duration
}

// RedisLocker implements services.KeyedLocker across processes with
// SET NX PX and a token checked release.
type RedisLocker struct {
	client redis.UniversalClient
	config Config
	logger *slog.Logger
}

var _ services.KeyedLocker = (*RedisLocker)(nil)

// NewRedisLocker creates a locker on client.
func NewRedisLocker(client redis.UniversalClient, config Config, logger *slog.Logger) *RedisLocker {
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{client: client, config: config, logger: logger.With("component", "redis_locker")}
}

// Lock acquires every key in sorted order, retrying until ctx is done.
// On failure the keys taken so far are released.
func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = services.NormalizeKeys(keys)
	token, err := newToken()
	if err != nil {
		return nil, sharedDomain.NewError(sharedDomain.KindConflict, "lock", err)
	}

	held := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := l.acquire(ctx, l.config.Prefix+key, token); err != nil {
			l.release(held, token)
			return nil, sharedDomain.NewError(sharedDomain.KindConflict, "lock", fmt.Errorf("%s: %w", key, err))
		}
		held = append(held, l.config.Prefix+key)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		l.release(held, token)
	}, nil
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(l.config.RetryDelay)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.config.TTL).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// release runs with a fresh context so a cancelled caller still frees its keys.
func (l *RedisLocker) release(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, l.client, []string{keys[i]}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("lock release failed", "key", keys[i], "error", err)
		}
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
