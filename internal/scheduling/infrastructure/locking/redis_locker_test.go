package locking

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
)

func newTestLocker(t *testing.T) *RedisLocker {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return NewRedisLocker(client, Config{Prefix: "cohort:test:" + uuid.NewString() + ":", TTL: 5 * time.Second}, nil)
}

func TestRedisLocker_Exclusive(t *testing.T) {
	locker := newTestLocker(t)
	key := services.SessionKey(uuid.New())

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestRedisLocker_TimeoutIsConflict(t *testing.T) {
	locker := newTestLocker(t)
	key := services.ResourceKey(uuid.New())

	unlock, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, key)
	require.Error(t, err)
	assert.True(t, sharedDomain.IsKind(err, sharedDomain.KindConflict))
}

func TestRedisLocker_ReleaseKeepsForeignToken(t *testing.T) {
	locker := newTestLocker(t)
	key := services.InstructorKey(uuid.New())

	unlock, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)
	// Simulate expiry and takeover by another holder.
	require.NoError(t, locker.client.Set(context.Background(), locker.config.Prefix+key, "other", time.Minute).Err())
	unlock()

	val, err := locker.client.Get(context.Background(), locker.config.Prefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, "other", val)
}
