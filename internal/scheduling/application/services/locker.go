package services

import (
	"context"
	"sort"
	"sync"
	"time"

	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// KeyedLocker grants exclusive sections per key. Lock acquires every key or
// none and returns a function releasing them all.
//
// Callers acquire keys in the hierarchy session, instructor, resource:
// keys passed to one Lock call are sorted, and a later Lock on the same goroutine
// only ever takes keys lower in that hierarchy.
type KeyedLocker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

// SessionKey is the lock key of a session.
func SessionKey(id uuid.UUID) string { return "session:" + id.String() }

// InstructorKey is the lock key of an instructor.
func InstructorKey(id uuid.UUID) string { return "instructor:" + id.String() }

// ResourceKey is the lock key of a resource.
func ResourceKey(id uuid.UUID) string { return "resource:" + id.String() }

// NormalizeKeys sorts and deduplicates lock keys and drops empty ones.
func NormalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

// MemoryLocker is an in-process KeyedLocker. Entries are reference counted
// so the map only holds keys somebody is holding or waiting for.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]*lockEntry)}
}

// Lock blocks until every key is held or ctx is done.
func (l *MemoryLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = NormalizeKeys(keys)
	held := make([]string, 0, len(keys))

	for _, key := range keys {
		entry := l.acquireEntry(key)
		select {
		case entry.ch <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			l.releaseEntry(key, false)
			l.unlock(held)
			return nil, sharedDomain.NewError(sharedDomain.KindConflict, "lock", ctx.Err())
		}
	}

	var once sync.Once
	return func() { once.Do(func() { l.unlock(held) }) }, nil
}

func (l *MemoryLocker) acquireEntry(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *MemoryLocker) releaseEntry(key string, held bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.entries[key]
	if held {
		<-entry.ch
	}
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *MemoryLocker) unlock(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.releaseEntry(keys[i], true)
	}
}

// Held returns the number of keys currently tracked.
func (l *MemoryLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
