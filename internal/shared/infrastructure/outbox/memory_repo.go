package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps the outbox in process. It backs the in-memory
// stores so events still leave the locks of the command that raised them
// before a subscriber sees them.
type MemoryRepository struct {
	mu       sync.Mutex
	nextID   int64
	messages []*Message
	seen     map[uuid.UUID]struct{}
	now      func() time.Time
}

// NewMemoryRepository creates an empty in-memory outbox.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{seen: make(map[uuid.UUID]struct{}), now: time.Now}
}

// SaveBatch queues copies of msgs. An event queued before is skipped and
// keeps ID zero.
func (r *MemoryRepository) SaveBatch(_ context.Context, msgs []*Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		if _, dup := r.seen[msg.EventID]; dup {
			continue
		}
		r.nextID++
		msg.ID = r.nextID
		stored := *msg
		r.messages = append(r.messages, &stored)
		r.seen[msg.EventID] = struct{}{}
	}
	return nil
}

// GetUnpublished returns copies of the pending messages, oldest first.
func (r *MemoryRepository) GetUnpublished(_ context.Context, limit int) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var out []*Message
	for _, msg := range r.messages {
		if msg.PublishedAt != nil || msg.DeadLetteredAt != nil {
			continue
		}
		if msg.NextRetryAt != nil && msg.NextRetryAt.After(now) {
			continue
		}
		copied := *msg
		out = append(out, &copied)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkPublished marks a message as successfully published.
func (r *MemoryRepository) MarkPublished(_ context.Context, id int64) error {
	r.update(id, func(msg *Message) {
		at := r.now()
		msg.PublishedAt = &at
	})
	return nil
}

// MarkFailed records a publish failure.
func (r *MemoryRepository) MarkFailed(_ context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	r.update(id, func(msg *Message) {
		msg.RetryCount++
		msg.LastError = &errMsg
		msg.NextRetryAt = &nextRetryAt
	})
	return nil
}

// MarkDead marks a message as dead-lettered.
func (r *MemoryRepository) MarkDead(_ context.Context, id int64, reason string) error {
	r.update(id, func(msg *Message) {
		at := r.now()
		msg.RetryCount++
		msg.DeadLetteredAt = &at
		msg.DeadLetterReason = &reason
	})
	return nil
}

// DeleteOld drops published messages older than retention.
func (r *MemoryRepository) DeleteOld(_ context.Context, retention time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-retention)
	kept := r.messages[:0]
	var deleted int64
	for _, msg := range r.messages {
		if msg.PublishedAt != nil && msg.PublishedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, msg)
	}
	r.messages = kept
	return deleted, nil
}

// Pending counts the messages still waiting to be published.
func (r *MemoryRepository) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, msg := range r.messages {
		if msg.PublishedAt == nil && msg.DeadLetteredAt == nil {
			n++
		}
	}
	return n
}

func (r *MemoryRepository) update(id int64, fn func(*Message)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range r.messages {
		if msg.ID == id {
			fn(msg)
			return
		}
	}
}
