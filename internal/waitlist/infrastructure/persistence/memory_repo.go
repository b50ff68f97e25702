package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/felixgeelhaar/cohort/internal/waitlist/domain"
	"github.com/google/uuid"
)

// InMemoryRosterRepository keeps rosters in memory.
type InMemoryRosterRepository struct {
	mu      sync.RWMutex
	rosters map[uuid.UUID]*domain.Roster
}

// NewInMemoryRosterRepository creates an empty roster repository.
func NewInMemoryRosterRepository() *InMemoryRosterRepository {
	return &InMemoryRosterRepository{rosters: make(map[uuid.UUID]*domain.Roster)}
}

func (r *InMemoryRosterRepository) Save(ctx context.Context, roster *domain.Roster) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rosters[roster.SessionID()] = roster.Clone()
	return nil
}

func (r *InMemoryRosterRepository) FindBySession(ctx context.Context, sessionID uuid.UUID) (*domain.Roster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roster, ok := r.rosters[sessionID]
	if !ok {
		return nil, nil
	}
	return roster.Clone(), nil
}

func (r *InMemoryRosterRepository) SessionsWithWaiting(ctx context.Context) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []uuid.UUID
	for id, roster := range r.rosters {
		if roster.WaitlistedCount() > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}
