package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cohort/internal/shared/domain"
)

type room struct {
	domain.BaseAggregateRoot
}

type roomRenamed struct {
	domain.BaseEvent
}

func renamed(id uuid.UUID) roomRenamed {
	return roomRenamed{BaseEvent: domain.NewBaseEvent(id, "Resource", "scheduling.resource.updated")}
}

func TestNewBaseEntityAt_StampsUTC(t *testing.T) {
	id := uuid.New()
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.FixedZone("CET", 3600))

	e := domain.NewBaseEntityAt(id, at)

	assert.Equal(t, id, e.ID())
	assert.Equal(t, time.UTC, e.CreatedAt().Location())
	assert.True(t, e.CreatedAt().Equal(at))
	assert.Equal(t, e.CreatedAt(), e.UpdatedAt())
}

func TestBaseEntity_TouchAt(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	e := domain.NewBaseEntityAt(uuid.New(), at)

	e.TouchAt(at.Add(time.Hour))

	assert.Equal(t, at, e.CreatedAt())
	assert.Equal(t, at.Add(time.Hour), e.UpdatedAt())
}

func TestBaseAggregateRoot_PendingEvents(t *testing.T) {
	r := &room{BaseAggregateRoot: domain.NewBaseAggregateRoot()}
	require.Empty(t, r.DomainEvents())

	r.AddDomainEvent(renamed(r.ID()))
	r.AddDomainEvent(renamed(r.ID()))
	require.Len(t, r.DomainEvents(), 2)

	pulled := r.PullDomainEvents()
	assert.Len(t, pulled, 2)
	assert.Empty(t, r.DomainEvents())
	for _, event := range pulled {
		assert.Equal(t, r.ID(), event.AggregateID())
	}

	r.AddDomainEvent(renamed(r.ID()))
	r.ClearDomainEvents()
	assert.Empty(t, r.DomainEvents())
}

func TestBaseAggregateRoot_VersionCountsEvents(t *testing.T) {
	entity := domain.RehydrateBaseEntity(uuid.New(), time.Now(), time.Now())
	r := &room{BaseAggregateRoot: domain.RehydrateBaseAggregateRoot(entity, 3)}
	assert.Equal(t, 3, r.Version())
	assert.Empty(t, r.DomainEvents())

	r.AddDomainEvent(renamed(r.ID()))
	r.AddDomainEvent(renamed(r.ID()))

	assert.Equal(t, 5, r.Version())
}

func TestNewBaseAggregateRootWithID(t *testing.T) {
	id := uuid.New()
	r := domain.NewBaseAggregateRootWithID(id)

	assert.Equal(t, id, r.ID())
	assert.Zero(t, r.Version())
}

func TestBaseEvent(t *testing.T) {
	aggregateID := uuid.New()
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	event := domain.NewBaseEventAt(aggregateID, "Session", "scheduling.session.scheduled", at)
	metadata := domain.EventMetadata{CorrelationID: uuid.New(), CausationID: uuid.New(), ActorID: uuid.New()}
	event.SetMetadata(metadata)

	assert.NotEqual(t, uuid.Nil, event.EventID())
	assert.Equal(t, aggregateID, event.AggregateID())
	assert.Equal(t, "Session", event.AggregateType())
	assert.Equal(t, "scheduling.session.scheduled", event.RoutingKey())
	assert.Equal(t, at, event.OccurredAt())
	assert.Equal(t, metadata, event.Metadata())
}
