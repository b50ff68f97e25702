package domain

import (
	"errors"
	"sort"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrInvalidPriority     = errors.New("priority must be normal, high or urgent")
	ErrAlreadyEnrolled     = errors.New("requester is already enrolled")
	ErrAlreadyWaitlisted   = errors.New("requester is already on the waitlist")
	ErrEntryNotFound       = errors.New("waitlist entry not found")
	ErrEntryClosed         = errors.New("waitlist entry is no longer waiting")
	ErrReorderMismatch     = errors.New("new order must list every waiting entry exactly once")
	ErrExpiryNotInFuture   = errors.New("expiry must be in the future")
	ErrEnrollmentNotFound  = errors.New("no active enrollment for participant")
	ErrRequesterIDRequired = errors.New("requester id is required")
)

// Roster holds the waitlist and the enrollments of one session. Waiting
// entries always carry positions 1..N.
type Roster struct {
	sharedDomain.BaseAggregateRoot
	entries     []*Entry
	enrollments []*Enrollment
}

// NewRoster creates an empty roster for a session.
func NewRoster(sessionID uuid.UUID) *Roster {
	return &Roster{BaseAggregateRoot: sharedDomain.NewBaseAggregateRootWithID(sessionID)}
}

// RehydrateRoster recreates a roster from persisted state.
func RehydrateRoster(sessionID uuid.UUID, entries []EntryState, enrollments []EnrollmentState) *Roster {
	r := NewRoster(sessionID)
	for _, s := range entries {
		r.entries = append(r.entries, RehydrateEntry(s))
	}
	for _, s := range enrollments {
		r.enrollments = append(r.enrollments, RehydrateEnrollment(s))
	}
	return r
}

// SessionID returns the session the roster belongs to.
func (r *Roster) SessionID() uuid.UUID { return r.ID() }

// Entries returns every entry, closed ones included.
func (r *Roster) Entries() []*Entry { return r.entries }

// Enrollments returns every enrollment, cancelled ones included.
func (r *Roster) Enrollments() []*Enrollment { return r.enrollments }

// Waiting returns the waiting entries by position.
func (r *Roster) Waiting() []*Entry {
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.IsWaiting() {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].position < out[j].position })
	return out
}

// WaitlistedCount returns the number of waiting entries.
func (r *Roster) WaitlistedCount() int {
	n := 0
	for _, e := range r.entries {
		if e.IsWaiting() {
			n++
		}
	}
	return n
}

// EnrolledCount returns the number of active enrollments.
func (r *Roster) EnrolledCount() int {
	n := 0
	for _, e := range r.enrollments {
		if e.IsActive() {
			n++
		}
	}
	return n
}

// Entry returns the entry with id, or nil.
func (r *Roster) Entry(id uuid.UUID) *Entry {
	for _, e := range r.entries {
		if e.id == id {
			return e
		}
	}
	return nil
}

// EnrollmentOf returns the participant's active enrollment, or nil.
func (r *Roster) EnrollmentOf(participantID uuid.UUID) *Enrollment {
	for _, e := range r.enrollments {
		if e.participantID == participantID && e.IsActive() {
			return e
		}
	}
	return nil
}

// WaitingEntryOf returns the requester's waiting entry, or nil.
func (r *Roster) WaitingEntryOf(requesterID uuid.UUID) *Entry {
	for _, e := range r.entries {
		if e.requesterID == requesterID && e.IsWaiting() {
			return e
		}
	}
	return nil
}

// AddSpec describes a new waitlist entry.
type AddSpec struct {
	RequesterID uuid.UUID
	Priority    Priority
	AutoEnroll  bool
	ExpiresAt   *time.Time
}

// Add appends a requester at the end of the queue.
func (r *Roster) Add(spec AddSpec, now time.Time) (*Entry, error) {
	if spec.RequesterID == uuid.Nil {
		return nil, ErrRequesterIDRequired
	}
	if r.EnrollmentOf(spec.RequesterID) != nil {
		return nil, ErrAlreadyEnrolled
	}
	if r.WaitingEntryOf(spec.RequesterID) != nil {
		return nil, ErrAlreadyWaitlisted
	}
	priority := spec.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.IsValid() {
		return nil, ErrInvalidPriority
	}
	if spec.ExpiresAt != nil && !spec.ExpiresAt.After(now) {
		return nil, ErrExpiryNotInFuture
	}

	entry := &Entry{
		id:          uuid.New(),
		sessionID:   r.ID(),
		requesterID: spec.RequesterID,
		position:    r.WaitlistedCount() + 1,
		priority:    priority,
		status:      EntryAdded,
		autoEnroll:  spec.AutoEnroll,
		addedAt:     now.UTC(),
		expiresAt:   copyTime(spec.ExpiresAt),
	}
	r.entries = append(r.entries, entry)
	r.TouchAt(now)
	r.AddDomainEvent(&EntryAddedEvent{
		BaseEvent:   rosterEvent(r.ID(), RoutingKeyEntryAdded, now),
		SessionID:   r.ID(),
		EntryID:     entry.id,
		RequesterID: entry.requesterID,
		Position:    entry.position,
		Priority:    entry.priority,
		ExpiresAt:   copyTime(entry.expiresAt),
	})
	return entry, nil
}

// Remove takes a waiting entry off the queue and closes the gap.
func (r *Roster) Remove(entryID uuid.UUID, reason string, now time.Time) error {
	entry, err := r.waiting(entryID)
	if err != nil {
		return err
	}
	entry.close(EntryRemoved, now)
	r.AddDomainEvent(&EntryRemovedEvent{
		BaseEvent:   rosterEvent(r.ID(), RoutingKeyEntryRemoved, now),
		SessionID:   r.ID(),
		EntryID:     entry.id,
		RequesterID: entry.requesterID,
		Reason:      strings.TrimSpace(reason),
	})
	r.announce(r.renumber(r.Waiting()), now)
	r.TouchAt(now)
	return nil
}

// Reorder assigns positions in the given order, which must name every
// waiting entry exactly once.
func (r *Roster) Reorder(order []uuid.UUID, now time.Time) error {
	waiting := r.Waiting()
	if len(order) != len(waiting) {
		return ErrReorderMismatch
	}
	byID := make(map[uuid.UUID]*Entry, len(waiting))
	for _, e := range waiting {
		byID[e.id] = e
	}
	ordered := make([]*Entry, 0, len(order))
	for _, id := range order {
		e, ok := byID[id]
		if !ok {
			return ErrReorderMismatch
		}
		delete(byID, id)
		ordered = append(ordered, e)
	}
	r.announce(r.renumber(ordered), now)
	r.TouchAt(now)
	return nil
}

// ReorderByPriority sorts the queue by priority, keeping the current order
// within each priority.
func (r *Roster) ReorderByPriority(now time.Time) {
	waiting := r.Waiting()
	sort.SliceStable(waiting, func(i, j int) bool { return waiting[i].outranks(waiting[j]) })
	r.announce(r.renumber(waiting), now)
	r.TouchAt(now)
}

// ExtendExpiry moves the expiry of a waiting entry.
func (r *Roster) ExtendExpiry(entryID uuid.UUID, until time.Time, now time.Time) (*Entry, error) {
	entry, err := r.waiting(entryID)
	if err != nil {
		return nil, err
	}
	if !until.After(now) {
		return nil, ErrExpiryNotInFuture
	}
	t := until.UTC()
	entry.expiresAt = &t
	r.TouchAt(now)
	return entry, nil
}

// Expire closes every waiting entry whose expiry has passed.
func (r *Roster) Expire(now time.Time) []*Entry {
	var expired []*Entry
	for _, e := range r.Waiting() {
		if !e.IsExpired(now) {
			continue
		}
		e.close(EntryExpired, now)
		expired = append(expired, e)
		r.AddDomainEvent(&EntryExpiredEvent{
			BaseEvent:   rosterEvent(r.ID(), RoutingKeyEntryExpired, now),
			SessionID:   r.ID(),
			EntryID:     e.id,
			RequesterID: e.requesterID,
			ExpiredAt:   now.UTC(),
		})
	}
	if len(expired) > 0 {
		r.renumber(r.Waiting())
		r.TouchAt(now)
	}
	return expired
}

// PromotionOrder returns the auto-enroll entries in promotion order:
// priority descending, then position.
func (r *Roster) PromotionOrder() []*Entry {
	var out []*Entry
	for _, e := range r.Waiting() {
		if e.autoEnroll {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].outranks(out[j]) })
	return out
}

// Promote turns a waiting entry into an enrollment.
func (r *Roster) Promote(entryID uuid.UUID, now time.Time) (*Enrollment, error) {
	entry, err := r.waiting(entryID)
	if err != nil {
		return nil, err
	}
	enrollment, _, err := r.promote(entry, now)
	return enrollment, err
}

func (r *Roster) promote(entry *Entry, now time.Time) (*Enrollment, []move, error) {
	if r.EnrollmentOf(entry.requesterID) != nil {
		return nil, nil, ErrAlreadyEnrolled
	}
	enrollment := newEnrollment(r.ID(), entry.requesterID, SourceWaitlist, now)
	r.enrollments = append(r.enrollments, enrollment)
	entry.close(EntryPromoted, now)
	moved := r.renumber(r.Waiting())
	r.TouchAt(now)
	r.AddDomainEvent(&EntryPromotedEvent{
		BaseEvent:    rosterEvent(r.ID(), RoutingKeyEntryPromoted, now),
		SessionID:    r.ID(),
		EntryID:      entry.id,
		RequesterID:  entry.requesterID,
		EnrollmentID: enrollment.id,
	})
	return enrollment, moved, nil
}

// Enroll seats a participant. A participant already waiting is promoted
// from the waitlist.
func (r *Roster) Enroll(participantID uuid.UUID, now time.Time) (*Enrollment, error) {
	if participantID == uuid.Nil {
		return nil, ErrRequesterIDRequired
	}
	if r.EnrollmentOf(participantID) != nil {
		return nil, ErrAlreadyEnrolled
	}
	if entry := r.WaitingEntryOf(participantID); entry != nil {
		enrollment, moved, err := r.promote(entry, now)
		if err != nil {
			return nil, err
		}
		r.announce(moved, now)
		return enrollment, nil
	}
	enrollment := newEnrollment(r.ID(), participantID, SourceDirect, now)
	r.enrollments = append(r.enrollments, enrollment)
	r.TouchAt(now)
	r.AddDomainEvent(&EnrollmentCreatedEvent{
		BaseEvent:     rosterEvent(r.ID(), RoutingKeyEnrollmentCreated, now),
		SessionID:     r.ID(),
		EnrollmentID:  enrollment.id,
		ParticipantID: participantID,
		Source:        SourceDirect,
	})
	return enrollment, nil
}

// CancelEnrollment frees the participant's seat.
func (r *Roster) CancelEnrollment(participantID uuid.UUID, reason string, now time.Time) (*Enrollment, error) {
	enrollment := r.EnrollmentOf(participantID)
	if enrollment == nil {
		return nil, ErrEnrollmentNotFound
	}
	t := now.UTC()
	enrollment.status = EnrollmentCancelled
	enrollment.cancelledAt = &t
	r.TouchAt(now)
	r.AddDomainEvent(&EnrollmentCancelledEvent{
		BaseEvent:     rosterEvent(r.ID(), RoutingKeyEnrollmentCancelled, now),
		SessionID:     r.ID(),
		EnrollmentID:  enrollment.id,
		ParticipantID: participantID,
		Reason:        strings.TrimSpace(reason),
	})
	return enrollment, nil
}

// NotifyPositions records a position notice for every waiting entry.
func (r *Roster) NotifyPositions(now time.Time) []*Entry {
	waiting := r.Waiting()
	t := now.UTC()
	for _, e := range waiting {
		e.notificationsSent++
		e.lastNotifiedAt = &t
		r.AddDomainEvent(&EntryPositionChangedEvent{
			BaseEvent:   rosterEvent(r.ID(), RoutingKeyEntryPositionChanged, now),
			SessionID:   r.ID(),
			EntryID:     e.id,
			RequesterID: e.requesterID,
			Position:    e.position,
			Waiting:     len(waiting),
		})
	}
	if len(waiting) > 0 {
		r.TouchAt(now)
	}
	return waiting
}

// Clone returns a deep copy without pending domain events.
func (r *Roster) Clone() *Roster {
	c := &Roster{BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(r.BaseEntity, r.Version())}
	for _, e := range r.entries {
		c.entries = append(c.entries, RehydrateEntry(e.State()))
	}
	for _, e := range r.enrollments {
		c.enrollments = append(c.enrollments, RehydrateEnrollment(e.State()))
	}
	return c
}

func (r *Roster) waiting(entryID uuid.UUID) (*Entry, error) {
	entry := r.Entry(entryID)
	if entry == nil {
		return nil, ErrEntryNotFound
	}
	if !entry.IsWaiting() {
		return nil, ErrEntryClosed
	}
	return entry, nil
}

type move struct {
	entry    *Entry
	previous int
}

// renumber assigns positions 1..N in the given order and reports the
// entries whose position changed.
func (r *Roster) renumber(ordered []*Entry) []move {
	var moved []move
	for i, e := range ordered {
		if e.position != i+1 {
			moved = append(moved, move{entry: e, previous: e.position})
			e.position = i + 1
		}
	}
	return moved
}

func (r *Roster) announce(moved []move, now time.Time) {
	waiting := r.WaitlistedCount()
	for _, m := range moved {
		r.AddDomainEvent(&EntryPositionChangedEvent{
			BaseEvent:        rosterEvent(r.ID(), RoutingKeyEntryPositionChanged, now),
			SessionID:        r.ID(),
			EntryID:          m.entry.id,
			RequesterID:      m.entry.requesterID,
			Position:         m.entry.position,
			PreviousPosition: m.previous,
			Waiting:          waiting,
		})
	}
}
