package app

import (
	schedulingServices "github.com/felixgeelhaar/cohort/internal/scheduling/application/services"
	schedulingPersistence "github.com/felixgeelhaar/cohort/internal/scheduling/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/cohort/internal/shared/application"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/cohort/internal/shared/infrastructure/outbox"
	waitlistDomain "github.com/felixgeelhaar/cohort/internal/waitlist/domain"
	waitlistPersistence "github.com/felixgeelhaar/cohort/internal/waitlist/infrastructure/persistence"
)

// Repositories is every store the engine uses.
type Repositories struct {
	Scheduling schedulingServices.Repositories
	Conflicts  schedulingServices.ConflictLog
	Rosters    waitlistDomain.RosterRepository
	// Outbox stages events until they are relayed outside the locks of
	// the command that raised them.
	Outbox outbox.Repository
}

// RepositoryFactory creates repositories for a connection. A nil
// connection selects the in-memory stores.
type RepositoryFactory struct {
	conn database.Connection
}

// NewRepositoryFactory creates a new repository factory.
func NewRepositoryFactory(conn database.Connection) *RepositoryFactory {
	return &RepositoryFactory{conn: conn}
}

// IsMemory reports whether the factory hands out in-memory stores.
func (f *RepositoryFactory) IsMemory() bool {
	return f.conn == nil
}

// Repositories creates the full set of stores.
func (f *RepositoryFactory) Repositories() Repositories {
	if f.IsMemory() {
		return Repositories{
			Scheduling: schedulingServices.Repositories{
				Resources:   schedulingPersistence.NewInMemoryResourceRepository(),
				Instructors: schedulingPersistence.NewInMemoryInstructorRepository(),
				Sessions:    schedulingPersistence.NewInMemorySessionRepository(),
				Allocations: schedulingPersistence.NewInMemoryAllocationRepository(),
			},
			Conflicts: schedulingServices.NewMemoryConflictLog(),
			Rosters:   waitlistPersistence.NewInMemoryRosterRepository(),
			Outbox:    outbox.NewMemoryRepository(),
		}
	}
	return Repositories{
		Scheduling: schedulingServices.Repositories{
			Resources:   schedulingPersistence.NewSQLResourceRepository(f.conn),
			Instructors: schedulingPersistence.NewSQLInstructorRepository(f.conn),
			Sessions:    schedulingPersistence.NewSQLSessionRepository(f.conn),
			Allocations: schedulingPersistence.NewSQLAllocationRepository(f.conn),
		},
		Conflicts: schedulingPersistence.NewSQLConflictLog(f.conn),
		Rosters:   waitlistPersistence.NewSQLRosterRepository(f.conn),
		Outbox:    outbox.NewSQLRepository(f.conn),
	}
}

// UnitOfWork returns the transaction boundary for the stores.
func (f *RepositoryFactory) UnitOfWork() sharedApplication.UnitOfWork {
	if f.IsMemory() {
		return sharedApplication.NoopUnitOfWork{}
	}
	return database.NewUnitOfWork(f.conn)
}
