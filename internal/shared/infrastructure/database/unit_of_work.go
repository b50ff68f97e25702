package database

import (
	"context"
	"sync"
)

// txState is shared by every unit of work joined to one transaction.
type txState struct {
	tx Tx

	mu           sync.Mutex
	rollbackOnly bool
	finished     bool
}

// txScope is what a context carries: the shared state and whether this
// scope began the transaction.
type txScope struct {
	state *txState
	owner bool
}

type txKey struct{}

func scopeFrom(ctx context.Context) (txScope, bool) {
	scope, ok := ctx.Value(txKey{}).(txScope)
	return scope, ok && scope.state != nil
}

// ExecutorFromContext returns the transaction begun on ctx, or conn.
func ExecutorFromContext(ctx context.Context, conn Connection) Executor {
	if scope, ok := scopeFrom(ctx); ok {
		return scope.state.tx
	}
	return conn
}

// UnitOfWork implements application.UnitOfWork on a Connection.
//
// Begin on a context that already holds a transaction joins it. Only the
// outermost scope commits; a nested Rollback marks the transaction so the
// outer Commit rolls back and reports ErrRolledBack.
type UnitOfWork struct {
	conn Connection
}

// NewUnitOfWork creates a unit of work on conn.
func NewUnitOfWork(conn Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn}
}

func (u *UnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if scope, ok := scopeFrom(ctx); ok {
		return context.WithValue(ctx, txKey{}, txScope{state: scope.state}), nil
	}
	tx, err := u.conn.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return context.WithValue(ctx, txKey{}, txScope{state: &txState{tx: tx}, owner: true}), nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	scope, ok := scopeFrom(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if !scope.owner {
		return nil
	}
	s := scope.state
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return ErrTxFinished
	}
	s.finished = true
	if s.rollbackOnly {
		if err := s.tx.Rollback(ctx); err != nil {
			return err
		}
		return ErrRolledBack
	}
	return s.tx.Commit(ctx)
}

func (u *UnitOfWork) Rollback(ctx context.Context) error {
	scope, ok := scopeFrom(ctx)
	if !ok {
		return ErrNoTransaction
	}
	s := scope.state
	s.mu.Lock()
	defer s.mu.Unlock()
	if !scope.owner {
		s.rollbackOnly = true
		return nil
	}
	if s.finished {
		return ErrTxFinished
	}
	s.finished = true
	return s.tx.Rollback(ctx)
}
