package application

import "context"

// UnitOfWork scopes a group of writes. Begin returns the context the writes
// must run with; Commit and Rollback take that same context.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// WithUnitOfWork runs fn inside uow. An error or a panic from fn rolls the
// work back; the panic is re-raised afterwards.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn func(ctx context.Context) error) error {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}
	done := false
	defer func() {
		if !done {
			_ = uow.Rollback(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		done = true
		_ = uow.Rollback(txCtx)
		return err
	}
	done = true
	return uow.Commit(txCtx)
}

// NoopUnitOfWork backs the in-memory repositories, whose writes are applied
// one at a time.
type NoopUnitOfWork struct{}

func (NoopUnitOfWork) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (NoopUnitOfWork) Commit(context.Context) error                       { return nil }
func (NoopUnitOfWork) Rollback(context.Context) error                     { return nil }
