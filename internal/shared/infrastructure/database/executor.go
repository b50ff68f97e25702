package database

import "context"

// Row is satisfied by pgx.Row and *sql.Row.
type Row interface {
	Scan(dest ...any) error
}

// Rows is a forward-only result cursor.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result reports what an Exec changed.
type Result interface {
	RowsAffected() (int64, error)
}

// Executor runs queries. Repositories take one from ExecutorFromContext and
// never care whether it is a pool or a transaction.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Tx is an open transaction.
type Tx interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Connection is a pooled handle on one backend.
type Connection interface {
	Executor
	BeginTx(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
	Driver() Driver
	Close() error
}
