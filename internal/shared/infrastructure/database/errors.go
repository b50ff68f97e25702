package database

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrNoTransaction is returned by Commit and Rollback on a context that
	// did not come from Begin.
	ErrNoTransaction = errors.New("database: no transaction in context")
	// ErrRolledBack is returned by the outermost Commit when a nested unit
	// of work rolled back. The transaction has been rolled back.
	ErrRolledBack = errors.New("database: transaction rolled back by a nested unit of work")
	// ErrTxFinished is returned when a unit of work is finished twice.
	ErrTxFinished = errors.New("database: transaction already finished")
)

// IsNoRows reports whether err means a single-row query matched nothing,
// for either driver.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}
