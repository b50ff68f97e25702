package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Driver names a storage backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) String() string { return string(d) }

// Valid reports whether d is a backend this package knows about.
func (d Driver) Valid() bool {
	return d == DriverPostgres || d == DriverSQLite
}

// Config selects and configures a backend.
type Config struct {
	Driver Driver
	// URL is the PostgreSQL connection string.
	URL string
	// SQLitePath is the database file. Empty means DefaultSQLitePath.
	SQLitePath string
	// MaxConns caps the PostgreSQL pool. Zero keeps the pgx default.
	MaxConns int
}

// Opener opens a Connection for one driver.
type Opener func(ctx context.Context, cfg Config) (Connection, error)

var (
	openersMu sync.RWMutex
	openers   = make(map[Driver]Opener)
)

// Register makes a driver available to NewConnection. Driver packages call
// it from init, so a binary only links the backends it imports.
func Register(d Driver, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[d] = open
}

// NewConnection opens a connection for cfg.Driver.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	if !cfg.Driver.Valid() {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	openersMu.RLock()
	open, ok := openers[cfg.Driver]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("database driver %s is not linked into this binary", cfg.Driver)
	}
	return open(ctx, cfg)
}

// DefaultSQLitePath is ~/.cohort/cohort.db, or ./.cohort/cohort.db when
// there is no home directory.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cohort", "cohort.db")
}

// EnsureDirectory creates the parent directory of path.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
