// Package db implements the persistent conversation memory store: threads,
// items, and generation runs, backed by SQLite.
package db

import (
	"database/sql"
	"errors"
)

// ErrDatabaseRequired is returned when a Store is constructed without a connection
var ErrDatabaseRequired = errors.New("database connection is required")

// Store wraps the shared database connection. All queries are hand-written
// SQL against the single serialized connection opened by NewSQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store from an open database connection
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection for sharing with other components
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying connection
func (s *Store) Close() error {
	return s.db.Close()
}
