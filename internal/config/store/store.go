// Package store provides the persisted configuration store: a flat namespace
// of named JSON-serializable values (settings, grid data, category names,
// category customizations) backed by SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voiceboard-ai/voiceboard/internal/config"
)

const defaultBusyTimeout = 5 * time.Second

// Well-known value names. Callers may use arbitrary names; these are the
// ones the rest of the system reads and the backup codec exports.
const (
	KeySettings       = "settings"
	KeyGridData       = "gridData"
	KeyCategoryNames  = "categoryNames"
	KeyCustomizations = "categoryCustomizations"
)

// Options describes parameters for opening a configuration store.
type Options struct {
	DBPath string // Optional override for config.db path (primarily for tests)
}

// Store provides access to the configuration database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NotFoundError indicates a requested config value does not exist.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("config value %s not found", e.Name)
}

// IsNotFound returns true when err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// Open initialises the configuration store.
func Open(opts Options) (*Store, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		paths, err := config.EnsureDirs()
		if err != nil {
			return nil, fmt.Errorf("config: ensure directories: %w", err)
		}
		dbPath = paths.ConfigDB
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("config: open sqlite store: %w", err)
	}

	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path the store was opened with.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("config: rollback failed after %v: %w", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}
