// Package sqlite is a single-file, persistent db.KVStore backed by the pure Go SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/devindrajit1998/ai-novaintel/internal/db"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

var _ db.KVStore = (*Store)(nil)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// Store implements db.KVStore on a single SQLite table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database file. Use ":memory:" for an in-process store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	sdb, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, &db.Error{Op: db.OpOpen, Err: err}
	}

	// One connection: SQLite has a single writer, and ":memory:" databases are per connection.
	sdb.SetMaxOpenConns(1)
	sdb.SetMaxIdleConns(1)
	sdb.SetConnMaxLifetime(0)

	if path != ":memory:" {
		if _, err := sdb.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = sdb.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := sdb.Exec(schema); err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: sdb}, nil
}

// Get returns the stored value or db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return value, nil
}

// Set inserts or replaces the value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}
