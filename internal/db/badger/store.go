// Package badger is an embedded, persistent db.KVStore used as an embedding cache backend.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/db"
)

var _ db.KVStore = (*Store)(nil)

// Config selects where badger keeps its files.
type Config struct {
	Path     string
	InMemory bool
	Logger   *zap.Logger
}

// Store implements db.KVStore on top of BadgerDB.
type Store struct {
	db *badger.DB
}

// zapAdapter routes badger's internal log lines to zap.
type zapAdapter struct {
	logger *zap.SugaredLogger
}

var _ badger.Logger = (*zapAdapter)(nil)

func (a *zapAdapter) Errorf(msg string, items ...any)   { a.logger.Errorf(msg, items...) }
func (a *zapAdapter) Warningf(msg string, items ...any) { a.logger.Warnf(msg, items...) }
func (a *zapAdapter) Infof(msg string, items ...any)    { a.logger.Infof(msg, items...) }
func (a *zapAdapter) Debugf(msg string, items ...any)   { a.logger.Debugf(msg, items...) }

// Open opens (or creates) a badger database.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, &db.Error{Op: db.OpOpen, Err: err}
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Logger = &zapAdapter{logger: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, &db.Error{Op: db.OpOpen, Err: err}
	}
	return &Store{db: bdb}, nil
}

// Get returns a copy of the stored value or db.ErrKeyNotFound.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return out, nil
}

// Set stores value under key in its own transaction.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Ping reports whether the database is still open.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return &db.Error{Op: db.OpPing, Err: db.ErrClosed}
	}
	return nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}
