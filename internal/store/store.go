package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/bookwormapp/bookworm/internal/domain"
)

// BadgerStore is the badger-backed Store.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger

	Users *Entity[domain.User]
	Books *Entity[domain.Book]
}

// Options tune how the badger database is opened.
type Options struct {
	// InMemory keeps everything in memory; path is ignored. Used by tests and tools.
	InMemory bool
	ReadOnly bool
}

// New opens (or creates) the badger database at path.
func New(path string, logger *slog.Logger, opts ...Options) (*BadgerStore, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	bopts := badger.DefaultOptions(path)
	bopts.Logger = nil            // Disable Badger's internal logging
	bopts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	bopts.CompactL0OnClose = true // Compact L0 tables on close for faster startup
	bopts.ReadOnly = o.ReadOnly
	if o.InMemory {
		bopts = bopts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &BadgerStore{db: db, logger: logger}
	s.initUsers()
	s.initBooks()

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path, "in_memory", o.InMemory)
	}

	return s, nil
}

// DB exposes the underlying database for read-only tooling.
func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

// Ping checks that the database accepts reads.
func (s *BadgerStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}

// Close gracefully closes the database connection.
func (s *BadgerStore) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}
