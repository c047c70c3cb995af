// Copyright 2025 Zenith Chromion Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package database provides domain-local persistence: a Badger key-value
// store for protocol state (proposals, tallies, treasury accounts) and a
// SQLite store for append-only audit records. Both stores run in-memory when
// no data directory is configured, which is useful for testing.
package database

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/zenith-chromion/zenith/database/models"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// ErrKeyNotFound is returned by Get when no value exists for the given key
var ErrKeyNotFound = errors.New("key not found")

type Database struct {
	logger  *slog.Logger
	kv      *badger.DB
	audit   *gorm.DB
	dataDir string
}

// New creates a database instance with optional persistence using the
// provided data directory. An empty dataDir selects in-memory storage.
func New(
	logger *slog.Logger,
	dataDir string,
) (*Database, error) {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	kv, err := openKv(logger, dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	audit, err := openAudit(dataDir)
	if err != nil {
		kv.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}
	// Configure tracing for GORM
	if err := audit.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		kv.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to configure audit tracing: %w", err)
	}
	db := &Database{
		logger:  logger,
		kv:      kv,
		audit:   audit,
		dataDir: dataDir,
	}
	for _, model := range models.MigrateModels {
		if err := db.audit.AutoMigrate(model); err != nil {
			db.Close() //nolint:errcheck
			return nil, fmt.Errorf("failed to migrate audit schema: %w", err)
		}
	}
	return db, nil
}

func openKv(logger *slog.Logger, dataDir string) (*badger.DB, error) {
	if dataDir == "" {
		// No dataDir, use in-memory config
		badgerOpts := badger.DefaultOptions("").
			WithLogger(NewBadgerLogger(logger)).
			// The default INFO logging is a bit verbose
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true)
		return badger.Open(badgerOpts)
	}
	// Make sure that we can read data dir, and create if it doesn't exist
	if _, err := os.Stat(dataDir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read data dir: %w", err)
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	badgerOpts := badger.DefaultOptions(filepath.Join(dataDir, "state")).
		WithLogger(NewBadgerLogger(logger)).
		WithLoggingLevel(badger.WARNING)
	return badger.Open(badgerOpts)
}

// auditDbSeq distinguishes in-memory audit stores so that separate Database
// instances within one process do not share tables
var auditDbSeq atomic.Uint64

func openAudit(dataDir string) (*gorm.DB, error) {
	if dataDir == "" {
		// Named in-memory database with cache=shared so that all connections
		// in the pool see the same tables
		dsn := fmt.Sprintf(
			"file:audit%d?mode=memory&cache=shared",
			auditDbSeq.Add(1),
		)
		return gorm.Open(
			sqlite.Open(dsn),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
	}
	auditDbPath := filepath.Join(dataDir, "audit.sqlite")
	// WAL journal mode to avoid writers blocking readers
	connOpts := "_pragma=journal_mode(WAL)"
	return gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?%s", auditDbPath, connOpts)),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
		},
	)
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Set stores a value under the given key
func (d *Database) Set(key []byte, value []byte) error {
	return d.kv.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Get retrieves the value stored under the given key. Returns
// ErrKeyNotFound if no value exists.
func (d *Database) Get(key []byte) ([]byte, error) {
	var value []byte
	err := d.kv.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Delete removes the value stored under the given key, if any
func (d *Database) Delete(key []byte) error {
	return d.kv.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// ForEachPrefix iterates over all keys with the given prefix, invoking the
// callback with each key and value. Returning an error from the callback
// aborts the iteration.
func (d *Database) ForEachPrefix(
	prefix []byte,
	callback func(key []byte, value []byte) error,
) error {
	return d.kv.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := callback(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	kvErr := d.kv.Close()
	err = errors.Join(err, kvErr)
	if sqlDb, sqlErr := d.audit.DB(); sqlErr == nil {
		err = errors.Join(err, sqlDb.Close())
	}
	return err
}
