// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package timeseries

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for the chain store's BadgerDB arena.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent stores. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Default: 5 minutes. Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	// Default: 0.5.
	GCDiscardRatio float64
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
		GCInterval: 0,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// openDB opens the underlying BadgerDB arena for chain storage.
//
// The returned close function stops garbage collection (if enabled) and
// closes the database. It is safe to call once.
func openDB(cfg Config) (*badger.DB, func() error, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, nil, errors.New("chain store path is required for persistent mode")
		}
		abs, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve chain store path: %w", err)
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create chain store directory: %w", err)
		}
		opts = badger.DefaultOptions(abs)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open chain store: %w", err)
	}

	stopGC := make(chan struct{})
	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 {
			ratio = 0.5
		}
		go func() {
			ticker := time.NewTicker(cfg.GCInterval)
			defer ticker.Stop()
			for {
				select {
				case <-stopGC:
					return
				case <-ticker.C:
					// RunValueLogGC returns ErrNoRewrite when there is
					// nothing to collect; that is not a failure.
					if err := db.RunValueLogGC(ratio); err != nil &&
						!errors.Is(err, badger.ErrNoRewrite) {
						slog.Warn("chain store value log GC failed", "error", err)
					}
				}
			}
		}()
	}

	closeFn := func() error {
		close(stopGC)
		return db.Close()
	}
	return db, closeFn, nil
}
