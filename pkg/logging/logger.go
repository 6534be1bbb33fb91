// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for AssetGraph components.
//
// The package builds on Go's standard library slog with two output
// destinations:
//
//   - Default: stderr, human-readable on a terminal and JSON when piped
//     or captured by a container runtime
//   - Optional: a JSON log file per service and day, with automatic
//     directory creation
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("chain append", "metric", name, "position", pos)
//
// # File Logging
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.assetgraph/logs",
//	    Service: "qa",
//	})
//	defer logger.Close()
//
// This creates log files named `{service}_{date}.log` in JSON format.
//
// # Security Considerations
//
// This package does NOT automatically redact sensitive data. Callers
// must ensure API keys and secrets are not logged:
//
//	// BAD: logs the key
//	logger.Info("embeddings", "api_key", key)
//
//	// GOOD: log presence only
//	logger.Info("embeddings", "api_key_present", key != "")
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity. Levels follow the slog convention and
// are ordered Debug < Info < Warn < Error.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config controls logger construction. The zero value logs Info and
// above to stderr only.
type Config struct {
	// Level is the minimum severity to emit.
	Level Level

	// LogDir enables file logging when non-empty. Supports ~ expansion.
	// The directory is created if missing.
	LogDir string

	// Service names the log file: {service}_{date}.log. Default "assetgraph".
	Service string

	// Stderr overrides the console destination, mostly for tests.
	// Left nil, os.Stderr is used.
	Stderr *os.File
}

// =============================================================================
// Logger
// =============================================================================

// Logger wraps slog with optional file output. Safe for concurrent use.
type Logger struct {
	mu      sync.Mutex
	slogger *slog.Logger
	file    *os.File
}

// New builds a logger from config. File logging failures degrade to
// stderr-only with a warning rather than failing construction, so a
// read-only filesystem never takes the process down.
func New(config Config) *Logger {
	stderr := config.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var stderrHandler slog.Handler
	if isatty.IsTerminal(stderr.Fd()) || isatty.IsCygwinTerminal(stderr.Fd()) {
		stderrHandler = slog.NewTextHandler(stderr, opts)
	} else {
		stderrHandler = slog.NewJSONHandler(stderr, opts)
	}

	l := &Logger{}
	handlers := []slog.Handler{stderrHandler}

	if config.LogDir != "" {
		service := config.Service
		if service == "" {
			service = "assetgraph"
		}
		dir := expandPath(config.LogDir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(stderr, "logging: cannot create log dir %s: %v\n", dir, err)
		} else {
			name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
			f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				fmt.Fprintf(stderr, "logging: cannot open log file: %v\n", err)
			} else {
				l.file = f
				handlers = append(handlers, slog.NewJSONHandler(f, opts))
			}
		}
	}

	if len(handlers) == 1 {
		l.slogger = slog.New(handlers[0])
	} else {
		l.slogger = slog.New(&multiHandler{handlers: handlers})
	}
	return l
}

// Default returns a stderr-only logger at Info level.
func Default() *Logger {
	return New(Config{Level: LevelInfo})
}

func (l *Logger) Debug(msg string, args ...any) { l.slogger.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slogger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slogger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slogger.Error(msg, args...) }

// With returns a logger carrying additional context attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slogger: l.slogger.With(args...), file: nil}
}

// Slog exposes the underlying slog.Logger for packages that take one.
func (l *Logger) Slog() *slog.Logger {
	return l.slogger
}

// SetAsDefault installs this logger as the process-wide slog default.
func (l *Logger) SetAsDefault() {
	slog.SetDefault(l.slogger)
}

// Close flushes and closes the log file, if any. The logger remains
// usable for stderr output afterwards.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// =============================================================================
// Multi-Handler
// =============================================================================

// multiHandler fans a record out to every destination. A failing
// destination does not block the others; the first error is returned.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// =============================================================================
// Helpers
// =============================================================================

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
