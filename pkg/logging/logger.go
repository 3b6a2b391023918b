// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging configures structured logging for Aleutian services.
//
// This package is built on Go's standard library slog package and sets
// up the process-wide default logger for service binaries:
//
//   - Default: JSON output to stdout (machine-parseable, container-friendly)
//   - Optional: an additional file destination with automatic directory
//     creation, named {service}_{date}.log
//
// # Basic Usage
//
//	closer := logging.Setup(logging.Config{
//	    Level:   logging.LevelInfo,
//	    Service: "research",
//	})
//	defer closer()
//	slog.Info("starting research service", "port", port)
//
// # Log Levels
//
// Four levels are supported, matching slog conventions:
//
//   - Debug: Development troubleshooting, verbose output
//   - Info: Normal operations (request start/end, state changes)
//   - Warn: Recoverable issues (retry attempts, degraded mode)
//   - Error: Operation failures (but system continues)
//
// # Thread Safety
//
// Setup must be called once at startup before concurrent logging begins.
// The configured slog.Logger is thread-safe.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// =============================================================================
// Levels
// =============================================================================

// Level is the minimum severity a record must have to be logged.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a level name ("debug", "info", "warn", "error") to a
// Level. Unknown names fall back to Info.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
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

// Config holds logging configuration options.
//
// # Fields
//
//   - Level: Minimum severity to log. Default: Info.
//   - Service: Service name attached to every record. Default: "aleutian".
//   - LogDir: Optional directory for an additional file destination.
//     Supports ~ expansion. Empty disables file logging.
//   - Text: Use human-readable text output instead of JSON.
type Config struct {
	Level   Level
	Service string
	LogDir  string
	Text    bool
}

// =============================================================================
// Setup
// =============================================================================

// Setup configures the process-wide default slog logger.
//
// # Description
//
// Builds the handler chain from the config, installs it via
// slog.SetDefault, and returns a closer that flushes and closes the log
// file if one was opened. File destinations always use JSON regardless
// of the Text setting.
//
// File-destination failures are not fatal: the service keeps logging to
// stdout and reports the problem there.
func Setup(config Config) func() {
	opts := &slog.HandlerOptions{
		Level: config.Level.toSlogLevel(),
	}

	var stdoutHandler slog.Handler
	if config.Text {
		stdoutHandler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		stdoutHandler = slog.NewJSONHandler(os.Stdout, opts)
	}
	handlers := []slog.Handler{stdoutHandler}

	serviceName := config.Service
	if serviceName == "" {
		serviceName = "aleutian"
	}

	var file *os.File
	if config.LogDir != "" {
		logDir := expandPath(config.LogDir)
		if err := os.MkdirAll(logDir, 0750); err != nil {
			slog.Warn("Failed to create log directory, file logging disabled",
				"log_dir", logDir, "error", err)
		} else {
			filename := fmt.Sprintf("%s_%s.log", serviceName, time.Now().Format("2006-01-02"))
			logPath := filepath.Join(logDir, filename)
			f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
			if err != nil {
				slog.Warn("Failed to open log file, file logging disabled",
					"log_path", logPath, "error", err)
			} else {
				file = f
				handlers = append(handlers, slog.NewJSONHandler(f, opts))
			}
		}
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = &multiHandler{handlers: handlers}
	}
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
	})

	slog.SetDefault(slog.New(handler))

	return func() {
		if file != nil {
			_ = file.Sync()
			_ = file.Close()
		}
	}
}

// =============================================================================
// Multi-destination Handler
// =============================================================================

// multiHandler fans records out to every destination handler.
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
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
