// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retention evicts finished research sessions after a bounded
// audit window.
//
// # Description
//
// Finished sessions stay queryable for a retention window so callers can
// fetch results and operators can audit runs. The sweeper removes
// terminal sessions whose completion time is older than the window,
// keeping process memory bounded over long uptimes. Non-terminal
// sessions are never touched.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Retention Sweeper
// =============================================================================

// Evictor is the registry surface the sweeper needs.
type Evictor interface {
	// EvictTerminalBefore removes terminal sessions completed before the
	// cutoff and returns how many were removed.
	EvictTerminalBefore(cutoff time.Time) int
}

// Config holds configuration for the retention sweeper.
//
// # Fields
//
//   - Interval: How often to run eviction cycles. Default: 10 minutes.
//   - Window: How long terminal sessions remain queryable. Default: 24 hours.
type Config struct {
	Interval time.Duration
	Window   time.Duration
}

// DefaultConfig returns production-ready sweeper defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 10 * time.Minute,
		Window:   24 * time.Hour,
	}
}

// Sweeper periodically evicts expired terminal sessions.
//
// # Description
//
// Manages the lifecycle of a background goroutine that runs eviction at
// a fixed interval. Uses the ticker + done channel pattern for graceful
// shutdown.
//
// # Thread Safety
//
// All public methods are thread-safe; a mutex protects the running state.
type Sweeper struct {
	evictor Evictor
	config  Config
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSweeper creates a retention sweeper over the given registry surface.
//
// # Inputs
//
//   - evictor: The session registry (or any Evictor).
//   - config: Sweeper configuration. Zero values use defaults.
func NewSweeper(evictor Evictor, config Config) *Sweeper {
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	return &Sweeper{
		evictor: evictor,
		config:  config,
		done:    make(chan struct{}),
	}
}

// Start begins the background eviction loop.
//
// # Description
//
// Starts a goroutine that evicts at the configured interval until Stop
// is called or the context is cancelled.
//
// # Outputs
//
//   - error: Non-nil if the sweeper is already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("retention sweeper is already running")
	}
	s.running = true
	s.done = make(chan struct{}) // Reset done channel for potential restart
	s.mu.Unlock()

	slog.Info("Retention sweeper starting",
		"interval", s.config.Interval.String(),
		"window", s.config.Window.String(),
	)

	go s.runLoop(ctx)
	return nil
}

// Stop gracefully stops the sweeper. Safe to call multiple times.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil // Already stopped
	}

	slog.Info("Retention sweeper stopping")
	close(s.done)
	s.running = false
	return nil
}

// RunNow triggers an immediate eviction cycle and returns the eviction
// count. Useful for manual invocation or testing.
func (s *Sweeper) RunNow() int {
	return s.evict()
}

// runLoop runs eviction cycles at the configured interval until stopped.
func (s *Sweeper) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Retention sweeper stopped (context cancelled)")
			return
		case <-s.done:
			slog.Info("Retention sweeper stopped (stop requested)")
			return
		case <-ticker.C:
			s.evict()
		}
	}
}

// evict runs a single eviction cycle.
func (s *Sweeper) evict() int {
	cutoff := time.Now().Add(-s.config.Window)
	evicted := s.evictor.EvictTerminalBefore(cutoff)
	if evicted > 0 {
		slog.Info("Retention sweep completed",
			"evicted", evicted, "cutoff", cutoff.Format(time.RFC3339))
	} else {
		slog.Debug("Retention sweep completed (no expired sessions)")
	}
	return evicted
}
