// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import "time"

// =============================================================================
// Engine Configuration
// =============================================================================

// Config holds research engine configuration.
//
// # Description
//
// Centralizes all tunables for the research engine. Zero values are
// replaced with defaults by applyDefaults() inside New(), so a zero Config
// is always usable.
//
// # Fields
//
//   - MaxConcurrentSessions: Cap on non-terminal sessions. Default: 10.
//   - DefaultMaxSteps: Step cap when the caller does not request one. Default: 7.
//   - MinConfidenceThreshold: Below this, adaptive planning splices a
//     validation step after a completed step. Default: 0.6.
//   - StepTimeout: Deadline wrapped around every collaborator call. An
//     expiring call fails only the current step. Default: 120s.
//   - SearchLimit: Maximum sources requested per search call. Default: 10.
//   - SearchScoreThreshold: Minimum relevance score for retrieved sources.
//     Default: 0.5.
type Config struct {
	MaxConcurrentSessions  int
	DefaultMaxSteps        int
	MinConfidenceThreshold float64
	StepTimeout            time.Duration
	SearchLimit            int
	SearchScoreThreshold   float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentSessions:  10,
		DefaultMaxSteps:        7,
		MinConfidenceThreshold: 0.6,
		StepTimeout:            120 * time.Second,
		SearchLimit:            10,
		SearchScoreThreshold:   0.5,
	}
}

// applyDefaults fills in missing configuration values.
func applyDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.MaxConcurrentSessions <= 0 {
		cfg.MaxConcurrentSessions = defaults.MaxConcurrentSessions
	}
	if cfg.DefaultMaxSteps <= 0 {
		cfg.DefaultMaxSteps = defaults.DefaultMaxSteps
	}
	if cfg.MinConfidenceThreshold <= 0 {
		cfg.MinConfidenceThreshold = defaults.MinConfidenceThreshold
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = defaults.StepTimeout
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = defaults.SearchLimit
	}
	if cfg.SearchScoreThreshold <= 0 {
		cfg.SearchScoreThreshold = defaults.SearchScoreThreshold
	}
	return cfg
}
