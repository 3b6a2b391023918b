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

import (
	"sync"
	"time"
)

// =============================================================================
// Engine Metrics
// =============================================================================

// MetricsSnapshot is the aggregate view returned by EngineStatus.
type MetricsSnapshot struct {
	TotalSessions     int     `json:"total_sessions"`
	CompletedSessions int     `json:"completed_sessions"`
	AverageSteps      float64 `json:"average_steps"`
	AverageDuration   float64 `json:"average_duration_seconds"`
	SuccessRate       float64 `json:"success_rate"`
}

// engineMetrics tracks process-wide aggregate counters.
//
// Updated on session start and on sessions reaching the Completed
// outcome; failed and cancelled sessions count only toward the total.
// All methods are safe for concurrent use.
type engineMetrics struct {
	mu            sync.Mutex
	totalSessions int
	completed     int
	totalSteps    int
	totalDuration time.Duration
}

func newEngineMetrics() *engineMetrics {
	return &engineMetrics{}
}

// RecordStart counts a newly started session.
func (m *engineMetrics) RecordStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalSessions++
}

// RecordCompletion counts a session that reached the Completed outcome.
func (m *engineMetrics) RecordCompletion(steps int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed++
	m.totalSteps += steps
	m.totalDuration += duration
}

// Snapshot returns the current aggregates. SuccessRate is exactly
// completed/total; both averages are over completed sessions only.
func (m *engineMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		TotalSessions:     m.totalSessions,
		CompletedSessions: m.completed,
	}
	if m.completed > 0 {
		snap.AverageSteps = float64(m.totalSteps) / float64(m.completed)
		snap.AverageDuration = m.totalDuration.Seconds() / float64(m.completed)
	}
	if m.totalSessions > 0 {
		snap.SuccessRate = float64(m.completed) / float64(m.totalSessions)
	}
	return snap
}
