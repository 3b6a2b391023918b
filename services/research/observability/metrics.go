// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the research engine.
//
// # Description
//
// This package implements Prometheus metrics for monitoring research
// session execution. Metrics include:
//   - Session counters (started, rejected, finished by status)
//   - Step counters (by type and status)
//   - Adaptive validation insertions
//   - Session duration and step-count histograms
//   - Active session gauge
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Registration happens at
// package init through promauto against the default registry.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for research metrics
const researchSubsystem = "research"

var (
	// sessionsStartedTotal counts sessions accepted by the engine.
	sessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: researchSubsystem,
		Name:      "sessions_started_total",
		Help:      "Total number of research sessions accepted",
	})

	// sessionsRejectedTotal counts sessions refused at the capacity cap.
	sessionsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: researchSubsystem,
		Name:      "sessions_rejected_total",
		Help:      "Total number of research sessions rejected at capacity",
	})

	// sessionsFinishedTotal counts sessions reaching a terminal status.
	// Labels: status (completed, failed, cancelled)
	sessionsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: researchSubsystem,
		Name:      "sessions_finished_total",
		Help:      "Total number of research sessions finished by terminal status",
	}, []string{"status"})

	// stepsFinishedTotal counts executed steps.
	// Labels: type (initial_analysis, ...), status (completed, failed)
	stepsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: researchSubsystem,
		Name:      "steps_finished_total",
		Help:      "Total number of research steps finished by type and status",
	}, []string{"type", "status"})

	// adaptiveInsertionsTotal counts validation steps spliced into plans.
	adaptiveInsertionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: researchSubsystem,
		Name:      "adaptive_insertions_total",
		Help:      "Total number of validation steps inserted by adaptive planning",
	})

	// sessionDurationSeconds measures wall-clock session execution time.
	sessionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: researchSubsystem,
		Name:      "session_duration_seconds",
		Help:      "Research session execution duration in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// sessionSteps measures completed step counts per session.
	sessionSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: researchSubsystem,
		Name:      "session_steps",
		Help:      "Completed steps per research session",
		Buckets:   []float64{1, 2, 3, 4, 5, 7, 10, 15, 20},
	})

	// activeSessions tracks currently non-terminal sessions.
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: researchSubsystem,
		Name:      "active_sessions",
		Help:      "Number of research sessions not yet in a terminal state",
	})
)

// =============================================================================
// Helper Functions
// =============================================================================

// RecordSessionStarted increments the accepted-sessions counter.
func RecordSessionStarted() {
	sessionsStartedTotal.Inc()
}

// RecordSessionRejected increments the capacity-rejection counter.
func RecordSessionRejected() {
	sessionsRejectedTotal.Inc()
}

// RecordSessionFinished records a session reaching a terminal status.
func RecordSessionFinished(status string) {
	sessionsFinishedTotal.WithLabelValues(status).Inc()
}

// RecordStepFinished records a finished step by type and status.
func RecordStepFinished(stepType, status string) {
	stepsFinishedTotal.WithLabelValues(stepType, status).Inc()
}

// RecordAdaptiveInsertion increments the validation-insertion counter.
func RecordAdaptiveInsertion() {
	adaptiveInsertionsTotal.Inc()
}

// ObserveSessionDuration records the session execution duration.
func ObserveSessionDuration(seconds float64) {
	sessionDurationSeconds.Observe(seconds)
}

// ObserveSessionSteps records the completed step count of a session.
func ObserveSessionSteps(steps int) {
	sessionSteps.Observe(float64(steps))
}

// SetActiveSessions sets the active-session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
