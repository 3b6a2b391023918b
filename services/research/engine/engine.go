// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements the research-session orchestration engine.
//
// # Description
//
// The engine coordinates the full research lifecycle: session creation
// with goal extraction, step planning, the sequential step loop with
// adaptive validation insertion and confidence-based early termination,
// final synthesis, and cancellation/capacity control.
//
// # Concurrency Model
//
// The engine creates no goroutines of its own. Execute runs the step loop
// on the calling goroutine and yields each finished step through the
// caller's callback; steps within one session are strictly sequential
// because each step's context depends on prior results. Different
// sessions are independent and may execute concurrently from different
// caller goroutines; the registry and each session are internally locked.
//
// # Cancellation
//
// Cancel flags the session; the flag is observed between steps. In-flight
// collaborator calls are additionally bounded by the configured step
// timeout and by the caller's context, so a cancelled Execute context
// interrupts the current step rather than waiting for it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianResearch/services/llm"
	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/observability"
	"github.com/AleutianAI/AleutianResearch/services/research/search"
	"go.opentelemetry.io/otel/attribute"
)

// StepCallback receives a snapshot of each step as it finishes. Callbacks
// run on the executing goroutine; a slow callback slows the session, not
// other sessions.
type StepCallback func(step datatypes.Step)

// EngineStatus is the aggregate view returned by the engine-status
// operation: process-wide metrics plus effective configuration.
type EngineStatus struct {
	Metrics        MetricsSnapshot `json:"metrics"`
	ActiveSessions int             `json:"active_sessions"`
	Config         struct {
		MaxConcurrentSessions  int     `json:"max_concurrent_sessions"`
		DefaultMaxSteps        int     `json:"default_max_steps"`
		MinConfidenceThreshold float64 `json:"min_confidence_threshold"`
		StepTimeoutSeconds     float64 `json:"step_timeout_seconds"`
	} `json:"config"`
}

// =============================================================================
// Engine
// =============================================================================

// Engine composes the research components behind the start/execute/
// cancel/status operations.
//
// # Description
//
// Construct one Engine at the composition root and pass it explicitly to
// the transport layer; there is no package-level singleton. All fields
// are read-only after New returns.
//
// # Thread Safety
//
// Safe for concurrent use across sessions. Execute must be called at most
// once per session.
type Engine struct {
	cfg       Config
	registry  *SessionRegistry
	goals     *GoalExtractor
	planner   *StepPlanner
	adaptive  *AdaptivePlanner
	executor  *StepExecutor
	policy    *TerminationPolicy
	synth     *Synthesizer
	metrics   *engineMetrics
}

// New creates a research engine over the given collaborators.
//
// # Inputs
//
//   - generator: Generation collaborator. Required.
//   - searcher: Search collaborator. May be nil; search-backed steps then
//     run with zero sources.
//   - cfg: Engine configuration. Zero values use defaults.
func New(generator llm.LLMClient, searcher search.Searcher, cfg Config) *Engine {
	cfg = applyDefaults(cfg)
	return &Engine{
		cfg:      cfg,
		registry: NewSessionRegistry(cfg.MaxConcurrentSessions),
		goals:    NewGoalExtractor(generator, cfg.StepTimeout),
		planner:  NewStepPlanner(),
		adaptive: NewAdaptivePlanner(cfg.MinConfidenceThreshold),
		executor: NewStepExecutor(generator, searcher, cfg),
		policy:   NewTerminationPolicy(),
		synth:    NewSynthesizer(generator, cfg.StepTimeout),
		metrics:  newEngineMetrics(),
	}
}

// Config returns the effective engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// =============================================================================
// Operations
// =============================================================================

// Start creates a new research session for the query.
//
// # Description
//
// Rejects the call with ErrCapacityExceeded when the configured cap of
// non-terminal sessions is reached. Otherwise extracts the research goal
// (deterministic fallback on collaborator failure), registers the session
// in the Created state and counts it in the engine metrics.
//
// # Inputs
//
//   - ctx: Bounds the goal-extraction collaborator call.
//   - query: The research question. Must be non-empty.
//   - userID: Opaque owner identifier.
//   - maxSteps: Per-session step cap; <= 0 uses the engine default.
func (e *Engine) Start(ctx context.Context, query, userID string, maxSteps int) (datatypes.SessionSnapshot, error) {
	ctx, span := tracer.Start(ctx, "StartSession")
	defer span.End()

	if query == "" {
		return datatypes.SessionSnapshot{}, fmt.Errorf("query must not be empty")
	}
	if maxSteps <= 0 {
		maxSteps = e.cfg.DefaultMaxSteps
	}

	session := datatypes.NewSession(query, userID, maxSteps)
	if err := e.registry.Insert(session); err != nil {
		slog.Warn("Research session rejected",
			"active", e.registry.ActiveCount(), "cap", e.cfg.MaxConcurrentSessions)
		observability.RecordSessionRejected()
		return datatypes.SessionSnapshot{}, err
	}

	session.SetGoal(e.goals.Extract(ctx, query))
	e.metrics.RecordStart()
	observability.RecordSessionStarted()

	span.SetAttributes(attribute.String("research.session_id", session.ID))
	slog.Info("Research session started",
		"session_id", session.ID, "user_id", userID, "max_steps", maxSteps)
	return session.Snapshot(), nil
}

// Execute runs the session's step loop to a terminal state.
//
// # Description
//
// Plans the steps, then repeatedly executes the current step, yields its
// snapshot through onStep, lets adaptive planning splice in validation
// steps and evaluates the termination policy. Per-step failures are
// absorbed: the Failed step is yielded and the loop continues. On normal
// loop exit the synthesizer produces the final result and the session
// ends Completed.
//
// A planning failure (or any error escaping the per-step guard) marks the
// session Failed and is returned as a SessionFatalError. Cancellation via
// Cancel or ctx ends the session Cancelled after the in-flight step
// finishes.
//
// # Outputs
//
//   - datatypes.SessionSnapshot: The terminal session view.
//   - error: ErrSessionNotFound, ErrSessionNotRunnable, or a
//     SessionFatalError.
func (e *Engine) Execute(ctx context.Context, sessionID string, onStep StepCallback) (datatypes.SessionSnapshot, error) {
	ctx, span := tracer.Start(ctx, "ExecuteSession")
	defer span.End()
	span.SetAttributes(attribute.String("research.session_id", sessionID))

	session, ok := e.registry.Get(sessionID)
	if !ok {
		return datatypes.SessionSnapshot{}, ErrSessionNotFound
	}
	if err := session.BeginExecution(); err != nil {
		return session.Snapshot(), fmt.Errorf("%w: %v", ErrSessionNotRunnable, err)
	}

	start := time.Now()
	observability.SetActiveSessions(e.registry.ActiveCount())
	defer func() { observability.SetActiveSessions(e.registry.ActiveCount()) }()

	steps, err := e.planner.Plan(ctx, session)
	if err != nil {
		// Planning failures that even the fallback cannot absorb are
		// fatal to the session.
		fatal := &SessionFatalError{SessionID: session.ID, Err: err}
		session.Finish(datatypes.SessionStatusFailed, "", 0, 0)
		observability.RecordSessionFinished(string(datatypes.SessionStatusFailed))
		slog.Error("Research session failed during planning",
			"session_id", session.ID, "error", err)
		return session.Snapshot(), fatal
	}
	session.SetPlan(steps)

	cancelled := e.runStepLoop(ctx, session, onStep)
	if cancelled {
		// Cancel() already stamped the terminal state and counted the
		// outcome; a context cancellation without an explicit Cancel
		// still must.
		if session.Cancel() {
			observability.RecordSessionFinished(string(datatypes.SessionStatusCancelled))
		}
		slog.Info("Research session cancelled", "session_id", session.ID)
		return session.Snapshot(), nil
	}

	synthesis := e.synth.Synthesize(ctx, session)
	if !session.Finish(datatypes.SessionStatusCompleted, synthesis.FinalResult,
		synthesis.OverallConfidence, synthesis.TotalSources) {
		// A cancel landed while synthesis was in flight; the terminal
		// state and its metric are already recorded.
		slog.Info("Research session cancelled during synthesis",
			"session_id", session.ID)
		return session.Snapshot(), nil
	}

	completedSteps := len(session.CompletedSteps())
	e.metrics.RecordCompletion(completedSteps, time.Since(start))
	observability.RecordSessionFinished(string(datatypes.SessionStatusCompleted))
	observability.ObserveSessionDuration(time.Since(start).Seconds())
	observability.ObserveSessionSteps(completedSteps)

	slog.Info("Research session completed",
		"session_id", session.ID,
		"steps", completedSteps,
		"confidence", synthesis.OverallConfidence,
		"sources", synthesis.TotalSources)
	return session.Snapshot(), nil
}

// runStepLoop drives the sequential step loop. Returns true if the loop
// exited because the session was cancelled.
func (e *Engine) runStepLoop(ctx context.Context, session *datatypes.Session, onStep StepCallback) bool {
	for {
		// Cancellation is observed between steps; the per-call deadline
		// plus ctx handle the in-flight case.
		if session.IsCancelled() {
			return true
		}
		if ctx.Err() != nil {
			return true
		}

		i := session.CurrentIndex()
		if i >= session.MaxSteps || i >= session.PlanLength() {
			return false
		}
		step := session.StepAt(i)
		if step == nil {
			return false
		}

		e.executor.Execute(ctx, session, step)
		session.Advance()

		snap := session.StepSnapshot(step)
		observability.RecordStepFinished(string(snap.Type), string(snap.Status))
		if onStep != nil {
			onStep(snap)
		}

		if snap.Status != datatypes.StepStatusCompleted {
			// A failed step is never fatal; move on to the next one.
			continue
		}

		if e.adaptive.MaybeInsertValidation(session, i) {
			observability.RecordAdaptiveInsertion()
		}
		if e.policy.ShouldStop(session, snap) {
			return false
		}
	}
}

// Cancel flags the session as cancelled.
//
// Returns false for unknown ids and for sessions already terminal. The
// flag takes effect between steps; an in-flight step still finishes (or
// fails) before the executing caller observes the cancellation.
func (e *Engine) Cancel(sessionID string) bool {
	session, ok := e.registry.Get(sessionID)
	if !ok {
		return false
	}
	if !session.Cancel() {
		return false
	}
	observability.RecordSessionFinished(string(datatypes.SessionStatusCancelled))
	slog.Info("Research session cancel requested", "session_id", sessionID)
	return true
}

// Status returns a snapshot of the session, with ok=false when absent.
// Unknown ids are reported through ok, never an error or panic.
func (e *Engine) Status(sessionID string) (datatypes.SessionSnapshot, bool) {
	session, ok := e.registry.Get(sessionID)
	if !ok {
		return datatypes.SessionSnapshot{}, false
	}
	return session.Snapshot(), true
}

// StepsOf returns snapshots of the session's steps, with ok=false when
// the session is absent.
func (e *Engine) StepsOf(sessionID string) ([]datatypes.Step, bool) {
	session, ok := e.registry.Get(sessionID)
	if !ok {
		return nil, false
	}
	out := make([]datatypes.Step, 0, session.PlanLength())
	for i := 0; i < session.PlanLength(); i++ {
		step := session.StepAt(i)
		if step == nil {
			break
		}
		out = append(out, session.StepSnapshot(step))
	}
	return out, true
}

// Sessions returns snapshots of every registered session.
func (e *Engine) Sessions() []datatypes.SessionSnapshot {
	return e.registry.Snapshots()
}

// EngineStatus returns aggregate metrics plus effective configuration.
func (e *Engine) EngineStatus() EngineStatus {
	var status EngineStatus
	status.Metrics = e.metrics.Snapshot()
	status.ActiveSessions = e.registry.ActiveCount()
	status.Config.MaxConcurrentSessions = e.cfg.MaxConcurrentSessions
	status.Config.DefaultMaxSteps = e.cfg.DefaultMaxSteps
	status.Config.MinConfidenceThreshold = e.cfg.MinConfidenceThreshold
	status.Config.StepTimeoutSeconds = e.cfg.StepTimeout.Seconds()
	return status
}

// EvictTerminalBefore removes terminal sessions older than the cutoff
// from the registry. Used by the retention sweeper.
func (e *Engine) EvictTerminalBefore(cutoff time.Time) int {
	return e.registry.EvictTerminalBefore(cutoff)
}

// IsNotFound reports whether err is the unknown-session error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}
