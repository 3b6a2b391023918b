// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the research service.
//
// This file contains the core research entities: Source, Step, Session,
// their status enums, and the read-only snapshot types served to clients.
package datatypes

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Enums
// =============================================================================

// StepType identifies the kind of work a research step performs.
//
// The catalog is fixed: a plan is built from these six types and only
// Validation steps are ever added at runtime by adaptive planning.
type StepType string

const (
	StepTypeInitialAnalysis  StepType = "initial_analysis"
	StepTypeContextGathering StepType = "context_gathering"
	StepTypeDeepAnalysis     StepType = "deep_analysis"
	StepTypeSynthesis        StepType = "synthesis"
	StepTypeValidation       StepType = "validation"
	StepTypeFinalSummary     StepType = "final_summary"
)

// StepCatalog is the canonical planning order of step types.
var StepCatalog = []StepType{
	StepTypeInitialAnalysis,
	StepTypeContextGathering,
	StepTypeDeepAnalysis,
	StepTypeSynthesis,
	StepTypeValidation,
	StepTypeFinalSummary,
}

// Title returns a human-readable title for the step type.
func (t StepType) Title() string {
	switch t {
	case StepTypeInitialAnalysis:
		return "Initial Analysis"
	case StepTypeContextGathering:
		return "Context Gathering"
	case StepTypeDeepAnalysis:
		return "Deep Analysis"
	case StepTypeSynthesis:
		return "Synthesis"
	case StepTypeValidation:
		return "Validation"
	case StepTypeFinalSummary:
		return "Final Summary"
	default:
		return string(t)
	}
}

// UsesSearch reports whether steps of this type query the search collaborator.
func (t StepType) UsesSearch() bool {
	return t == StepTypeContextGathering || t == StepTypeDeepAnalysis
}

// StepStatus is the lifecycle state of a single step.
//
// Transitions: Pending -> Running -> {Completed, Failed}. Skipped is
// reserved for future use and never reached in the canonical flow.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// IsTerminal reports whether the step has finished (completed or failed).
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed
}

// SessionStatus is the lifecycle state of a research session.
//
// Transitions: Created -> InProgress -> {Completed, Failed, Cancelled}.
// Status never re-enters a non-terminal state after reaching a terminal one.
type SessionStatus string

const (
	SessionStatusCreated    SessionStatus = "created"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusFailed     SessionStatus = "failed"
	SessionStatusCancelled  SessionStatus = "cancelled"
)

// IsTerminal reports whether the session has reached a final state.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed ||
		s == SessionStatusCancelled
}

// =============================================================================
// Source
// =============================================================================

// Source is one retrieved evidence snippet attached to a step.
//
// # Description
//
// Sources are value objects owned by the step that produced them. They are
// private copies made from search collaborator results and are immutable
// once created.
//
// # Fields
//
//   - Title: Short title of the retrieved document.
//   - Content: Content snippet used for context building.
//   - Origin: Identifier of where the snippet came from (path, URL, class).
//   - Score: Relevance score in [0, 1].
type Source struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Origin  string  `json:"origin"`
	Score   float64 `json:"score"`
}

// =============================================================================
// Step
// =============================================================================

// Step is one unit of work within a research session.
//
// # Description
//
// A step moves Pending -> Running -> {Completed, Failed}. Once terminal,
// its fields are immutable. Confidence is always within [0, 1] and
// CompletedAt is set if and only if the step is terminal.
//
// # Thread Safety
//
// Step is NOT safe for concurrent use on its own. All mutation and reads of
// a session-owned step go through the owning Session's methods, which hold
// the session lock.
type Step struct {
	ID                  string     `json:"id"`
	Type                StepType   `json:"type"`
	Status              StepStatus `json:"status"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Query               string     `json:"query"`
	Result              string     `json:"result,omitempty"`
	Sources             []Source   `json:"sources,omitempty"`
	Confidence          float64    `json:"confidence"`
	DurationSeconds     float64    `json:"duration_seconds"`
	CreatedAt           time.Time  `json:"created_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	ErrorMessage        string     `json:"error_message,omitempty"`
	NextStepSuggestions []string   `json:"next_step_suggestions,omitempty"`
}

// NewStep creates a pending step of the given type carrying the query.
func NewStep(stepType StepType, query, description string) *Step {
	return &Step{
		ID:          uuid.New().String(),
		Type:        stepType,
		Status:      StepStatusPending,
		Title:       stepType.Title(),
		Description: description,
		Query:       query,
		CreatedAt:   time.Now(),
	}
}

// snapshotLocked returns a deep copy of the step. The owning session's
// lock must be held.
func (s *Step) snapshotLocked() Step {
	out := *s
	if s.Sources != nil {
		out.Sources = make([]Source, len(s.Sources))
		copy(out.Sources, s.Sources)
	}
	if s.NextStepSuggestions != nil {
		out.NextStepSuggestions = make([]string, len(s.NextStepSuggestions))
		copy(out.NextStepSuggestions, s.NextStepSuggestions)
	}
	if s.CompletedAt != nil {
		completed := *s.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}

// =============================================================================
// Session
// =============================================================================

// Session is one research request's full lifecycle.
//
// # Description
//
// A session owns its ordered list of steps exclusively; steps are never
// shared between sessions and their sources are private copies. The engine
// mutates the session in place as steps run; clients only ever see
// snapshots.
//
// # Invariants
//
//   - 0 <= CurrentStepIndex <= len(Steps)
//   - Status only moves forward (Created -> InProgress -> terminal)
//   - OverallConfidence is within [0, 1]
//
// # Thread Safety
//
// Session is safe for concurrent use. The executing caller mutates it via
// the exported mutator methods while status/cancel callers read snapshots;
// all paths go through the internal mutex.
type Session struct {
	mu sync.RWMutex

	ID                string            `json:"id"`
	UserID            string            `json:"user_id"`
	Query             string            `json:"query"`
	Goal              string            `json:"goal"`
	Status            SessionStatus     `json:"status"`
	Steps             []*Step           `json:"steps"`
	CurrentStepIndex  int               `json:"current_step_index"`
	MaxSteps          int               `json:"max_steps"`
	FinalResult       string            `json:"final_result,omitempty"`
	TotalSources      int               `json:"total_sources"`
	OverallConfidence float64           `json:"overall_confidence"`
	DurationSeconds   float64           `json:"duration_seconds"`
	CreatedAt         time.Time         `json:"created_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// NewSession creates a session in the Created state.
func NewSession(query, userID string, maxSteps int) *Session {
	return &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Query:     query,
		Status:    SessionStatusCreated,
		MaxSteps:  maxSteps,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]string),
	}
}

// SetGoal records the extracted research goal.
func (s *Session) SetGoal(goal string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Goal = goal
}

// BeginExecution transitions the session from Created to InProgress.
//
// Returns an error if the session is already terminal or already running,
// keeping the state machine monotone.
func (s *Session) BeginExecution() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status.IsTerminal() {
		return fmt.Errorf("session %s already %s", s.ID, s.Status)
	}
	if s.Status == SessionStatusInProgress {
		return fmt.Errorf("session %s is already executing", s.ID)
	}
	s.Status = SessionStatusInProgress
	return nil
}

// SetPlan installs the planned steps. Any previous plan is replaced; this
// is only called once, before the step loop starts.
func (s *Session) SetPlan(steps []*Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Steps = steps
	s.CurrentStepIndex = 0
}

// PlanLength returns the current number of planned steps.
func (s *Session) PlanLength() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Steps)
}

// StepAt returns the step at the given index, or nil if out of range.
func (s *Session) StepAt(i int) *Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.Steps) {
		return nil
	}
	return s.Steps[i]
}

// CurrentIndex returns the index of the next step to execute.
func (s *Session) CurrentIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentStepIndex
}

// Advance moves the current step index forward by one.
func (s *Session) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CurrentStepIndex < len(s.Steps) {
		s.CurrentStepIndex++
	}
}

// InsertStepAfter splices a step into the plan immediately after index i.
//
// This is the only mechanism by which a plan grows at runtime (adaptive
// validation insertion).
func (s *Session) InsertStepAfter(i int, step *Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.Steps) {
		return
	}
	s.Steps = append(s.Steps, nil)
	copy(s.Steps[i+2:], s.Steps[i+1:])
	s.Steps[i+1] = step
}

// MarkStepRunning transitions a pending step to Running.
func (s *Session) MarkStepRunning(step *Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step.Status = StepStatusRunning
}

// CompleteStep records a successful step outcome and makes the step terminal.
func (s *Session) CompleteStep(step *Step, result string, sources []Source,
	confidence float64, suggestions []string, elapsed time.Duration) {

	s.mu.Lock()
	defer s.mu.Unlock()
	step.Result = result
	step.Sources = sources
	step.Confidence = clamp01(confidence)
	step.NextStepSuggestions = suggestions
	step.DurationSeconds = elapsed.Seconds()
	step.Status = StepStatusCompleted
	now := time.Now()
	step.CompletedAt = &now
}

// FailStep records a failed step outcome and makes the step terminal.
func (s *Session) FailStep(step *Step, stepErr error, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step.ErrorMessage = stepErr.Error()
	step.DurationSeconds = elapsed.Seconds()
	step.Status = StepStatusFailed
	now := time.Now()
	step.CompletedAt = &now
}

// CompletedSteps returns snapshots of all completed steps, in plan order.
func (s *Session) CompletedSteps() []Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Step
	for _, step := range s.Steps {
		if step.Status == StepStatusCompleted {
			out = append(out, step.snapshotLocked())
		}
	}
	return out
}

// Finish transitions the session to a terminal state and stamps timing.
//
// Returns false without changes if the session is already terminal. A
// cancel that raced the executing caller wins and is never overwritten,
// and the caller learns its outcome did not land.
func (s *Session) Finish(status SessionStatus, finalResult string,
	overallConfidence float64, totalSources int) bool {

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status.IsTerminal() {
		return false
	}
	s.Status = status
	s.FinalResult = finalResult
	s.OverallConfidence = clamp01(overallConfidence)
	s.TotalSources = totalSources
	now := time.Now()
	s.CompletedAt = &now
	s.DurationSeconds = now.Sub(s.CreatedAt).Seconds()
	return true
}

// Cancel flags the session as cancelled.
//
// Returns false if the session is already terminal. Cancellation is
// observed by the executing caller between steps; an in-flight step is
// interrupted through its context deadline, not through this flag.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status.IsTerminal() {
		return false
	}
	s.Status = SessionStatusCancelled
	now := time.Now()
	s.CompletedAt = &now
	s.DurationSeconds = now.Sub(s.CreatedAt).Seconds()
	return true
}

// IsCancelled reports whether the session was cancelled.
func (s *Session) IsCancelled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status == SessionStatusCancelled
}

// CurrentStatus returns the session status.
func (s *Session) CurrentStatus() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// StepSnapshot returns a deep copy of the given step.
func (s *Session) StepSnapshot(step *Step) Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return step.snapshotLocked()
}

// =============================================================================
// Snapshots
// =============================================================================

// SessionSnapshot is the read-only view of a session served to clients.
type SessionSnapshot struct {
	ID                string        `json:"session_id"`
	UserID            string        `json:"user_id"`
	Query             string        `json:"query"`
	Goal              string        `json:"goal"`
	Status            SessionStatus `json:"status"`
	CurrentStep       int           `json:"current_step"`
	TotalSteps        int           `json:"total_steps"`
	MaxSteps          int           `json:"max_steps"`
	Progress          float64       `json:"progress"`
	FinalResult       string        `json:"final_result,omitempty"`
	TotalSources      int           `json:"total_sources"`
	OverallConfidence float64       `json:"overall_confidence"`
	DurationSeconds   float64       `json:"duration_seconds"`
	CreatedAt         time.Time     `json:"created_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}

// Snapshot returns a consistent read-only view of the session.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := SessionSnapshot{
		ID:                s.ID,
		UserID:            s.UserID,
		Query:             s.Query,
		Goal:              s.Goal,
		Status:            s.Status,
		CurrentStep:       s.CurrentStepIndex,
		TotalSteps:        len(s.Steps),
		MaxSteps:          s.MaxSteps,
		FinalResult:       s.FinalResult,
		TotalSources:      s.TotalSources,
		OverallConfidence: s.OverallConfidence,
		DurationSeconds:   s.DurationSeconds,
		CreatedAt:         s.CreatedAt,
	}
	if len(s.Steps) > 0 {
		snap.Progress = float64(s.CurrentStepIndex) / float64(len(s.Steps))
	}
	if s.CompletedAt != nil {
		completed := *s.CompletedAt
		snap.CompletedAt = &completed
	}
	if !snap.Status.IsTerminal() {
		snap.DurationSeconds = time.Since(s.CreatedAt).Seconds()
	}
	return snap
}

// clamp01 bounds a confidence value to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
