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
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

// =============================================================================
// Step Planner
// =============================================================================

// StepPlanner produces the ordered step plan for a session.
//
// # Description
//
// The canonical plan instantiates one step per entry of the fixed
// six-type catalog, truncated to min(6, max_steps). On any planning
// failure the deterministic three-step fallback plan is used instead:
// InitialAnalysis, ContextGathering, FinalSummary, each carrying the
// original query. A single step's plan entry never depends on the
// generation collaborator succeeding.
type StepPlanner struct{}

// NewStepPlanner creates a planner.
func NewStepPlanner() *StepPlanner {
	return &StepPlanner{}
}

// Plan returns the ordered step list for the session.
//
// # Outputs
//
//   - []*datatypes.Step: min(6, maxSteps) steps from the catalog, or the
//     three-step fallback plan when planning fails.
//   - error: Non-nil only when even the fallback cannot be built (the
//     context is already cancelled). Such an error is fatal to the
//     session.
func (p *StepPlanner) Plan(ctx context.Context, session *datatypes.Session) ([]*datatypes.Step, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("planning aborted: %w", err)
	}

	maxSteps := session.MaxSteps
	if maxSteps <= 0 {
		return p.FallbackPlan(session), nil
	}

	count := len(datatypes.StepCatalog)
	if maxSteps < count {
		count = maxSteps
	}

	steps := make([]*datatypes.Step, 0, count)
	for _, stepType := range datatypes.StepCatalog[:count] {
		steps = append(steps, datatypes.NewStep(stepType, session.Query,
			fmt.Sprintf("%s for: %s", stepType.Title(), session.Query)))
	}

	slog.Info("Planned research steps",
		"session_id", session.ID, "steps", len(steps), "max_steps", maxSteps)
	return steps, nil
}

// FallbackPlan returns the deterministic three-step plan.
func (p *StepPlanner) FallbackPlan(session *datatypes.Session) []*datatypes.Step {
	slog.Warn("Using fallback research plan", "session_id", session.ID)
	types := []datatypes.StepType{
		datatypes.StepTypeInitialAnalysis,
		datatypes.StepTypeContextGathering,
		datatypes.StepTypeFinalSummary,
	}
	steps := make([]*datatypes.Step, 0, len(types))
	for _, stepType := range types {
		steps = append(steps, datatypes.NewStep(stepType, session.Query,
			fmt.Sprintf("%s for: %s", stepType.Title(), session.Query)))
	}
	return steps
}

// =============================================================================
// Adaptive Planner
// =============================================================================

// AdaptivePlanner grows the plan in response to low-confidence results.
//
// # Description
//
// After a step completes successfully, if it is not the last planned step
// and its confidence fell below the configured threshold, a Validation
// step is spliced into the plan immediately after it, carrying the same
// query and a description naming the step being re-validated. This is the
// only mechanism by which the plan grows at runtime.
type AdaptivePlanner struct {
	minConfidence float64
}

// NewAdaptivePlanner creates an adaptive planner with the given
// confidence threshold.
func NewAdaptivePlanner(minConfidence float64) *AdaptivePlanner {
	return &AdaptivePlanner{minConfidence: minConfidence}
}

// MaybeInsertValidation splices a validation step after index i when the
// just-completed step warrants one. Returns true if a step was inserted.
//
// Failed steps never trigger insertion; neither does the last planned
// step.
func (a *AdaptivePlanner) MaybeInsertValidation(session *datatypes.Session, i int) bool {
	step := session.StepAt(i)
	if step == nil {
		return false
	}
	snap := session.StepSnapshot(step)
	if snap.Status != datatypes.StepStatusCompleted {
		return false
	}
	if i >= session.PlanLength()-1 {
		return false
	}
	if snap.Confidence >= a.minConfidence {
		return false
	}

	validation := datatypes.NewStep(datatypes.StepTypeValidation, snap.Query,
		fmt.Sprintf("Re-validate the results of step %q (confidence %.2f)",
			snap.Title, snap.Confidence))
	session.InsertStepAfter(i, validation)

	slog.Info("Inserted adaptive validation step",
		"session_id", session.ID,
		"after_step", snap.Title,
		"confidence", snap.Confidence,
		"threshold", a.minConfidence)
	return true
}
