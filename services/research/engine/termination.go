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
	"log/slog"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

// Early-termination thresholds.
const (
	terminationHighConfidence = 0.8
	terminationMinResultLen   = 200
	terminationProgressRatio  = 0.7
	terminationAvgConfidence  = 0.7
)

// =============================================================================
// Termination Policy
// =============================================================================

// TerminationPolicy decides whether to stop the step loop early.
//
// # Description
//
// Evaluated after each successfully completed step. The loop stops before
// exhausting the plan when either:
//   - the just-completed step has confidence > 0.8 and a result longer
//     than 200 characters; or
//   - at least 0.7 x max_steps steps have completed AND their average
//     confidence exceeds 0.7.
//
// The loop always stops unconditionally once the step index reaches
// max_steps; that bound is enforced by the engine loop, not here.
type TerminationPolicy struct{}

// NewTerminationPolicy creates the policy.
func NewTerminationPolicy() *TerminationPolicy {
	return &TerminationPolicy{}
}

// ShouldStop reports whether the session loop should end after the given
// just-completed step.
func (p *TerminationPolicy) ShouldStop(session *datatypes.Session, justCompleted datatypes.Step) bool {
	if justCompleted.Confidence > terminationHighConfidence &&
		len(justCompleted.Result) > terminationMinResultLen {
		slog.Info("Early termination: high-confidence result",
			"session_id", session.ID,
			"step", justCompleted.Title,
			"confidence", justCompleted.Confidence)
		return true
	}

	completed := session.CompletedSteps()
	if len(completed) == 0 {
		return false
	}
	if float64(len(completed)) < terminationProgressRatio*float64(session.MaxSteps) {
		return false
	}

	total := 0.0
	for _, s := range completed {
		total += s.Confidence
	}
	avg := total / float64(len(completed))
	if avg > terminationAvgConfidence {
		slog.Info("Early termination: sufficient progress",
			"session_id", session.ID,
			"completed_steps", len(completed),
			"avg_confidence", avg)
		return true
	}
	return false
}
