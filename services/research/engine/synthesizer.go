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
	"strings"
	"time"

	"github.com/AleutianAI/AleutianResearch/services/llm"
	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

// =============================================================================
// Synthesizer
// =============================================================================

// SynthesisResult is the final outcome of a research session.
type SynthesisResult struct {
	FinalResult       string
	OverallConfidence float64
	TotalSources      int
}

// Synthesizer merges all completed steps into one final answer.
//
// # Description
//
// Builds a synthesis prompt from every completed step's title, result and
// source count and asks the generation collaborator for the final answer.
// On collaborator failure it degrades to a deterministic summary of
// step/source counts; with no completed steps at all it returns a fixed
// "no concrete results" message. Synthesis never fails a session.
type Synthesizer struct {
	generator llm.LLMClient
	timeout   time.Duration
}

// NewSynthesizer creates a synthesizer bounded by timeout per call.
func NewSynthesizer(generator llm.LLMClient, timeout time.Duration) *Synthesizer {
	return &Synthesizer{generator: generator, timeout: timeout}
}

// Synthesize produces the session's final result and aggregate scores.
//
// # Outputs
//
//   - SynthesisResult: Final text, mean confidence of completed steps and
//     the total source count across completed steps.
func (s *Synthesizer) Synthesize(ctx context.Context, session *datatypes.Session) SynthesisResult {
	completed := session.CompletedSteps()
	if len(completed) == 0 {
		return SynthesisResult{FinalResult: noResultsMessage}
	}

	totalSources := 0
	totalConfidence := 0.0
	var b strings.Builder
	fmt.Fprintf(&b, "Research goal: %s\n\nStep findings:\n", session.Goal)
	for _, step := range completed {
		totalSources += len(step.Sources)
		totalConfidence += step.Confidence
		fmt.Fprintf(&b, "## %s\n%s\n\n", step.Title, step.Result)
	}
	fmt.Fprintf(&b, "Sources consulted: %d\n\n", totalSources)
	b.WriteString("Synthesize the step findings above into one final, " +
		"self-contained answer to the research goal.")

	overall := totalConfidence / float64(len(completed))

	synthCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	maxTokens := 2048
	final, err := s.generator.Generate(synthCtx, b.String(), llm.GenerationParams{
		MaxTokens: &maxTokens,
	})
	if err != nil {
		slog.Warn("Synthesis generation failed, using deterministic fallback",
			"session_id", session.ID, "error", err)
		final = fmt.Sprintf(
			"Research completed with %d finished steps drawing on %d sources. "+
				"See the individual step results for details.",
			len(completed), totalSources)
	}

	return SynthesisResult{
		FinalResult:       strings.TrimSpace(final),
		OverallConfidence: overall,
		TotalSources:      totalSources,
	}
}
