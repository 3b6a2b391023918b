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
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianResearch/services/llm"
)

// =============================================================================
// Goal Extractor
// =============================================================================

// GoalExtractor turns a raw query into a short research goal.
//
// # Description
//
// Asks the generation collaborator for a one-sentence research goal. On
// any collaborator failure it degrades to the deterministic fallback
// ("Perform an in-depth analysis of the request: " + query), so goal
// extraction never fails a session.
type GoalExtractor struct {
	generator llm.LLMClient
	timeout   time.Duration
}

// NewGoalExtractor creates an extractor using the given generator. Every
// collaborator call is bounded by timeout.
func NewGoalExtractor(generator llm.LLMClient, timeout time.Duration) *GoalExtractor {
	return &GoalExtractor{generator: generator, timeout: timeout}
}

// Extract returns the research goal for the query.
//
// # Outputs
//
//   - string: The trimmed collaborator response, or the deterministic
//     fallback when generation fails or returns an empty string.
func (g *GoalExtractor) Extract(ctx context.Context, query string) string {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	maxTokens := 128
	goal, err := g.generator.Generate(ctx, query, llm.GenerationParams{
		System:    goalInstruction,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		slog.Warn("Goal extraction failed, using deterministic fallback", "error", err)
		return goalFallbackPrefix + query
	}

	goal = strings.TrimSpace(goal)
	if goal == "" {
		slog.Warn("Goal extraction returned empty response, using deterministic fallback")
		return goalFallbackPrefix + query
	}
	return goal
}
