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
	"unicode/utf8"

	"github.com/AleutianAI/AleutianResearch/services/llm"
	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/search"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("aleutian.research.engine")

// Context window bounds. Each step sees at most the last few completed
// steps and the top few sources, with result/content prefixes truncated.
const (
	contextPriorSteps   = 3
	contextTopSources   = 3
	contextResultPrefix = 300
	contextSourcePrefix = 200
)

// Confidence scoring weights.
const (
	confidenceBase         = 0.5
	confidenceSourceBonus  = 0.2
	confidenceScoreWeight  = 0.2
	confidenceLengthBonus  = 0.1
	confidenceLengthResult = 500
)

// =============================================================================
// Step Executor
// =============================================================================

// StepExecutor runs a single research step to a terminal status.
//
// # Description
//
// For search-backed step types it queries the search collaborator first
// (failure degrades to zero sources), builds a bounded context window from
// prior completed steps and retrieved sources, calls the generation
// collaborator, computes a confidence score, and gathers next-step
// suggestions. Any failure inside the step is caught once: the step is
// marked Failed with its error message and the session's loop continues.
//
// Every collaborator call is wrapped in the configured step timeout, so a
// hung collaborator fails only the current step.
type StepExecutor struct {
	generator llm.LLMClient
	searcher  search.Searcher
	cfg       Config
}

// NewStepExecutor creates an executor. searcher may be nil; search-backed
// steps then run with zero sources.
func NewStepExecutor(generator llm.LLMClient, searcher search.Searcher, cfg Config) *StepExecutor {
	return &StepExecutor{generator: generator, searcher: searcher, cfg: cfg}
}

// Execute runs one step to completion or failure.
//
// The step ends Completed or Failed; either way CompletedAt and the
// duration are stamped and the session continues with the next step.
func (e *StepExecutor) Execute(ctx context.Context, session *datatypes.Session, step *datatypes.Step) {
	ctx, span := tracer.Start(ctx, "ExecuteStep")
	defer span.End()
	span.SetAttributes(
		attribute.String("research.session_id", session.ID),
		attribute.String("research.step_type", string(step.Type)),
	)

	start := time.Now()
	session.MarkStepRunning(step)
	slog.Info("Executing research step",
		"session_id", session.ID, "step", step.Title, "type", step.Type)

	result, sources, confidence, suggestions, err := e.runStep(ctx, session, step)
	if err != nil {
		stepErr := &StepExecutionError{
			StepID:   step.ID,
			StepType: string(step.Type),
			Err:      err,
		}
		session.FailStep(step, stepErr, time.Since(start))
		slog.Warn("Research step failed, continuing session",
			"session_id", session.ID, "step", step.Title, "error", err)
		return
	}

	session.CompleteStep(step, result, sources, confidence, suggestions, time.Since(start))
	slog.Info("Research step completed",
		"session_id", session.ID,
		"step", step.Title,
		"confidence", confidence,
		"sources", len(sources))
}

// runStep performs the fallible portion of step execution.
func (e *StepExecutor) runStep(ctx context.Context, session *datatypes.Session,
	step *datatypes.Step) (string, []datatypes.Source, float64, []string, error) {

	// 1. Retrieve sources for search-backed step types. Search failure is
	// non-fatal and degrades to zero sources.
	sources := e.retrieveSources(ctx, step)

	// 2. Build the bounded context window.
	contextWindow := e.buildContext(session, sources)

	// 3. Generate the step result under the step deadline.
	prompt := fmt.Sprintf("%s\n\n%s\n%s", stepInstruction(step.Type), contextWindow, responseRequirements)

	genCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()
	maxTokens := 1024
	result, err := e.generator.Generate(genCtx, prompt, llm.GenerationParams{
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return "", nil, 0, nil, fmt.Errorf("generation failed: %w", err)
	}
	result = strings.TrimSpace(result)

	// 4. Score confidence.
	confidence := scoreConfidence(sources, result)

	// 5. Suggest follow-up steps (best effort, not for the final summary).
	var suggestions []string
	if step.Type != datatypes.StepTypeFinalSummary {
		suggestions = e.suggestNextSteps(ctx, result)
	}

	return result, sources, confidence, suggestions, nil
}

// retrieveSources queries the search collaborator for search-backed step
// types. Failures are logged and degrade to an empty source list; the
// returned sources are private copies owned by the step.
func (e *StepExecutor) retrieveSources(ctx context.Context, step *datatypes.Step) []datatypes.Source {
	if !step.Type.UsesSearch() || e.searcher == nil {
		return nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()

	results, err := e.searcher.Search(searchCtx, step.Query,
		e.cfg.SearchLimit, e.cfg.SearchScoreThreshold)
	if err != nil {
		slog.Warn("Research search failed, continuing without sources",
			"step", step.Title, "error", err)
		return nil
	}

	sources := make([]datatypes.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, datatypes.Source{
			Title:   r.Title,
			Content: r.Content,
			Origin:  r.Origin,
			Score:   r.Score,
		})
	}
	return sources
}

// buildContext assembles the generation context: original query, goal,
// the last few completed steps and the top retrieved sources.
func (e *StepExecutor) buildContext(session *datatypes.Session, sources []datatypes.Source) string {
	var b strings.Builder

	snap := session.Snapshot()
	fmt.Fprintf(&b, "Original request: %s\n", snap.Query)
	fmt.Fprintf(&b, "Research goal: %s\n", snap.Goal)

	completed := session.CompletedSteps()
	if len(completed) > contextPriorSteps {
		completed = completed[len(completed)-contextPriorSteps:]
	}
	if len(completed) > 0 {
		b.WriteString("\nFindings so far:\n")
		for _, step := range completed {
			fmt.Fprintf(&b, "- %s: %s\n", step.Title, truncate(step.Result, contextResultPrefix))
		}
	}

	top := sources
	if len(top) > contextTopSources {
		top = top[:contextTopSources]
	}
	if len(top) > 0 {
		b.WriteString("\nRetrieved sources:\n")
		for _, src := range top {
			fmt.Fprintf(&b, "- %s: %s\n", src.Title, truncate(src.Content, contextSourcePrefix))
		}
	}

	return b.String()
}

// suggestNextSteps asks the generator for short follow-up suggestions.
// Best effort: any failure returns the two fixed default suggestions.
func (e *StepExecutor) suggestNextSteps(ctx context.Context, result string) []string {
	suggestCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()

	maxTokens := 160
	prompt := fmt.Sprintf("Step result:\n%s\n\n%s",
		truncate(result, contextResultPrefix), suggestionInstruction)
	raw, err := e.generator.Generate(suggestCtx, prompt, llm.GenerationParams{
		MaxTokens: &maxTokens,
	})
	if err != nil {
		slog.Debug("Next-step suggestion failed, using defaults", "error", err)
		return defaultSuggestions()
	}

	var suggestions []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*"))
		if line == "" {
			continue
		}
		suggestions = append(suggestions, line)
		if len(suggestions) == 3 {
			break
		}
	}
	if len(suggestions) < 2 {
		return defaultSuggestions()
	}
	return suggestions
}

// scoreConfidence derives a step confidence in [0, 1]:
// base 0.5, +0.2 when sources are present, + average source score x 0.2,
// +0.1 for results longer than 500 characters, clamped at 1.0.
func scoreConfidence(sources []datatypes.Source, result string) float64 {
	confidence := confidenceBase
	if len(sources) > 0 {
		confidence += confidenceSourceBonus

		total := 0.0
		for _, s := range sources {
			total += s.Score
		}
		confidence += (total / float64(len(sources))) * confidenceScoreWeight
	}
	if len(result) > confidenceLengthResult {
		confidence += confidenceLengthBonus
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// truncate bounds s to max bytes without splitting a multi-byte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
