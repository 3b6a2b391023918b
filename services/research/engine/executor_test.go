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
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executorSession(stepType datatypes.StepType) (*datatypes.Session, *datatypes.Step) {
	session := datatypes.NewSession("how do raft leaders get elected", "", 7)
	session.SetGoal("Explain raft leader election")
	step := datatypes.NewStep(stepType, session.Query, "step under test")
	session.SetPlan([]*datatypes.Step{step})
	return session, step
}

func TestStepExecutor_Execute_CompletesStep(t *testing.T) {
	generator := newFakeLLM("step result text").
		respondTo("suggest 2-3", "- Check term numbers\n- Compare with paxos")
	executor := NewStepExecutor(generator, nil, DefaultConfig())
	session, step := executorSession(datatypes.StepTypeInitialAnalysis)

	executor.Execute(context.Background(), session, step)

	snap := session.StepSnapshot(step)
	assert.Equal(t, datatypes.StepStatusCompleted, snap.Status)
	assert.Equal(t, "step result text", snap.Result)
	assert.Equal(t, []string{"Check term numbers", "Compare with paxos"}, snap.NextStepSuggestions)
	assert.Greater(t, snap.Confidence, 0.0)
}

func TestStepExecutor_Execute_GenerationFailureFailsStep(t *testing.T) {
	generator := newFakeLLM("")
	generator.err = errors.New("backend unavailable")
	executor := NewStepExecutor(generator, nil, DefaultConfig())
	session, step := executorSession(datatypes.StepTypeInitialAnalysis)

	executor.Execute(context.Background(), session, step)

	snap := session.StepSnapshot(step)
	assert.Equal(t, datatypes.StepStatusFailed, snap.Status)
	assert.Contains(t, snap.ErrorMessage, "backend unavailable")
	require.NotNil(t, snap.CompletedAt)
}

func TestStepExecutor_SearchBackedStepAttachesSources(t *testing.T) {
	generator := newFakeLLM("analysis using the docs").
		respondTo("suggest 2-3", "- a\n- b")
	searcher := &fakeSearcher{results: []search.Result{
		{Title: "raft paper", Content: "leader election section", Origin: "raft.pdf", Score: 0.9},
		{Title: "notes", Content: "terms and heartbeats", Origin: "notes.md", Score: 0.7},
	}}
	executor := NewStepExecutor(generator, searcher, DefaultConfig())
	session, step := executorSession(datatypes.StepTypeDeepAnalysis)

	executor.Execute(context.Background(), session, step)

	snap := session.StepSnapshot(step)
	require.Equal(t, datatypes.StepStatusCompleted, snap.Status)
	require.Len(t, snap.Sources, 2)
	assert.Equal(t, "raft paper", snap.Sources[0].Title)
	assert.Equal(t, 1, searcher.searchCount())
}

func TestStepExecutor_NonSearchStepSkipsSearcher(t *testing.T) {
	generator := newFakeLLM("result").respondTo("suggest 2-3", "- a\n- b")
	searcher := &fakeSearcher{results: []search.Result{{Title: "doc", Score: 0.9}}}
	executor := NewStepExecutor(generator, searcher, DefaultConfig())
	session, step := executorSession(datatypes.StepTypeSynthesis)

	executor.Execute(context.Background(), session, step)

	assert.Equal(t, 0, searcher.searchCount())
	assert.Empty(t, session.StepSnapshot(step).Sources)
}

func TestStepExecutor_SearchFailureDegradesToZeroSources(t *testing.T) {
	generator := newFakeLLM("result without sources").respondTo("suggest 2-3", "- a\n- b")
	searcher := &fakeSearcher{err: errors.New("weaviate down")}
	executor := NewStepExecutor(generator, searcher, DefaultConfig())
	session, step := executorSession(datatypes.StepTypeContextGathering)

	executor.Execute(context.Background(), session, step)

	snap := session.StepSnapshot(step)
	assert.Equal(t, datatypes.StepStatusCompleted, snap.Status)
	assert.Empty(t, snap.Sources)
}

func TestStepExecutor_FinalSummarySkipsSuggestions(t *testing.T) {
	generator := newFakeLLM("the final summary")
	executor := NewStepExecutor(generator, nil, DefaultConfig())
	session, step := executorSession(datatypes.StepTypeFinalSummary)

	executor.Execute(context.Background(), session, step)

	snap := session.StepSnapshot(step)
	assert.Equal(t, datatypes.StepStatusCompleted, snap.Status)
	assert.Empty(t, snap.NextStepSuggestions)
	// Only the step generation call, no suggestion call.
	assert.Equal(t, 1, generator.callCount())
}

func TestStepExecutor_SuggestionFailureUsesDefaults(t *testing.T) {
	generator := newFakeLLM("result").
		failOn("suggest 2-3", errors.New("timeout"))
	executor := NewStepExecutor(generator, nil, DefaultConfig())
	session, step := executorSession(datatypes.StepTypeInitialAnalysis)

	executor.Execute(context.Background(), session, step)

	snap := session.StepSnapshot(step)
	require.Equal(t, datatypes.StepStatusCompleted, snap.Status)
	assert.Equal(t, defaultSuggestions(), snap.NextStepSuggestions)
}

func TestStepExecutor_ContextWindowBounds(t *testing.T) {
	generator := newFakeLLM("result").respondTo("suggest 2-3", "- a\n- b")
	executor := NewStepExecutor(generator, nil, DefaultConfig())
	session := datatypes.NewSession("q", "", 10)
	session.SetGoal("goal")

	// Five completed steps; only the last three may appear in context.
	longResult := strings.Repeat("x", 400)
	var steps []*datatypes.Step
	for i := 0; i < 5; i++ {
		step := datatypes.NewStep(datatypes.StepTypeInitialAnalysis, "q", "d")
		step.Title = "Step " + string(rune('A'+i))
		steps = append(steps, step)
	}
	current := datatypes.NewStep(datatypes.StepTypeSynthesis, "q", "current")
	session.SetPlan(append(steps, current))
	for _, step := range steps {
		session.CompleteStep(step, longResult, nil, 0.8, nil, time.Second)
	}

	window := executor.buildContext(session, nil)

	assert.NotContains(t, window, "Step A")
	assert.NotContains(t, window, "Step B")
	assert.Contains(t, window, "Step C")
	assert.Contains(t, window, "Step E")
	// Results are truncated to the prefix bound.
	assert.NotContains(t, window, strings.Repeat("x", contextResultPrefix+1))
}

// =============================================================================
// Confidence Scoring Tests
// =============================================================================

func TestScoreConfidence(t *testing.T) {
	longResult := strings.Repeat("r", 501)

	t.Run("base score without sources", func(t *testing.T) {
		assert.InDelta(t, 0.5, scoreConfidence(nil, "short"), 1e-9)
	})

	t.Run("source bonus plus average score weight", func(t *testing.T) {
		sources := []datatypes.Source{{Score: 0.8}, {Score: 0.6}}
		// 0.5 + 0.2 + 0.7*0.2
		assert.InDelta(t, 0.84, scoreConfidence(sources, "short"), 1e-9)
	})

	t.Run("length bonus", func(t *testing.T) {
		assert.InDelta(t, 0.6, scoreConfidence(nil, longResult), 1e-9)
	})

	t.Run("clamped at one", func(t *testing.T) {
		sources := []datatypes.Source{{Score: 1.0}, {Score: 1.0}}
		// 0.5 + 0.2 + 0.2 + 0.1 = 1.0 exactly
		assert.InDelta(t, 1.0, scoreConfidence(sources, longResult), 1e-9)
	})
}

// =============================================================================
// Truncation Tests
// =============================================================================

func TestTruncate(t *testing.T) {
	t.Run("short strings pass through", func(t *testing.T) {
		assert.Equal(t, "abc", truncate("abc", 5))
		assert.Equal(t, "abc", truncate("abc", 3))
	})

	t.Run("long strings are bounded", func(t *testing.T) {
		assert.Equal(t, "abc", truncate("abcdef", 3))
	})

	t.Run("never splits a multi-byte rune", func(t *testing.T) {
		// "héllo": the é occupies bytes 1-2, so a cut at byte 2 must
		// back off to the rune start.
		got := truncate("héllo", 2)
		assert.Equal(t, "h", got)
		assert.True(t, utf8.ValidString(got))

		got = truncate("日本語", 4)
		assert.Equal(t, "日", got)
		assert.True(t, utf8.ValidString(got))
	})
}
