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
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianResearch/services/llm"
	"github.com/AleutianAI/AleutianResearch/services/research/search"
)

// fakeLLM is a scripted generation collaborator for engine tests.
//
// Responses are matched in order of registration: the first rule whose
// substring appears in the prompt or system instruction wins. Unmatched
// prompts return the default response.
type fakeLLM struct {
	mu       sync.Mutex
	rules    []fakeRule
	fallback string
	err      error
	calls    []string
}

type fakeRule struct {
	contains string
	response string
	err      error
}

func newFakeLLM(fallback string) *fakeLLM {
	return &fakeLLM{fallback: fallback}
}

func (f *fakeLLM) respondTo(contains, response string) *fakeLLM {
	f.rules = append(f.rules, fakeRule{contains: contains, response: response})
	return f
}

func (f *fakeLLM) failOn(contains string, err error) *fakeLLM {
	f.rules = append(f.rules, fakeRule{contains: contains, err: err})
	return f
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, prompt)

	if f.err != nil {
		return "", f.err
	}
	haystack := params.System + "\n" + prompt
	for _, rule := range f.rules {
		if strings.Contains(haystack, rule.contains) {
			return rule.response, rule.err
		}
	}
	return f.fallback, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var _ llm.LLMClient = (*fakeLLM)(nil)

// hookedLLM runs hook before delegating whenever the trigger substring
// appears in the prompt or system instruction.
type hookedLLM struct {
	llm.LLMClient
	trigger string
	hook    func()
}

func (h *hookedLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	if h.hook != nil && strings.Contains(params.System+"\n"+prompt, h.trigger) {
		h.hook()
	}
	return h.LLMClient.Generate(ctx, prompt, params)
}

// fakeSearcher returns a fixed result set, or an error.
type fakeSearcher struct {
	mu      sync.Mutex
	results []search.Result
	err     error
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int,
	scoreThreshold float64) ([]search.Result, error) {

	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	out := f.results
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSearcher) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

var _ search.Searcher = (*fakeSearcher)(nil)
