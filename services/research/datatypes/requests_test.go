// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartResearchRequest_Validate(t *testing.T) {
	t.Run("valid request passes", func(t *testing.T) {
		req := StartResearchRequest{Query: "compare raft and paxos", UserID: "u1", MaxSteps: 5}
		assert.NoError(t, req.Validate())
	})

	t.Run("empty query rejected", func(t *testing.T) {
		req := StartResearchRequest{Query: ""}
		assert.Error(t, req.Validate())
	})

	t.Run("oversized query rejected", func(t *testing.T) {
		req := StartResearchRequest{Query: strings.Repeat("a", MaxQueryBytes+1)}
		assert.Error(t, req.Validate())
	})

	t.Run("query at limit passes", func(t *testing.T) {
		req := StartResearchRequest{Query: strings.Repeat("a", MaxQueryBytes)}
		assert.NoError(t, req.Validate())
	})

	t.Run("max steps above cap rejected", func(t *testing.T) {
		req := StartResearchRequest{Query: "q", MaxSteps: MaxRequestedSteps + 1}
		assert.Error(t, req.Validate())
	})

	t.Run("negative max steps rejected", func(t *testing.T) {
		req := StartResearchRequest{Query: "q", MaxSteps: -1}
		assert.Error(t, req.Validate())
	})

	t.Run("zero max steps means engine default", func(t *testing.T) {
		req := StartResearchRequest{Query: "q", MaxSteps: 0}
		assert.NoError(t, req.Validate())
	})
}

func TestResearchWSRequest_Validate(t *testing.T) {
	t.Run("valid request passes", func(t *testing.T) {
		req := ResearchWSRequest{Query: "compare raft and paxos", UserID: "u1", MaxSteps: 5}
		assert.NoError(t, req.Validate())
	})

	t.Run("empty query rejected", func(t *testing.T) {
		req := ResearchWSRequest{Query: ""}
		assert.Error(t, req.Validate())
	})

	t.Run("oversized query rejected", func(t *testing.T) {
		req := ResearchWSRequest{Query: strings.Repeat("a", MaxQueryBytes+1)}
		assert.Error(t, req.Validate())
	})

	t.Run("max steps above cap rejected", func(t *testing.T) {
		req := ResearchWSRequest{Query: "q", MaxSteps: MaxRequestedSteps + 1}
		assert.Error(t, req.Validate())
	})
}
