// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainWriter is a ResponseWriter without http.Flusher support.
type plainWriter struct {
	http.ResponseWriter
}

func TestNewSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(plainWriter{})

	assert.Error(t, err)
}

func TestSSEWriter_WriteStatus(t *testing.T) {
	recorder := httptest.NewRecorder()
	writer, err := NewSSEWriter(recorder)
	require.NoError(t, err)

	require.NoError(t, writer.WriteStatus("execution started"))

	body := recorder.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: status\ndata: "))
	assert.True(t, strings.HasSuffix(body, "\n\n"))

	events := parseSSEEvents(t, body)
	require.Len(t, events, 1)
	assert.Equal(t, "execution started", events[0].Message)
	assert.NotEmpty(t, events[0].Id)
	assert.NotZero(t, events[0].CreatedAt)
}

func TestSSEWriter_HashChain(t *testing.T) {
	recorder := httptest.NewRecorder()
	writer, err := NewSSEWriter(recorder)
	require.NoError(t, err)

	require.NoError(t, writer.WriteStatus("execution started"))
	step := datatypes.NewStep(datatypes.StepTypeInitialAnalysis, "q", "Initial Analysis for: q")
	require.NoError(t, writer.WriteStep(*step))
	require.NoError(t, writer.WriteFinal(datatypes.SessionSnapshot{ID: "s-1"}))

	events := parseSSEEvents(t, recorder.Body.String())
	require.Len(t, events, 3)

	// The first event anchors the chain; each later event links back to
	// its predecessor's hash.
	assert.Empty(t, events[0].PrevHash)
	assert.NotEmpty(t, events[0].Hash)
	assert.Equal(t, events[0].Hash, events[1].PrevHash)
	assert.Equal(t, events[1].Hash, events[2].PrevHash)

	// Hashes are recomputable from the event content as received.
	chained := &sseWriter{}
	for _, event := range events {
		expected := event.Hash
		event.Hash = ""
		assert.Equal(t, expected, chained.computeEventHash(event))
	}
}

func TestSSEWriter_KeepAliveDoesNotAdvanceChain(t *testing.T) {
	recorder := httptest.NewRecorder()
	writer, err := NewSSEWriter(recorder)
	require.NoError(t, err)

	require.NoError(t, writer.WriteStatus("first"))
	require.NoError(t, writer.WriteKeepAlive())
	require.NoError(t, writer.WriteStatus("second"))

	body := recorder.Body.String()
	assert.Contains(t, body, ": ping\n\n")

	events := parseSSEEvents(t, body)
	require.Len(t, events, 2)
	assert.Equal(t, events[0].Hash, events[1].PrevHash)
}

func TestSetSSEHeaders(t *testing.T) {
	recorder := httptest.NewRecorder()

	SetSSEHeaders(recorder)

	assert.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", recorder.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", recorder.Header().Get("Connection"))
	assert.Equal(t, "no", recorder.Header().Get("X-Accel-Buffering"))
}
