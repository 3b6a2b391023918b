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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianResearch/services/llm"
	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/engine"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLLM returns a fixed response for every generation call. The
// response is long enough that completed steps never trigger adaptive
// validation insertion.
type stubLLM struct {
	response string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.response, nil
}

var _ llm.LLMClient = (*stubLLM)(nil)

func newTestEngine(maxSessions int) *engine.Engine {
	generator := &stubLLM{response: strings.Repeat("a grounded finding. ", 30)}
	return engine.New(generator, nil, engine.Config{
		MaxConcurrentSessions: maxSessions,
		StepTimeout:           5 * time.Second,
	})
}

func newTestRouter(eng *engine.Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/v1/research/sessions", StartResearch(eng))
	router.GET("/v1/research/sessions", ListResearchSessions(eng))
	router.GET("/v1/research/sessions/:sessionId", GetResearchSession(eng))
	router.POST("/v1/research/sessions/:sessionId/execute", ExecuteResearchStream(eng))
	router.DELETE("/v1/research/sessions/:sessionId", CancelResearch(eng))
	router.GET("/v1/research/status", ResearchEngineStatus(eng))
	return router
}

func startSession(t *testing.T, router *gin.Engine, query string) string {
	t.Helper()
	w := httptest.NewRecorder()
	body := strings.NewReader(`{"query": "` + query + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/research/sessions", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var snapshot datatypes.SessionSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	require.NotEmpty(t, snapshot.ID)
	return snapshot.ID
}

// =============================================================================
// StartResearch Tests
// =============================================================================

func TestStartResearch(t *testing.T) {
	router := newTestRouter(newTestEngine(10))

	t.Run("creates session", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := strings.NewReader(`{"query": "how does raft work", "max_steps": 5}`)
		req := httptest.NewRequest(http.MethodPost, "/v1/research/sessions", body)
		req.Header.Set("Content-Type", "application/json")

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var snapshot datatypes.SessionSnapshot
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
		assert.NotEmpty(t, snapshot.ID)
		assert.Equal(t, datatypes.SessionStatusCreated, snapshot.Status)
		assert.Equal(t, 5, snapshot.MaxSteps)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/research/sessions",
			strings.NewReader("not json"))
		req.Header.Set("Content-Type", "application/json")

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects missing query", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/research/sessions",
			strings.NewReader(`{"user_id": "u1"}`))
		req.Header.Set("Content-Type", "application/json")

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects excessive max_steps", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/research/sessions",
			strings.NewReader(`{"query": "q", "max_steps": 50}`))
		req.Header.Set("Content-Type", "application/json")

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "error")
	})
}

func TestStartResearch_CapacityExceeded(t *testing.T) {
	router := newTestRouter(newTestEngine(1))
	startSession(t, router, "first")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/research/sessions",
		strings.NewReader(`{"query": "second"}`))
	req.Header.Set("Content-Type", "application/json")

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

// =============================================================================
// GetResearchSession Tests
// =============================================================================

func TestGetResearchSession(t *testing.T) {
	router := newTestRouter(newTestEngine(10))

	t.Run("unknown session", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/research/sessions/missing", nil)

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("known session", func(t *testing.T) {
		sessionID := startSession(t, router, "how does raft work")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/research/sessions/"+sessionID, nil)

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Session datatypes.SessionSnapshot `json:"session"`
			Steps   []datatypes.Step          `json:"steps"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, sessionID, body.Session.ID)
	})
}

// =============================================================================
// CancelResearch Tests
// =============================================================================

func TestCancelResearch(t *testing.T) {
	router := newTestRouter(newTestEngine(10))

	t.Run("unknown session", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/v1/research/sessions/missing", nil)

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("cancels active session", func(t *testing.T) {
		sessionID := startSession(t, router, "how does raft work")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/v1/research/sessions/"+sessionID, nil)

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "cancelling")
	})

	t.Run("conflict on terminal session", func(t *testing.T) {
		sessionID := startSession(t, router, "how does raft work")
		first := httptest.NewRecorder()
		router.ServeHTTP(first, httptest.NewRequest(http.MethodDelete,
			"/v1/research/sessions/"+sessionID, nil))
		require.Equal(t, http.StatusOK, first.Code)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/v1/research/sessions/"+sessionID, nil)

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

// =============================================================================
// List / Status Tests
// =============================================================================

func TestListResearchSessions(t *testing.T) {
	router := newTestRouter(newTestEngine(10))
	startSession(t, router, "q1")
	startSession(t, router, "q2")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/research/sessions", nil)

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Sessions []datatypes.SessionSnapshot `json:"sessions"`
		Count    int                         `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Sessions, 2)
}

func TestResearchEngineStatus(t *testing.T) {
	router := newTestRouter(newTestEngine(10))
	startSession(t, router, "q1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/research/status", nil)

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var status engine.EngineStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Metrics.TotalSessions)
	assert.Equal(t, 10, status.Config.MaxConcurrentSessions)
}

// =============================================================================
// ExecuteResearchStream Tests
// =============================================================================

func TestExecuteResearchStream(t *testing.T) {
	router := newTestRouter(newTestEngine(10))

	t.Run("unknown session", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost,
			"/v1/research/sessions/missing/execute", nil)

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("streams steps and final event", func(t *testing.T) {
		sessionID := startSession(t, router, "how does raft work")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost,
			"/v1/research/sessions/"+sessionID+"/execute", nil)

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

		body := w.Body.String()
		assert.Contains(t, body, "event: status")
		assert.Contains(t, body, "event: step")
		assert.Contains(t, body, "event: final")

		// The final event carries the terminal session snapshot.
		events := parseSSEEvents(t, body)
		final := events[len(events)-1]
		assert.Equal(t, "final", final.Type)
		require.NotNil(t, final.Session)
		assert.Equal(t, datatypes.SessionStatusCompleted, final.Session.Status)
		assert.Equal(t, sessionID, final.SessionId)
	})

	t.Run("conflict on terminal session", func(t *testing.T) {
		sessionID := startSession(t, router, "how does raft work")
		first := httptest.NewRecorder()
		router.ServeHTTP(first, httptest.NewRequest(http.MethodPost,
			"/v1/research/sessions/"+sessionID+"/execute", nil))
		require.Equal(t, http.StatusOK, first.Code)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost,
			"/v1/research/sessions/"+sessionID+"/execute", nil)

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

// parseSSEEvents decodes every data line of an SSE body.
func parseSSEEvents(t *testing.T, body string) []datatypes.StreamEvent {
	t.Helper()
	var events []datatypes.StreamEvent
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event datatypes.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}
	return events
}
