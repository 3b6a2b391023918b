// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides the HTTP surface of the research service.
//
// Handlers are thin adapters over the research engine: they bind and
// validate requests, translate engine sentinel errors to HTTP statuses,
// and stream step updates over SSE or WebSocket.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/engine"
	"github.com/gin-gonic/gin"
)

// StartResearch handles POST /v1/research/sessions.
//
// # Description
//
// Creates a research session in the Created state and returns its
// snapshot. Execution is a separate call so callers can choose between
// the SSE and WebSocket streaming surfaces.
//
// # Status Codes
//
//   - 201: Session created.
//   - 400: Malformed or invalid request body.
//   - 429: Concurrent-session capacity reached.
func StartResearch(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.StartResearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			slog.Warn("Research request rejected by validation", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		snapshot, err := eng.Start(c.Request.Context(), req.Query, req.UserID, req.MaxSteps)
		if err != nil {
			if errors.Is(err, engine.ErrCapacityExceeded) {
				c.JSON(http.StatusTooManyRequests,
					gin.H{"error": "maximum concurrent research sessions reached"})
				return
			}
			slog.Error("Failed to start research session", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start research session"})
			return
		}

		c.JSON(http.StatusCreated, snapshot)
	}
}

// GetResearchSession handles GET /v1/research/sessions/:sessionId.
//
// Returns the session snapshot plus its step snapshots. 404 for
// unknown ids.
func GetResearchSession(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		snapshot, ok := eng.Status(sessionID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "research session not found"})
			return
		}
		steps, _ := eng.StepsOf(sessionID)
		c.JSON(http.StatusOK, gin.H{"session": snapshot, "steps": steps})
	}
}

// CancelResearch handles DELETE /v1/research/sessions/:sessionId.
//
// # Status Codes
//
//   - 200: Cancellation flagged; the running step finishes first.
//   - 404: Unknown session id.
//   - 409: Session already in a terminal state.
func CancelResearch(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		if _, ok := eng.Status(sessionID); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "research session not found"})
			return
		}
		if !eng.Cancel(sessionID) {
			c.JSON(http.StatusConflict, gin.H{"error": "research session already finished"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cancelling", "session_id": sessionID})
	}
}

// ListResearchSessions handles GET /v1/research/sessions.
func ListResearchSessions(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions := eng.Sessions()
		c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
	}
}

// ResearchEngineStatus handles GET /v1/research/status.
//
// Returns process-wide engine metrics and effective configuration.
func ResearchEngineStatus(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, eng.EngineStatus())
	}
}
