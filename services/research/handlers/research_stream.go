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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/engine"
	"github.com/gin-gonic/gin"
)

// keepAliveInterval bounds how long the SSE connection stays silent
// during a slow step. Below common proxy idle timeouts (Nginx 60s).
const keepAliveInterval = 15 * time.Second

// ExecuteResearchStream handles POST /v1/research/sessions/:sessionId/execute.
//
// # Description
//
// Runs the session's step loop on the request goroutine and streams each
// finished step as an SSE event. The event sequence is:
//
//	status  — execution started
//	step    — one per finished step, in execution order
//	final   — terminal session snapshot
//	error   — in place of final when execution fails
//
// Client disconnects cancel the request context, which the engine
// observes between steps. A keepalive comment is sent during long steps
// so intermediaries do not drop the idle connection.
//
// # Status Codes
//
// Headers are committed before execution starts, so failures after the
// first byte surface as error events, not statuses.
//
//   - 404: Unknown session id (pre-stream).
//   - 409: Session is not in a runnable state (pre-stream).
func ExecuteResearchStream(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		snapshot, ok := eng.Status(sessionID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "research session not found"})
			return
		}
		if snapshot.Status != datatypes.SessionStatusCreated {
			c.JSON(http.StatusConflict, gin.H{"error": "research session is not in a runnable state"})
			return
		}

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		if err := writer.WriteStatus("Research execution started"); err != nil {
			slog.Warn("SSE client gone before first event", "session_id", sessionID)
			return
		}

		// Keepalive pings while the engine is inside a step.
		stepDone := make(chan struct{})
		go func() {
			ticker := time.NewTicker(keepAliveInterval)
			defer ticker.Stop()
			for {
				select {
				case <-stepDone:
					return
				case <-ticker.C:
					if err := writer.WriteKeepAlive(); err != nil {
						return
					}
				}
			}
		}()

		final, err := eng.Execute(c.Request.Context(), sessionID, func(step datatypes.Step) {
			if werr := writer.WriteStep(step); werr != nil {
				slog.Warn("Failed to write step event",
					"session_id", sessionID, "step_id", step.ID, "error", werr)
			}
		})
		close(stepDone)

		if err != nil {
			if errors.Is(err, engine.ErrSessionNotRunnable) {
				_ = writer.WriteError("research session is not in a runnable state")
				return
			}
			slog.Error("Research execution failed", "session_id", sessionID, "error", err)
			_ = writer.WriteError("research execution failed")
			return
		}

		if werr := writer.WriteFinal(final); werr != nil {
			slog.Warn("Failed to write final event", "session_id", sessionID, "error", werr)
		}
	}
}
