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
	"sync"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/engine"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// wsConn serializes writes; gorilla/websocket allows one concurrent writer.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) sendJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleResearchWebSocket handles GET /v1/research/ws.
//
// # Description
//
// Runs research sessions over a persistent WebSocket. Each client
// message is a ResearchWSRequest; the handler starts a session, streams
// one "step" StreamEvent per finished step, and closes the run with a
// "final" event. The connection then waits for the next request, so one
// socket can serve several sequential research runs.
//
// Cancellation arrives out of band through the REST DELETE endpoint;
// the session id needed for it is sent in the initial "status" event.
func HandleResearchWebSocket(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()
		conn := &wsConn{ws: ws}
		slog.Info("Research websocket client connected")

		for {
			var req datatypes.ResearchWSRequest
			if err := ws.ReadJSON(&req); err != nil {
				slog.Info("Research websocket client disconnected", "error", err.Error())
				break
			}

			// The WebSocket path bypasses Gin binding, so the shared
			// request limits are enforced here before any session starts.
			if err := req.Validate(); err != nil {
				if err := conn.sendJSON(datatypes.StreamEvent{
					Type:  "error",
					Error: "invalid research request",
				}); err != nil {
					return
				}
				continue
			}

			ctx := c.Request.Context()

			snapshot, err := eng.Start(ctx, req.Query, req.UserID, req.MaxSteps)
			if err != nil {
				if err := conn.sendJSON(datatypes.StreamEvent{
					Type:  "error",
					Error: startErrorMessage(err),
				}); err != nil {
					return
				}
				continue
			}

			if err := conn.sendJSON(datatypes.StreamEvent{
				Type:      "status",
				Message:   "Research session started",
				SessionId: snapshot.ID,
			}); err != nil {
				return
			}

			final, err := eng.Execute(ctx, snapshot.ID, func(step datatypes.Step) {
				_ = conn.sendJSON(datatypes.StreamEvent{
					Type:      "step",
					Step:      &step,
					SessionId: snapshot.ID,
				})
			})
			if err != nil {
				if err := conn.sendJSON(datatypes.StreamEvent{
					Type:      "error",
					Error:     "research execution failed",
					SessionId: snapshot.ID,
				}); err != nil {
					return
				}
				continue
			}

			if err := conn.sendJSON(datatypes.StreamEvent{
				Type:      "final",
				Session:   &final,
				SessionId: final.ID,
			}); err != nil {
				return
			}
		}
	}
}

// startErrorMessage maps Start failures to client-safe messages.
func startErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, engine.ErrCapacityExceeded) {
		return "maximum concurrent research sessions reached"
	}
	return "failed to start research session"
}
