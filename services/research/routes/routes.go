// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/AleutianAI/AleutianResearch/services/research/engine"
	"github.com/AleutianAI/AleutianResearch/services/research/handlers"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers the research service routes on the router.
func SetupRoutes(router *gin.Engine, eng *engine.Engine) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		research := v1.Group("/research")
		{
			research.GET("/status", handlers.ResearchEngineStatus(eng))
			research.GET("/ws", handlers.HandleResearchWebSocket(eng))

			sessions := research.Group("/sessions")
			{
				sessions.POST("", handlers.StartResearch(eng))
				sessions.GET("", handlers.ListResearchSessions(eng))
				sessions.GET("/:sessionId", handlers.GetResearchSession(eng))
				sessions.POST("/:sessionId/execute", handlers.ExecuteResearchStream(eng))
				sessions.DELETE("/:sessionId", handlers.CancelResearch(eng))
			}
		}
	}
}
