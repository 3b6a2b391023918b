// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command research starts the AleutianResearch HTTP server.
//
// This is the main entry point for the containerized research service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - RESEARCH_PORT: HTTP server port (default: 12230)
//   - LLM_BACKEND_TYPE: LLM provider - local, openai, ollama (default: local)
//   - LLM_REQUESTS_PER_SECOND: Outbound LLM rate limit, 0 disables (default: 0)
//   - WEAVIATE_SERVICE_URL: Weaviate vector DB URL (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: aleutian-otel-collector:4317)
//   - RESEARCH_MAX_SESSIONS: Concurrent session cap (default: 10)
//   - RESEARCH_MAX_STEPS: Default per-session step cap (default: 7)
//   - RESEARCH_STEP_TIMEOUT_SECONDS: Per-step collaborator deadline (default: 120)
//   - RESEARCH_RETENTION_HOURS: Terminal session retention window (default: 24)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_DIR: Optional directory for file logging
//
// # Usage
//
//	# Build
//	go build -o research ./cmd/research
//
//	# Run
//	./research
//
//	# Or via container
//	podman-compose up research
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianResearch/pkg/logging"
	"github.com/AleutianAI/AleutianResearch/services/research"
	"github.com/AleutianAI/AleutianResearch/services/research/engine"
)

func main() {
	closer := logging.Setup(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
		Service: "research",
		LogDir:  os.Getenv("LOG_DIR"),
	})
	defer closer()

	cfg := research.Config{
		Port:                 getEnvInt("RESEARCH_PORT", 12230),
		LLMBackend:           getEnvString("LLM_BACKEND_TYPE", "local"),
		LLMRequestsPerSecond: getEnvFloat("LLM_REQUESTS_PER_SECOND", 0),
		WeaviateURL:          os.Getenv("WEAVIATE_SERVICE_URL"),
		OTelEndpoint:         getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "aleutian-otel-collector:4317"),
		Engine: engine.Config{
			MaxConcurrentSessions: getEnvInt("RESEARCH_MAX_SESSIONS", 0),
			DefaultMaxSteps:       getEnvInt("RESEARCH_MAX_STEPS", 0),
			StepTimeout:           time.Duration(getEnvInt("RESEARCH_STEP_TIMEOUT_SECONDS", 0)) * time.Second,
		},
		RetentionWindow: time.Duration(getEnvInt("RESEARCH_RETENTION_HOURS", 0)) * time.Hour,
	}

	slog.Info("Starting research service",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"weaviate_url", cfg.WeaviateURL,
	)

	svc, err := research.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create research service: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Research service error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
