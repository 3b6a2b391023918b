// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package research provides the research service for AleutianResearch.
//
// This package contains the main Service type that coordinates all
// components of the service: the research engine, HTTP routing, LLM
// clients, the Weaviate-backed searcher, the retention sweeper, and
// observability infrastructure.
//
// # Usage
//
//	cfg := research.Config{Port: 12230, LLMBackend: "ollama"}
//	svc, err := research.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package research

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianResearch/services/llm"
	"github.com/AleutianAI/AleutianResearch/services/research/engine"
	"github.com/AleutianAI/AleutianResearch/services/research/retention"
	"github.com/AleutianAI/AleutianResearch/services/research/routes"
	"github.com/AleutianAI/AleutianResearch/services/research/search"
	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the research service lifecycle.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine

	// Engine returns the research engine for direct (embedded) use.
	Engine() *engine.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds research service configuration options.
//
// # Description
//
// Centralizes all configuration for the research service. Values can be
// populated from environment variables, config files, or
// programmatically for testing. All fields are optional with defaults
// applied by New().
type Config struct {
	// Port is the HTTP server port. Default: 12230
	Port int

	// LLMBackend specifies the LLM provider.
	// Valid values: "local", "openai", "ollama"
	// Default: "local"
	LLMBackend string

	// LLMRequestsPerSecond rate-limits outbound LLM calls across all
	// sessions. <= 0 disables rate limiting.
	LLMRequestsPerSecond float64

	// WeaviateURL is the Weaviate vector database URL.
	// If empty, search-backed steps run without sources.
	// Example: "http://localhost:8080"
	WeaviateURL string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "aleutian-otel-collector:4317"
	OTelEndpoint string

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string

	// Engine holds the research engine configuration.
	// Zero values use engine defaults.
	Engine engine.Config

	// RetentionInterval is how often the retention sweeper runs.
	// Default: 10 minutes
	RetentionInterval time.Duration

	// RetentionWindow is how long terminal sessions remain queryable.
	// Default: 24 hours
	RetentionWindow time.Duration

	// RetentionDisabled turns off the background retention sweeper.
	// The zero value keeps the sweeper on, so config structs that never
	// mention retention still get eviction.
	RetentionDisabled bool
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config        Config
	router        *gin.Engine
	llmClient     llm.LLMClient
	searcher      search.Searcher
	engine        *engine.Engine
	sweeper       *retention.Sweeper
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new research Service with the given configuration.
//
// # Description
//
// New initializes all service components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Creates the LLM client based on backend type
//  4. Creates the Weaviate searcher if a URL is provided
//  5. Constructs the research engine
//  6. Starts the retention sweeper
//  7. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run research service
//   - error: Non-nil if initialization fails
//
// # Assumptions
//
//   - Environment variables are set for LLM providers (API keys, URLs)
//   - Network is available for external service connections
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if err := s.initSearcher(); err != nil {
		slog.Warn("Weaviate initialization failed, research will run without sources",
			"error", err)
		// Not fatal - search-backed steps degrade to zero sources
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	s.engine = engine.New(s.llmClient, s.searcher, s.config.Engine)

	if !s.config.RetentionDisabled {
		if err := s.initSweeper(); err != nil {
			slog.Warn("Retention sweeper initialization failed", "error", err)
			// Not fatal - sessions then accumulate until restart
		}
	}

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
// Cleanup is automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting research server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing. The caller must
// not modify routes after construction.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Engine returns the research engine for direct use.
func (s *service) Engine() *engine.Engine {
	return s.engine
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12230
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "local"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "aleutian-otel-collector:4317"
	}
	if cfg.RetentionInterval == 0 {
		cfg.RetentionInterval = 10 * time.Minute
	}
	if cfg.RetentionWindow == 0 {
		cfg.RetentionWindow = 24 * time.Hour
	}

	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// Sets up an OTLP trace exporter sending spans to the configured
// collector over an insecure gRPC connection (appropriate for internal
// networks).
//
// # Outputs
//
//   - func(context.Context): Cleanup function to call on shutdown
//   - error: Non-nil if tracer setup fails
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("research-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initSearcher initializes the Weaviate-backed document searcher.
//
// Returns nil error if WeaviateURL is empty; the searcher is an optional
// dependency and research degrades to zero-source steps without it.
func (s *service) initSearcher() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("Weaviate URL not configured, research will run without sources")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	clientConf := weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	}

	client, err := weaviate.NewClient(clientConf)
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	s.searcher = search.NewWeaviateSearcher(client)
	slog.Info("Weaviate searcher initialized", "url", weaviateURL)

	return nil
}

// initLLMClient initializes the LLM provider client, optionally wrapped
// with an outbound rate limiter shared across sessions.
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "local":
		s.llmClient, err = llm.NewLocalLlamaCppClient()
		slog.Info("Using Local Llama.cpp LLM backend")
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to local", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewLocalLlamaCppClient()
	}
	if err != nil {
		return err
	}

	if s.config.LLMRequestsPerSecond > 0 {
		s.llmClient = llm.NewRateLimitedClient(s.llmClient,
			s.config.LLMRequestsPerSecond, 1)
	}

	return nil
}

// initSweeper starts the background retention sweeper over the engine's
// session registry.
func (s *service) initSweeper() error {
	s.sweeper = retention.NewSweeper(s.engine, retention.Config{
		Interval: s.config.RetentionInterval,
		Window:   s.config.RetentionWindow,
	})

	if err := s.sweeper.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start retention sweeper: %w", err)
	}

	slog.Info("Retention sweeper started",
		"interval", s.config.RetentionInterval.String(),
		"window", s.config.RetentionWindow.String(),
	)

	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("research-service"))

	routes.SetupRoutes(s.router, s.engine)
}

// cleanup releases all resources held by the service. Called when Run()
// exits or on initialization failure.
func (s *service) cleanup() {
	if s.sweeper != nil {
		if err := s.sweeper.Stop(); err != nil {
			slog.Warn("Retention sweeper stop error", "error", err)
		}
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
