package llm

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps an LLMClient with a token-bucket rate limiter.
//
// Research sessions fan out many small generation calls (goal extraction,
// per-step prompts, suggestions, synthesis); the limiter keeps the backend
// from being saturated by concurrent sessions. Wait blocks until a token
// is available or the context expires, so the per-step deadline still
// bounds the total wait.
type RateLimitedClient struct {
	inner   LLMClient
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps inner with a limiter allowing rps requests
// per second with the given burst.
func NewRateLimitedClient(inner LLMClient, rps float64, burst int) *RateLimitedClient {
	if burst < 1 {
		burst = 1
	}
	slog.Info("Rate limiting LLM client", "rps", rps, "burst", burst)
	return &RateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Generate implements the LLMClient interface
func (r *RateLimitedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait: %w", err)
	}
	return r.inner.Generate(ctx, prompt, params)
}

var _ LLMClient = (*RateLimitedClient)(nil)
