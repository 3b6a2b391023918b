package llm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClient struct {
	calls atomic.Int64
}

func (c *countingClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	c.calls.Add(1)
	return "generated: " + prompt, nil
}

func TestRateLimitedClient_DelegatesToInner(t *testing.T) {
	inner := &countingClient{}
	client := NewRateLimitedClient(inner, 100, 1)

	out, err := client.Generate(context.Background(), "hello", GenerationParams{})

	require.NoError(t, err)
	assert.Equal(t, "generated: hello", out)
	assert.Equal(t, int64(1), inner.calls.Load())
}

func TestRateLimitedClient_CancelledContext(t *testing.T) {
	inner := &countingClient{}
	// Burst 1 with a very low rate: the second call must wait and the
	// cancelled context aborts the wait before the inner client runs.
	client := NewRateLimitedClient(inner, 0.001, 1)
	_, err := client.Generate(context.Background(), "first", GenerationParams{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = client.Generate(ctx, "second", GenerationParams{})

	assert.Error(t, err)
	assert.Equal(t, int64(1), inner.calls.Load())
}

func TestRateLimitedClient_BurstFloor(t *testing.T) {
	client := NewRateLimitedClient(&countingClient{}, 1, 0)

	// A zero burst would deadlock every call; the constructor floors it.
	_, err := client.Generate(context.Background(), "p", GenerationParams{})

	assert.NoError(t, err)
}
