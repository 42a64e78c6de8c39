package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// RetryConfig configures retry behavior for embedding calls.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts (0 = no retries)
	RetryDelay time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Caps exponential backoff
	Timeout    time.Duration // Per-request timeout
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Timeout:    30 * time.Second,
	}
}

// RetryEmbedder wraps an Embedder with timeout and retry logic.
type RetryEmbedder struct {
	inner  Embedder
	config *RetryConfig
}

func NewRetryEmbedder(inner Embedder, config *RetryConfig) *RetryEmbedder {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryEmbedder{
		inner:  inner,
		config: config,
	}
}

func (r *RetryEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.calculateBackoff(attempt)):
			}
		}

		attemptCtx := ctx
		cancel := func() {}
		if r.config.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		}
		vec, err := r.inner.Embed(attemptCtx, text)
		cancel()

		if err == nil {
			return vec, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, fmt.Errorf("non-retryable error: %w", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", r.config.MaxRetries, lastErr)
}

// calculateBackoff returns RetryDelay * 2^(attempt-1), capped at MaxDelay.
func (r *RetryEmbedder) calculateBackoff(attempt int) time.Duration {
	delay := r.config.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
			break
		}
	}
	return delay
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	errStr := err.Error()

	if strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests") {
		// Daily quotas do not reset within a retry window.
		if strings.Contains(errStr, "tokens per day") || strings.Contains(errStr, "insufficient_quota") {
			return false
		}
		return true
	}

	for _, code := range []int{
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	} {
		if strings.Contains(errStr, fmt.Sprintf("status %d", code)) || strings.Contains(errStr, http.StatusText(code)) {
			return true
		}
	}

	for _, code := range []int{400, 401, 403, 404, 422} {
		if strings.Contains(errStr, fmt.Sprintf("status %d", code)) {
			return false
		}
	}

	// Dimension and empty-vector errors are deterministic.
	if strings.Contains(errStr, "dimensions") || strings.Contains(errStr, "empty embedding") {
		return false
	}

	return true
}
