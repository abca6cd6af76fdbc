package event

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryConfig controls retry behavior for outbound hook deliveries.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64
}

// DefaultRetryConfig returns the webhook defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		JitterFraction: 0.2,
	}
}

// deliveryError is a failed POST: either a transport error or an HTTP status.
type deliveryError struct {
	status int
	err    error
}

func (e *deliveryError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("request failed: %v", e.err)
	}
	return fmt.Sprintf("returned status %d", e.status)
}

func (e *deliveryError) Unwrap() error { return e.err }

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// retry budget is spent.
func (c RetryConfig) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
		if attempt == c.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff(attempt)):
		}
	}
	if c.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", c.MaxRetries, lastErr)
}

// isRetryable reports whether a delivery failure is transient.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var de *deliveryError
	if !errors.As(err, &de) {
		return false
	}
	if de.err != nil {
		return true
	}
	switch de.status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoff is exponential with ±jitter, capped at MaxBackoff.
func (c RetryConfig) backoff(attempt int) time.Duration {
	base := float64(c.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(c.MaxBackoff) {
		base = float64(c.MaxBackoff)
	}

	jitter := base * c.JitterFraction * (rand.Float64()*2 - 1)
	delay := time.Duration(base + jitter)
	if delay < 0 {
		delay = 0
	}
	return delay
}
