// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package uipath

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"time"
)

// RetryConfig configures the request executor's retry loop
type RetryConfig struct {
	MaxAttempts int           // total attempts, including the first
	MinWait     time.Duration // initial backoff wait
	MaxWait     time.Duration // backoff cap
	Multiplier  float64       // backoff growth factor
	Jitter      float64       // jitter fraction (0-1)
}

// DefaultRetryConfig returns the standard retry policy
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		MinWait:     1 * time.Second,
		MaxWait:     30 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.5,
	}
}

// retryableStatus reports whether an HTTP status is worth another attempt
func retryableStatus(code int) bool {
	switch code {
	case 429, 502, 503, 504:
		return true
	default:
		return false
	}
}

// retryableError reports whether a transport-level error is transient.
// Context cancellation is never retried.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Connection-level failures (refused, reset, DNS) surface as OpErrors
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// backoff returns the wait before the given attempt (attempt >= 1 is the
// wait after the attempt'th failure), exponential with jitter, bounded by
// MinWait and MaxWait
func (c *RetryConfig) backoff(attempt int) time.Duration {
	wait := float64(c.MinWait) * math.Pow(c.Multiplier, float64(attempt-1))
	if wait > float64(c.MaxWait) {
		wait = float64(c.MaxWait)
	}
	if c.Jitter > 0 {
		wait += wait * c.Jitter * (rand.Float64()*2 - 1)
	}
	if wait < float64(c.MinWait) {
		wait = float64(c.MinWait)
	}
	if wait > float64(c.MaxWait) {
		wait = float64(c.MaxWait)
	}
	return time.Duration(wait)
}

// sleep waits for d or until the context is cancelled
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
