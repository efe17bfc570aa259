// Package retry implements exponential backoff for calls to external
// AI backends. Waits honour context cancellation, and jitter spreads
// simultaneous clients apart after a shared outage.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/veritas-labs/lexquery/internal/logger"
)

// Policy configures retry behaviour.
type Policy struct {
	// MaxRetries is how many times to retry after the first attempt.
	// Zero means a single attempt.
	MaxRetries int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration

	// Multiplier grows the delay between consecutive retries.
	Multiplier float64

	// Jitter randomises each delay by ±25% so clients recovering from
	// a shared outage do not stampede the backend.
	Jitter bool

	// RetryIf decides whether an error is worth retrying.
	// Nil retries every error.
	RetryIf func(error) bool
}

// DefaultPolicy returns a policy suited to AI backend calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// normalise fills in unusable fields with defaults.
func (p Policy) normalise() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
	return p
}

// Do runs fn, retrying per the policy until it succeeds, the error is
// not retryable, attempts run out, or the context is cancelled.
func Do(ctx context.Context, p Policy, fn func() error) error {
	_, err := DoValue(ctx, p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoValue runs fn and returns its result, retrying per the policy.
func DoValue[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	p = p.normalise()

	var zero T
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.delay(attempt)
			logger.Debug("retrying after %v (attempt %d/%d): %v",
				delay, attempt, p.MaxRetries, lastErr)

			select {
			case <-ctx.Done():
				return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if p.RetryIf != nil && !p.RetryIf(err) {
			return zero, err
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxRetries+1, lastErr)
}

// delay computes the wait before the given retry attempt (1-based).
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}

	if p.Jitter {
		jitter := d * 0.25
		d += (rand.Float64()*2 - 1) * jitter
	}

	if d < float64(p.InitialDelay) {
		d = float64(p.InitialDelay)
	}

	return time.Duration(d)
}
