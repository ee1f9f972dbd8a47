package request

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig bounds the retry loop around one fetch.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// InitialDelay is the backoff before the second attempt.
	InitialDelay time.Duration
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration
	// Factor is the exponential growth factor between attempts.
	Factor float64
	// Jitter randomizes each delay within [1-Jitter, 1+Jitter] so callers
	// failing together do not retry together.
	Jitter float64
}

// DefaultRetryConfig returns the coordinator-wide defaults: three total
// attempts, 100ms initial delay doubling up to 5s, 10% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Factor:       2,
		Jitter:       0.1,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Factor < 1 {
		c.Factor = d.Factor
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		c.Jitter = d.Jitter
	}
	return c
}

// delay computes the jittered exponential backoff after the given 1-based
// failed attempt.
func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.Factor, float64(attempt-1))
	d = min(d, float64(c.MaxDelay))
	if c.Jitter > 0 {
		d *= 1 + c.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(d)
}

// retryFetch runs fetch under the retry policy. Terminal errors and
// cancellation return immediately; retryable errors back off first.
func retryFetch(ctx context.Context, cfg RetryConfig, fetch fetchFunc) (any, error) {
	cfg = cfg.normalized()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, cfg.delay(attempt-1)); err != nil {
				return nil, errors.Join(err, lastErr)
			}
		}

		v, err := fetch(ctx)
		if err == nil {
			return v, nil
		}
		if !Retryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
