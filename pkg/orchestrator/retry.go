package orchestrator

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

// RetryConfig controls how storage calls are retried while the database is
// briefly unavailable (a locked SQLite file, a dropped Postgres connection).
// Waits grow from InitialBackoff by BackoffMultiplier up to MaxBackoff, each
// randomized by ±JitterFraction.
type RetryConfig struct {
	MaxAttempts       int // including the first call
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	JitterFraction    float64
}

// DefaultRetryConfig is used for job writes: five attempts from 100ms to 5s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2,
		JitterFraction:    0.1,
	}
}

// ClaimRetryConfig backs off longer so workers do not hammer the database during outages.
func ClaimRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2,
		JitterFraction:    0.2,
	}
}

// retryWithBackoff executes the operation with exponential backoff on failure.
// It stops early on context cancellation and on errors IsRetryableError rejects.
func retryWithBackoff(ctx context.Context, config RetryConfig, operation func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if !IsRetryableError(lastErr) {
			return lastErr
		}
		if attempt >= config.MaxAttempts {
			break
		}

		wait := backoff + time.Duration(float64(backoff)*config.JitterFraction*(rand.Float64()*2-1))
		if wait < 0 {
			wait = backoff
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return lastErr
}

// IsRetryableError determines if a storage error is worth retrying.
// Lifecycle sentinels (lost ownership, lost race, fingerprint conflict) are answers, not outages.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case errors.Is(err, core.ErrJobNotOwned),
		errors.Is(err, core.ErrJobNotFound),
		errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrDuplicateFingerprint),
		errors.Is(err, core.ErrAlreadyEnqueued):
		return false
	}
	return true
}

// Backoff is the delay schedule between automatic retries of a failed job.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff returns a 1s base doubling up to one minute.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Max: time.Minute}
}

// Delay returns base·2^(retries-1), capped at Max.
func (b Backoff) Delay(retries int) time.Duration {
	if retries < 1 {
		retries = 1
	}
	d := b.Base
	for i := 1; i < retries; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}
