package app

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"quiz-readiness-service/internal/domain"
)

// RetryConfig controls how contention errors are retried.
type RetryConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetry retries a contended transaction once after ~50ms.
func DefaultRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 2, Backoff: 50 * time.Millisecond}
}

// withContentionRetry runs fn and re-runs it while it fails with
// domain.ErrContention, up to cfg.MaxAttempts runs in total.
func withContentionRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrContention) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered(cfg.Backoff, attempt)):
		}
	}
	return lastErr
}

// jittered doubles base per attempt and adds ±20% jitter.
func jittered(base time.Duration, attempt int) time.Duration {
	wait := float64(base) * float64(int64(1)<<attempt)
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
