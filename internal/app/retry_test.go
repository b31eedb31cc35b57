package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"quiz-readiness-service/internal/domain"
)

func TestRetryRetriesContentionOnce(t *testing.T) {
	calls := 0
	err := withContentionRetry(context.Background(), RetryConfig{MaxAttempts: 2, Backoff: time.Millisecond}, func() error {
		calls++
		return fmt.Errorf("lock: %w", domain.ErrContention)
	})
	if !errors.Is(err, domain.ErrContention) {
		t.Fatalf("expected contention, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetrySucceedsOnSecondTry(t *testing.T) {
	calls := 0
	err := withContentionRetry(context.Background(), RetryConfig{MaxAttempts: 2, Backoff: time.Millisecond}, func() error {
		calls++
		if calls == 1 {
			return domain.ErrContention
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success after retry, err=%v calls=%d", err, calls)
	}
}

func TestRetryIgnoresOtherErrors(t *testing.T) {
	calls := 0
	err := withContentionRetry(context.Background(), DefaultRetry(), func() error {
		calls++
		return domain.ErrInvalidSubmission
	})
	if !errors.Is(err, domain.ErrInvalidSubmission) || calls != 1 {
		t.Fatalf("expected single invalid-submission call, err=%v calls=%d", err, calls)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withContentionRetry(ctx, RetryConfig{MaxAttempts: 3, Backoff: time.Second}, func() error {
		return domain.ErrContention
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
