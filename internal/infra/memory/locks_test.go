package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"quiz-readiness-service/internal/domain"
)

func TestLockTableDropsIdleSlots(t *testing.T) {
	locks := newLockTable()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("attempt:%d", i)
		if err := locks.acquire(ctx, key, time.Second); err != nil {
			t.Fatalf("acquire %s: %v", key, err)
		}
		locks.release(key)
	}
	if n := locks.size(); n != 0 {
		t.Fatalf("expected no idle slots, got %d", n)
	}
}

func TestLockTableKeepsSlotWhileWaited(t *testing.T) {
	locks := newLockTable()
	ctx := context.Background()

	if err := locks.acquire(ctx, "k", time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	got := make(chan error, 1)
	go func() { got <- locks.acquire(ctx, "k", 2*time.Second) }()

	time.Sleep(20 * time.Millisecond)
	locks.release("k")
	if err := <-got; err != nil {
		t.Fatalf("waiter should get the lock after release: %v", err)
	}
	if n := locks.size(); n != 1 {
		t.Fatalf("held slot must stay, got %d slots", n)
	}

	if err := locks.acquire(ctx, "k", 10*time.Millisecond); !errors.Is(err, domain.ErrContention) {
		t.Fatalf("expected contention, got %v", err)
	}
	locks.release("k")
	if n := locks.size(); n != 0 {
		t.Fatalf("expected slot dropped after last release, got %d", n)
	}
}
