package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quiz-readiness-service/internal/domain"
)

// lockTable hands out one exclusive lock per key. Waiters give up after a
// bounded time instead of queueing forever. A slot lives only while some
// transaction holds or waits on it.
type lockTable struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[string]*lockSlot)}
}

// ref returns the slot for key, counting the caller as a user of it.
func (t *lockTable) ref(key string) *lockSlot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[key]
	if !ok {
		s = &lockSlot{ch: make(chan struct{}, 1)}
		t.slots[key] = s
	}
	s.refs++
	return s
}

func (t *lockTable) unref(key string, s *lockSlot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(t.slots, key)
	}
}

func (t *lockTable) acquire(ctx context.Context, key string, timeout time.Duration) error {
	s := t.ref(key)
	select {
	case s.ch <- struct{}{}:
		return nil
	default:
	}
	if timeout <= 0 {
		t.unref(key, s)
		return fmt.Errorf("%w: %s is locked", domain.ErrContention, key)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-timer.C:
		t.unref(key, s)
		return fmt.Errorf("%w: waited %s for %s", domain.ErrContention, timeout, key)
	case <-ctx.Done():
		t.unref(key, s)
		return ctx.Err()
	}
}

func (t *lockTable) release(key string) {
	t.mu.Lock()
	s := t.slots[key]
	t.mu.Unlock()
	<-s.ch
	t.unref(key, s)
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
