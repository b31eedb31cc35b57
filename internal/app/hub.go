package app

import (
	"context"
	"sync"
	"time"

	"quiz-readiness-service/internal/domain"
)

// BenchmarkHub fans benchmark recomputes out to in-process subscribers,
// keyed by specialization. It holds no authoritative state.
type BenchmarkHub struct {
	now func() time.Time

	mu          sync.Mutex
	latest      map[string]domain.BenchmarkUpdate
	subscribers map[string]map[chan domain.BenchmarkUpdate]struct{}
}

func NewBenchmarkHub() *BenchmarkHub {
	return NewBenchmarkHubWithClock(time.Now)
}

// NewBenchmarkHubWithClock allows deterministic timestamps in tests.
func NewBenchmarkHubWithClock(now func() time.Time) *BenchmarkHub {
	return &BenchmarkHub{
		now:         now,
		latest:      make(map[string]domain.BenchmarkUpdate),
		subscribers: make(map[string]map[chan domain.BenchmarkUpdate]struct{}),
	}
}

// PublishBenchmark records the newest standings and broadcasts them.
func (h *BenchmarkHub) PublishBenchmark(_ context.Context, specializationID string, snaps []domain.PeerBenchmarkSnapshot) error {
	entries := make([]domain.PeerBenchmarkSnapshot, len(snaps))
	copy(entries, snaps)
	SortStandings(entries)

	update := domain.BenchmarkUpdate{
		SpecializationID: specializationID,
		Entries:          entries,
		UpdatedAt:        h.now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[specializationID] = update
	for ch := range h.subscribers[specializationID] {
		select {
		case ch <- update:
		default:
			// slow subscriber: drop the stale update it has not read yet
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
	return nil
}

// Subscribe returns a channel of updates for one specialization. The latest
// known standings, if any, are delivered first. The caller must invoke the
// returned cancel function to avoid leaks.
func (h *BenchmarkHub) Subscribe(specializationID string) (<-chan domain.BenchmarkUpdate, func()) {
	ch := make(chan domain.BenchmarkUpdate, 8)

	h.mu.Lock()
	subs, ok := h.subscribers[specializationID]
	if !ok {
		subs = make(map[chan domain.BenchmarkUpdate]struct{})
		h.subscribers[specializationID] = subs
	}
	subs[ch] = struct{}{}
	if initial, ok := h.latest[specializationID]; ok {
		ch <- initial
	}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[specializationID]
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, specializationID)
		}
	}
	return ch, cancel
}

// SubscriberCount reports live subscribers for a specialization.
func (h *BenchmarkHub) SubscriberCount(specializationID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[specializationID])
}
