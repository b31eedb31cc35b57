package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"quiz-readiness-service/internal/app"
	"quiz-readiness-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. Row locks are emulated
// with per-key semaphores; writes are staged per transaction and applied on
// commit.
type Store struct {
	lockTimeout time.Duration
	locks       *lockTable

	mu              sync.RWMutex
	specializations map[string]struct{}
	attempts        map[string]domain.Attempt
	readiness       map[readinessKey]domain.SpecializationReadiness
	benchmarks      map[string][]domain.PeerBenchmarkSnapshot
}

type readinessKey struct {
	userID           string
	specializationID string
}

// NewStore returns an empty store. A lock that cannot be taken within
// lockTimeout fails the transaction with domain.ErrContention.
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		lockTimeout:     lockTimeout,
		locks:           newLockTable(),
		specializations: make(map[string]struct{}),
		attempts:        make(map[string]domain.Attempt),
		readiness:       make(map[readinessKey]domain.SpecializationReadiness),
		benchmarks:      make(map[string][]domain.PeerBenchmarkSnapshot),
	}
}

// AddSpecialization registers a specialization row that submits can lock.
func (s *Store) AddSpecialization(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.specializations[id] = struct{}{}
	}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	tx := &memTx{
		store:      s,
		held:       make(map[string]struct{}),
		attempts:   make(map[string]domain.Attempt),
		readiness:  make(map[readinessKey]domain.SpecializationReadiness),
		benchmarks: make(map[string][]domain.PeerBenchmarkSnapshot),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *Store) GetAttempt(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(attempt), nil
}

func (s *Store) GetReadiness(_ context.Context, userID, specializationID string) (domain.SpecializationReadiness, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.readiness[readinessKey{userID, specializationID}]
	if !ok {
		return domain.SpecializationReadiness{}, domain.ErrReadinessNotFound
	}
	return row, nil
}

func (s *Store) ListBenchmarks(_ context.Context, specializationID string) ([]domain.PeerBenchmarkSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snaps := s.benchmarks[specializationID]
	out := make([]domain.PeerBenchmarkSnapshot, len(snaps))
	copy(out, snaps)
	return out, nil
}

type memTx struct {
	store *Store
	held  map[string]struct{}

	attempts   map[string]domain.Attempt
	readiness  map[readinessKey]domain.SpecializationReadiness
	benchmarks map[string][]domain.PeerBenchmarkSnapshot
}

func (tx *memTx) lock(ctx context.Context, key string) error {
	if _, ok := tx.held[key]; ok {
		return nil
	}
	if err := tx.store.locks.acquire(ctx, key, tx.store.lockTimeout); err != nil {
		return err
	}
	tx.held[key] = struct{}{}
	return nil
}

func (tx *memTx) release() {
	for key := range tx.held {
		tx.store.locks.release(key)
	}
}

func (tx *memTx) commit() {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, attempt := range tx.attempts {
		s.attempts[id] = attempt
	}
	for key, row := range tx.readiness {
		s.readiness[key] = row
	}
	for specID, snaps := range tx.benchmarks {
		s.benchmarks[specID] = snaps
	}
}

func (tx *memTx) InsertAttempt(ctx context.Context, attempt domain.Attempt) error {
	if err := tx.lock(ctx, "attempt:"+attempt.ID); err != nil {
		return err
	}
	if _, err := tx.readAttempt(attempt.ID); err == nil {
		return fmt.Errorf("insert attempt %s: duplicate id", attempt.ID)
	}
	tx.attempts[attempt.ID] = cloneAttempt(attempt)
	return nil
}

func (tx *memTx) LockAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	if err := tx.lock(ctx, "attempt:"+attemptID); err != nil {
		return domain.Attempt{}, err
	}
	return tx.readAttempt(attemptID)
}

func (tx *memTx) UpdateAttempt(_ context.Context, attempt domain.Attempt) error {
	if _, ok := tx.held["attempt:"+attempt.ID]; !ok {
		return fmt.Errorf("update attempt %s: row not locked", attempt.ID)
	}
	if _, err := tx.readAttempt(attempt.ID); err != nil {
		return err
	}
	tx.attempts[attempt.ID] = cloneAttempt(attempt)
	return nil
}

func (tx *memTx) LockSpecialization(ctx context.Context, specializationID string) error {
	tx.store.mu.RLock()
	_, ok := tx.store.specializations[specializationID]
	tx.store.mu.RUnlock()
	if !ok {
		return domain.ErrSpecializationNotFound
	}
	return tx.lock(ctx, "specialization:"+specializationID)
}

func (tx *memTx) FindReadiness(_ context.Context, userID, specializationID string) (*domain.SpecializationReadiness, error) {
	key := readinessKey{userID, specializationID}
	if row, ok := tx.readiness[key]; ok {
		return &row, nil
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	if row, ok := tx.store.readiness[key]; ok {
		return &row, nil
	}
	return nil, nil
}

func (tx *memTx) SaveReadiness(_ context.Context, row domain.SpecializationReadiness) error {
	tx.readiness[readinessKey{row.UserID, row.SpecializationID}] = row
	return nil
}

func (tx *memTx) ListReadiness(_ context.Context, specializationID string) ([]domain.SpecializationReadiness, error) {
	merged := make(map[string]domain.SpecializationReadiness)
	tx.store.mu.RLock()
	for key, row := range tx.store.readiness {
		if key.specializationID == specializationID {
			merged[key.userID] = row
		}
	}
	tx.store.mu.RUnlock()
	for key, row := range tx.readiness {
		if key.specializationID == specializationID {
			merged[key.userID] = row
		}
	}

	rows := make([]domain.SpecializationReadiness, 0, len(merged))
	for _, row := range merged {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })
	return rows, nil
}

func (tx *memTx) ReplaceBenchmarks(_ context.Context, specializationID string, snaps []domain.PeerBenchmarkSnapshot) error {
	out := make([]domain.PeerBenchmarkSnapshot, len(snaps))
	copy(out, snaps)
	tx.benchmarks[specializationID] = out
	return nil
}

func (tx *memTx) readAttempt(attemptID string) (domain.Attempt, error) {
	if attempt, ok := tx.attempts[attemptID]; ok {
		return cloneAttempt(attempt), nil
	}
	return tx.store.GetAttempt(context.Background(), attemptID)
}

func cloneAttempt(a domain.Attempt) domain.Attempt {
	out := a
	if a.SubmittedAt != nil {
		t := *a.SubmittedAt
		out.SubmittedAt = &t
	}
	if a.RawScore != nil {
		v := *a.RawScore
		out.RawScore = &v
	}
	if a.Percentage != nil {
		v := *a.Percentage
		out.Percentage = &v
	}
	if a.Answers != nil {
		out.Answers = make(map[string]string, len(a.Answers))
		for k, v := range a.Answers {
			out.Answers[k] = v
		}
	}
	return out
}
