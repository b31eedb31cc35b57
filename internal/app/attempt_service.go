package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"quiz-readiness-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Directory answers existence questions owned by user management and the
// hierarchy catalog.
type Directory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	SpecializationExists(ctx context.Context, specializationID string) (bool, error)
}

// Store is the transactional persistence for attempts, readiness and benchmarks.
type Store interface {
	// RunInTx runs fn in one transaction. A lock that cannot be acquired in
	// bounded time fails with domain.ErrContention.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error)
	GetReadiness(ctx context.Context, userID, specializationID string) (domain.SpecializationReadiness, error)
	ListBenchmarks(ctx context.Context, specializationID string) ([]domain.PeerBenchmarkSnapshot, error)
}

// Tx is the set of operations available inside Store.RunInTx.
type Tx interface {
	InsertAttempt(ctx context.Context, attempt domain.Attempt) error
	// LockAttempt reads the attempt and holds it until commit.
	LockAttempt(ctx context.Context, attemptID string) (domain.Attempt, error)
	UpdateAttempt(ctx context.Context, attempt domain.Attempt) error
	// LockSpecialization serializes aggregation and benchmark recompute for
	// one specialization. Unknown IDs fail with domain.ErrSpecializationNotFound.
	LockSpecialization(ctx context.Context, specializationID string) error
	// FindReadiness returns nil when the user has no row yet.
	FindReadiness(ctx context.Context, userID, specializationID string) (*domain.SpecializationReadiness, error)
	SaveReadiness(ctx context.Context, readiness domain.SpecializationReadiness) error
	ListReadiness(ctx context.Context, specializationID string) ([]domain.SpecializationReadiness, error)
	// ReplaceBenchmarks overwrites every snapshot of the specialization.
	ReplaceBenchmarks(ctx context.Context, specializationID string, snaps []domain.PeerBenchmarkSnapshot) error
}

// BenchmarkPublisher is notified after a recompute commits. Failures are
// logged, never surfaced to the submitter.
type BenchmarkPublisher interface {
	PublishBenchmark(ctx context.Context, specializationID string, snaps []domain.PeerBenchmarkSnapshot) error
}

// StandingsBoard serves ordered standings from a faster read model.
type StandingsBoard interface {
	BenchmarkPublisher
	Top(ctx context.Context, specializationID string, limit int) ([]domain.PeerBenchmarkSnapshot, error)
}

// AttemptService contains the attempt scoring and readiness use cases.
type AttemptService struct {
	store      Store
	quizzes    QuizRepository
	directory  Directory
	publishers []BenchmarkPublisher
	board      StandingsBoard
	timeLimit  time.Duration
	retry      RetryConfig
	now        func() time.Time
	newID      func() string
}

// Option customizes an AttemptService.
type Option func(*AttemptService)

// WithTimeLimit sets the default attempt time limit used when a quiz has no duration.
func WithTimeLimit(d time.Duration) Option {
	return func(s *AttemptService) { s.timeLimit = d }
}

// WithRetry overrides the contention retry policy.
func WithRetry(cfg RetryConfig) Option {
	return func(s *AttemptService) { s.retry = cfg }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *AttemptService) { s.now = now }
}

// WithPublisher adds a post-commit benchmark listener.
func WithPublisher(p BenchmarkPublisher) Option {
	return func(s *AttemptService) { s.publishers = append(s.publishers, p) }
}

// WithStandingsBoard serves standings from board and keeps it updated.
func WithStandingsBoard(board StandingsBoard) Option {
	return func(s *AttemptService) {
		s.board = board
		s.publishers = append(s.publishers, board)
	}
}

func NewAttemptService(store Store, quizzes QuizRepository, directory Directory, opts ...Option) *AttemptService {
	s := &AttemptService{
		store:     store,
		quizzes:   quizzes,
		directory: directory,
		timeLimit: 30 * time.Minute,
		retry:     DefaultRetry(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartAttempt creates a pending attempt for userID at quizID.
func (s *AttemptService) StartAttempt(ctx context.Context, userID, quizID string) (domain.Attempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if s.directory != nil {
		ok, err := s.directory.UserExists(ctx, userID)
		if err != nil {
			return domain.Attempt{}, err
		}
		if !ok {
			return domain.Attempt{}, domain.ErrUserNotFound
		}
	}

	limit := s.timeLimit
	if quiz.DurationMinutes > 0 {
		limit = time.Duration(quiz.DurationMinutes) * time.Minute
	}
	attempt := domain.Attempt{
		ID:               s.newID(),
		UserID:           userID,
		QuizID:           quiz.ID,
		SpecializationID: quiz.SpecializationID,
		Status:           domain.AttemptPending,
		StartedAt:        s.now(),
		Total:            len(quiz.Questions),
		TimeLimitSeconds: int(limit / time.Second),
	}

	err = withContentionRetry(ctx, s.retry, func() error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.InsertAttempt(ctx, attempt)
		})
	})
	if err != nil {
		return domain.Attempt{}, err
	}
	return attempt, nil
}

// SubmitAttempt grades the submission and folds it into readiness and
// benchmarks, all in one transaction.
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID string, submission domain.Submission) (domain.SubmitResult, error) {
	var (
		result  domain.SubmitResult
		expired bool
	)
	err := withContentionRetry(ctx, s.retry, func() error {
		var err error
		result, expired, err = s.submitOnce(ctx, attemptID, submission)
		return err
	})
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if expired {
		return result, fmt.Errorf("%w: deadline was %s", domain.ErrExpired, result.Attempt.Deadline().Format(time.RFC3339))
	}

	s.publish(ctx, result.Attempt.SpecializationID, result.Peers)
	return result, nil
}

func (s *AttemptService) submitOnce(ctx context.Context, attemptID string, submission domain.Submission) (domain.SubmitResult, bool, error) {
	var (
		result  domain.SubmitResult
		expired bool
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		attempt, err := tx.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if attempt.Status != domain.AttemptPending {
			return domain.ErrAlreadyFinalized
		}

		quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
		if err != nil {
			return err
		}

		now := s.now()
		if now.Sub(attempt.StartedAt) > attempt.TimeLimit() {
			attempt.Status = domain.AttemptExpired
			if err := tx.UpdateAttempt(ctx, attempt); err != nil {
				return err
			}
			result.Attempt = attempt
			expired = true
			return nil
		}

		graded, err := Grade(quiz, submission)
		if err != nil {
			return err
		}
		if err := tx.LockSpecialization(ctx, quiz.SpecializationID); err != nil {
			return err
		}
		prev, err := tx.FindReadiness(ctx, attempt.UserID, quiz.SpecializationID)
		if err != nil {
			return err
		}

		pct := Percentage(graded.Raw, graded.Total)
		raw := graded.Raw
		attempt.Status = domain.AttemptSubmitted
		attempt.SubmittedAt = &now
		attempt.RawScore = &raw
		attempt.Percentage = &pct
		attempt.Answers = copySubmission(submission)
		if err := tx.UpdateAttempt(ctx, attempt); err != nil {
			return err
		}

		readiness := FoldReadiness(prev, attempt.UserID, quiz.SpecializationID, pct, now)
		if err := tx.SaveReadiness(ctx, readiness); err != nil {
			return err
		}

		rows, err := tx.ListReadiness(ctx, quiz.SpecializationID)
		if err != nil {
			return err
		}
		snaps := ComputeBenchmarks(quiz.SpecializationID, rows, now)
		if err := tx.ReplaceBenchmarks(ctx, quiz.SpecializationID, snaps); err != nil {
			return err
		}

		result = domain.SubmitResult{
			Attempt:   attempt,
			Readiness: readiness,
			Benchmark: findSnapshot(snaps, attempt.UserID),
			Results:   graded.Results,
			Passed:    Passed(quiz, pct),
			Peers:     snaps,
		}
		return nil
	})
	if err != nil {
		return domain.SubmitResult{}, false, err
	}
	return result, expired, nil
}

// GetAttempt returns the stored attempt.
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	return s.store.GetAttempt(ctx, attemptID)
}

// AttemptResult rebuilds the graded view of a submitted attempt.
func (s *AttemptService) AttemptResult(ctx context.Context, attemptID string) (domain.SubmitResult, error) {
	attempt, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if attempt.Status != domain.AttemptSubmitted {
		return domain.SubmitResult{Attempt: attempt}, nil
	}

	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	graded, err := Grade(quiz, attempt.Answers)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("regrade attempt %s: %w", attemptID, err)
	}
	readiness, err := s.store.GetReadiness(ctx, attempt.UserID, attempt.SpecializationID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	snaps, err := s.store.ListBenchmarks(ctx, attempt.SpecializationID)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	pct := Percentage(graded.Raw, graded.Total)
	return domain.SubmitResult{
		Attempt:   attempt,
		Readiness: readiness,
		Benchmark: findSnapshot(snaps, attempt.UserID),
		Results:   graded.Results,
		Passed:    Passed(quiz, pct),
	}, nil
}

// Readiness returns the user's readiness row for a specialization.
func (s *AttemptService) Readiness(ctx context.Context, userID, specializationID string) (domain.SpecializationReadiness, error) {
	return s.store.GetReadiness(ctx, userID, specializationID)
}

// Standings returns the specialization's benchmark snapshots, best first.
// limit <= 0 returns every row.
func (s *AttemptService) Standings(ctx context.Context, specializationID string, limit int) ([]domain.PeerBenchmarkSnapshot, error) {
	if s.board != nil {
		snaps, err := s.board.Top(ctx, specializationID, limit)
		if err == nil && len(snaps) > 0 {
			return snaps, nil
		}
		if err != nil {
			log.Printf("standings board read failed for %s, falling back to store: %v", specializationID, err)
		}
	}

	snaps, err := s.store.ListBenchmarks(ctx, specializationID)
	if err != nil {
		return nil, err
	}
	SortStandings(snaps)
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps, nil
}

// GetQuiz returns the public (answer-free) view of a quiz.
func (s *AttemptService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return domain.PublicQuiz(quiz), nil
}

func (s *AttemptService) publish(ctx context.Context, specializationID string, snaps []domain.PeerBenchmarkSnapshot) {
	for _, p := range s.publishers {
		if err := p.PublishBenchmark(ctx, specializationID, snaps); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("publish benchmark for %s: %v", specializationID, err)
		}
	}
}

func findSnapshot(snaps []domain.PeerBenchmarkSnapshot, userID string) domain.PeerBenchmarkSnapshot {
	for _, snap := range snaps {
		if snap.UserID == userID {
			return snap
		}
	}
	return domain.PeerBenchmarkSnapshot{}
}

func copySubmission(sub domain.Submission) map[string]string {
	out := make(map[string]string, len(sub))
	for k, v := range sub {
		out[k] = v
	}
	return out
}
