package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the common root of every missing-entity error.
	ErrNotFound = errors.New("not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrAttemptNotFound is returned when no attempt exists for the given ID.
	ErrAttemptNotFound = fmt.Errorf("attempt %w", ErrNotFound)
	// ErrUserNotFound is returned when the user directory does not know the user.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrSpecializationNotFound is returned when a quiz references an unknown specialization.
	ErrSpecializationNotFound = fmt.Errorf("specialization %w", ErrNotFound)
	// ErrReadinessNotFound is returned when a user has no attempts in a specialization yet.
	ErrReadinessNotFound = fmt.Errorf("readiness %w", ErrNotFound)

	// ErrInvalidSubmission covers wrong question sets, duplicates and unknown options.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrAlreadyFinalized is returned when submitting an attempt that is no longer pending.
	ErrAlreadyFinalized = errors.New("attempt already finalized")
	// ErrExpired is returned when an attempt is submitted past its time limit.
	ErrExpired = errors.New("attempt expired")
	// ErrContention signals a lock or serialization conflict; callers may retry.
	ErrContention = errors.New("contention on attempt data")
	// ErrForbidden is returned when the caller does not own the attempt.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidQuiz is returned by ValidateQuiz for malformed catalog content.
	ErrInvalidQuiz = errors.New("invalid quiz")
)
