package sqlstore_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"quiz-readiness-service/internal/app"
	"quiz-readiness-service/internal/domain"
	"quiz-readiness-service/internal/infra/memory"
	"quiz-readiness-service/internal/infra/sqlstore"
)

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := sqlstore.OpenSQLite(filepath.Join(t.TempDir(), "quiz.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlstore.Migrate(context.Background(), db))
	return db
}

func seedCatalog(t *testing.T, db *bun.DB) *sqlstore.Catalog {
	t.Helper()
	ctx := context.Background()
	catalog := sqlstore.NewCatalog(db)
	sample := memory.Sample()
	for _, spec := range sample.Specializations {
		require.NoError(t, catalog.SaveSpecialization(ctx, spec, spec))
	}
	for _, user := range sample.Users {
		require.NoError(t, catalog.SaveUser(ctx, user, user))
	}
	for _, quiz := range sample.Quizzes {
		require.NoError(t, catalog.SaveQuiz(ctx, quiz))
	}
	return catalog
}

func newService(t *testing.T, db *bun.DB, catalog *sqlstore.Catalog, now *time.Time) *app.AttemptService {
	t.Helper()
	opts := []app.Option{app.WithRetry(app.RetryConfig{MaxAttempts: 3, Backoff: 10 * time.Millisecond})}
	if now != nil {
		opts = append(opts, app.WithClock(func() time.Time { return *now }))
	}
	return app.NewAttemptService(
		sqlstore.NewStore(db, 2*time.Second),
		memory.NewQuizCache(catalog, time.Minute),
		catalog,
		opts...,
	)
}

func correctAnswers(quiz domain.Quiz, correct int) domain.Submission {
	sub := domain.Submission{}
	for i, q := range quiz.Questions {
		for _, o := range q.Options {
			if o.Correct == (i < correct) {
				sub[q.ID] = o.ID
				break
			}
		}
	}
	return sub
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, sqlstore.Migrate(context.Background(), db))
}

func TestCatalogRoundTrip(t *testing.T) {
	db := openTestDB(t)
	catalog := seedCatalog(t, db)
	ctx := context.Background()

	want := memory.Sample().Quizzes[0]
	got, err := catalog.LoadQuiz(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = catalog.LoadQuiz(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)

	ok, err := catalog.UserExists(ctx, "user-alice")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = catalog.SpecializationExists(ctx, "spec-nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCatalogRejectsInvalidQuiz(t *testing.T) {
	db := openTestDB(t)
	catalog := seedCatalog(t, db)

	bad := memory.Sample().Quizzes[1]
	bad.Questions[0].Options[1].Correct = false
	err := catalog.SaveQuiz(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrInvalidQuiz)
}

func TestSubmitPersistsEverything(t *testing.T) {
	db := openTestDB(t)
	catalog := seedCatalog(t, db)
	service := newService(t, db, catalog, nil)
	ctx := context.Background()
	quiz := memory.Sample().Quizzes[0]

	attempt, err := service.StartAttempt(ctx, "user-alice", quiz.ID)
	require.NoError(t, err)

	res, err := service.SubmitAttempt(ctx, attempt.ID, correctAnswers(quiz, 2))
	require.NoError(t, err)
	assert.Equal(t, 66.7, *res.Attempt.Percentage)

	stored, err := service.GetAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptSubmitted, stored.Status)
	assert.Equal(t, 2, *stored.RawScore)
	assert.Len(t, stored.Answers, 3)

	readiness, err := service.Readiness(ctx, "user-alice", quiz.SpecializationID)
	require.NoError(t, err)
	assert.Equal(t, 66.7, readiness.Score)
	assert.Equal(t, int64(667), readiness.ScoreSumTenths)

	_, err = service.SubmitAttempt(ctx, attempt.ID, correctAnswers(quiz, 3))
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)

	result, err := service.AttemptResult(ctx, attempt.ID)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Len(t, result.Results, 3)
}

func TestBenchmarksReplaced(t *testing.T) {
	db := openTestDB(t)
	catalog := seedCatalog(t, db)
	service := newService(t, db, catalog, nil)
	ctx := context.Background()
	quiz := memory.Sample().Quizzes[1]

	for user, correct := range map[string]int{"user-alice": 1, "user-bob": 2} {
		attempt, err := service.StartAttempt(ctx, user, quiz.ID)
		require.NoError(t, err)
		_, err = service.SubmitAttempt(ctx, attempt.ID, correctAnswers(quiz, correct))
		require.NoError(t, err)
	}

	standings, err := service.Standings(ctx, quiz.SpecializationID, 0)
	require.NoError(t, err)
	require.Len(t, standings, 2)
	assert.Equal(t, "user-bob", standings[0].UserID)
	assert.Equal(t, 100.0, standings[0].Percentile)
	assert.Equal(t, "user-alice", standings[1].UserID)
	assert.Equal(t, 0.0, standings[1].Percentile)
}

func TestExpiredAttemptIsCommitted(t *testing.T) {
	db := openTestDB(t)
	catalog := seedCatalog(t, db)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	service := newService(t, db, catalog, &now)
	ctx := context.Background()
	quiz := memory.Sample().Quizzes[0]

	attempt, err := service.StartAttempt(ctx, "user-carol", quiz.ID)
	require.NoError(t, err)

	now = now.Add(11 * time.Minute)
	_, err = service.SubmitAttempt(ctx, attempt.ID, correctAnswers(quiz, 3))
	assert.ErrorIs(t, err, domain.ErrExpired)

	stored, err := service.GetAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptExpired, stored.Status)
	assert.Nil(t, stored.RawScore)
}

func TestConcurrentSubmitsSerialize(t *testing.T) {
	db := openTestDB(t)
	catalog := seedCatalog(t, db)
	service := newService(t, db, catalog, nil)
	ctx := context.Background()
	quiz := memory.Sample().Quizzes[0]

	scores := []int{3, 0, 2, 1, 3, 2}
	ids := make([]string, len(scores))
	for i := range scores {
		attempt, err := service.StartAttempt(ctx, "user-bob", quiz.ID)
		require.NoError(t, err)
		ids[i] = attempt.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, len(scores))
	for i := range scores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.SubmitAttempt(ctx, ids[i], correctAnswers(quiz, scores[i]))
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, fmt.Sprintf("submit %d", i))
	}

	var expected *domain.SpecializationReadiness
	for _, correct := range scores {
		next := app.FoldReadiness(expected, "user-bob", quiz.SpecializationID, app.Percentage(correct, 3), time.Now())
		expected = &next
	}
	readiness, err := service.Readiness(ctx, "user-bob", quiz.SpecializationID)
	require.NoError(t, err)
	assert.Equal(t, len(scores), readiness.AttemptCount)
	assert.Equal(t, expected.Score, readiness.Score)
}

func TestStoreRollsBack(t *testing.T) {
	db := openTestDB(t)
	seedCatalog(t, db)
	store := sqlstore.NewStore(db, time.Second)
	ctx := context.Background()

	err := store.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error {
		if err := tx.LockSpecialization(ctx, "spec-missing"); err != nil {
			return err
		}
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrSpecializationNotFound)

	_, err = store.GetReadiness(ctx, "user-alice", "spec-backend")
	assert.ErrorIs(t, err, domain.ErrReadinessNotFound)
	_, err = store.GetAttempt(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrAttemptNotFound)
}
