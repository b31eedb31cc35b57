package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"quiz-readiness-service/internal/app"
	"quiz-readiness-service/internal/domain"
)

// Store implements app.Store on bun. On Postgres transactions run at read
// committed with explicit row locks and a local lock_timeout; on SQLite the
// connection-level BEGIN IMMEDIATE serializes writers.
type Store struct {
	db          *bun.DB
	lockTimeout time.Duration
}

func NewStore(db *bun.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

func (s *Store) postgres() bool {
	return s.db.Dialect().Name() == dialect.PG
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	var opts *sql.TxOptions
	if s.postgres() {
		opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}

	err := s.db.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
		if s.postgres() && s.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return fn(ctx, &sqlTx{tx: tx, lockRows: s.postgres()})
	})
	return classify(err)
}

func (s *Store) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	m := new(attemptModel)
	err := s.db.NewSelect().Model(m).Where("a.id = ?", attemptID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", classify(err))
	}
	return m.toDomain(), nil
}

func (s *Store) GetReadiness(ctx context.Context, userID, specializationID string) (domain.SpecializationReadiness, error) {
	m := new(readinessModel)
	err := s.db.NewSelect().Model(m).
		Where("r.user_id = ?", userID).
		Where("r.specialization_id = ?", specializationID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SpecializationReadiness{}, domain.ErrReadinessNotFound
	}
	if err != nil {
		return domain.SpecializationReadiness{}, fmt.Errorf("get readiness: %w", classify(err))
	}
	return m.toDomain(), nil
}

func (s *Store) ListBenchmarks(ctx context.Context, specializationID string) ([]domain.PeerBenchmarkSnapshot, error) {
	var models []benchmarkModel
	err := s.db.NewSelect().Model(&models).
		Where("pb.specialization_id = ?", specializationID).
		Order("pb.percentile DESC", "pb.score DESC", "pb.user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list benchmarks: %w", classify(err))
	}
	out := make([]domain.PeerBenchmarkSnapshot, 0, len(models))
	for i := range models {
		out = append(out, models[i].toDomain())
	}
	return out, nil
}

type sqlTx struct {
	tx       bun.Tx
	lockRows bool
}

// forUpdate adds a row lock where the dialect supports one.
func (t *sqlTx) forUpdate(q *bun.SelectQuery) *bun.SelectQuery {
	if t.lockRows {
		return q.For("UPDATE")
	}
	return q
}

func (t *sqlTx) InsertAttempt(ctx context.Context, attempt domain.Attempt) error {
	if _, err := t.tx.NewInsert().Model(attemptFromDomain(attempt)).Exec(ctx); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (t *sqlTx) LockAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	m := new(attemptModel)
	err := t.forUpdate(t.tx.NewSelect().Model(m).Where("a.id = ?", attemptID)).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("lock attempt: %w", err)
	}
	return m.toDomain(), nil
}

func (t *sqlTx) UpdateAttempt(ctx context.Context, attempt domain.Attempt) error {
	res, err := t.tx.NewUpdate().Model(attemptFromDomain(attempt)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (t *sqlTx) LockSpecialization(ctx context.Context, specializationID string) error {
	m := new(specializationModel)
	err := t.forUpdate(t.tx.NewSelect().Model(m).Column("id").Where("s.id = ?", specializationID)).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrSpecializationNotFound
	}
	if err != nil {
		return fmt.Errorf("lock specialization: %w", err)
	}
	return nil
}

func (t *sqlTx) FindReadiness(ctx context.Context, userID, specializationID string) (*domain.SpecializationReadiness, error) {
	m := new(readinessModel)
	err := t.forUpdate(t.tx.NewSelect().Model(m).
		Where("r.user_id = ?", userID).
		Where("r.specialization_id = ?", specializationID)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find readiness: %w", err)
	}
	row := m.toDomain()
	return &row, nil
}

func (t *sqlTx) SaveReadiness(ctx context.Context, readiness domain.SpecializationReadiness) error {
	_, err := t.tx.NewInsert().Model(readinessFromDomain(readiness)).
		On("CONFLICT (user_id, specialization_id) DO UPDATE").
		Set("score = EXCLUDED.score").
		Set("attempt_count = EXCLUDED.attempt_count").
		Set("score_sum_tenths = EXCLUDED.score_sum_tenths").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save readiness: %w", err)
	}
	return nil
}

func (t *sqlTx) ListReadiness(ctx context.Context, specializationID string) ([]domain.SpecializationReadiness, error) {
	var models []readinessModel
	err := t.tx.NewSelect().Model(&models).
		Where("r.specialization_id = ?", specializationID).
		Order("r.user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list readiness: %w", err)
	}
	out := make([]domain.SpecializationReadiness, 0, len(models))
	for i := range models {
		out = append(out, models[i].toDomain())
	}
	return out, nil
}

func (t *sqlTx) ReplaceBenchmarks(ctx context.Context, specializationID string, snaps []domain.PeerBenchmarkSnapshot) error {
	_, err := t.tx.NewDelete().Model((*benchmarkModel)(nil)).
		Where("specialization_id = ?", specializationID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("clear benchmarks: %w", err)
	}
	if len(snaps) == 0 {
		return nil
	}

	models := make([]benchmarkModel, 0, len(snaps))
	for _, snap := range snaps {
		models = append(models, benchmarkModel{
			SpecializationID: specializationID,
			UserID:           snap.UserID,
			Score:            snap.Score,
			Percentile:       snap.Percentile,
			ComputedAt:       snap.ComputedAt,
		})
	}
	if _, err := t.tx.NewInsert().Model(&models).Exec(ctx); err != nil {
		return fmt.Errorf("insert benchmarks: %w", err)
	}
	return nil
}
