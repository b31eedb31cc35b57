package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type attempt20261019 struct {
	bun.BaseModel `bun:"table:attempts"`

	ID               string            `bun:"id,pk"`
	UserID           string            `bun:"user_id,notnull"`
	QuizID           string            `bun:"quiz_id,notnull"`
	SpecializationID string            `bun:"specialization_id,notnull"`
	Status           string            `bun:"status,notnull"`
	StartedAt        time.Time         `bun:"started_at,notnull"`
	SubmittedAt      *time.Time        `bun:"submitted_at"`
	RawScore         *int              `bun:"raw_score"`
	Percentage       *float64          `bun:"percentage"`
	Total            int               `bun:"total,notnull"`
	TimeLimitSeconds int               `bun:"time_limit_seconds,notnull"`
	Answers          map[string]string `bun:"answers"`
}

type readiness20261019 struct {
	bun.BaseModel `bun:"table:specialization_readiness"`

	UserID           string    `bun:"user_id,pk"`
	SpecializationID string    `bun:"specialization_id,pk"`
	Score            float64   `bun:"score,notnull"`
	AttemptCount     int       `bun:"attempt_count,notnull"`
	ScoreSumTenths   int64     `bun:"score_sum_tenths,notnull"`
	UpdatedAt        time.Time `bun:"updated_at,notnull"`
}

type benchmark20261019 struct {
	bun.BaseModel `bun:"table:peer_benchmarks"`

	SpecializationID string    `bun:"specialization_id,pk"`
	UserID           string    `bun:"user_id,pk"`
	Score            float64   `bun:"score,notnull"`
	Percentile       float64   `bun:"percentile,notnull"`
	ComputedAt       time.Time `bun:"computed_at,notnull"`
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				_, err := tx.NewCreateTable().Model((*attempt20261019)(nil)).IfNotExists().
					ForeignKey(`("user_id") REFERENCES "users" ("id")`).
					ForeignKey(`("quiz_id") REFERENCES "quizzes" ("id")`).
					Exec(ctx)
				if err != nil {
					return fmt.Errorf("create attempts: %w", err)
				}
				_, err = tx.NewCreateTable().Model((*readiness20261019)(nil)).IfNotExists().
					ForeignKey(`("user_id") REFERENCES "users" ("id")`).
					ForeignKey(`("specialization_id") REFERENCES "specializations" ("id")`).
					Exec(ctx)
				if err != nil {
					return fmt.Errorf("create specialization_readiness: %w", err)
				}
				_, err = tx.NewCreateTable().Model((*benchmark20261019)(nil)).IfNotExists().
					ForeignKey(`("specialization_id") REFERENCES "specializations" ("id")`).
					Exec(ctx)
				if err != nil {
					return fmt.Errorf("create peer_benchmarks: %w", err)
				}

				_, err = tx.NewCreateIndex().Model((*attempt20261019)(nil)).
					Index("attempts_user_quiz_idx").Column("user_id", "quiz_id").IfNotExists().
					Exec(ctx)
				if err != nil {
					return fmt.Errorf("create attempts index: %w", err)
				}
				_, err = tx.NewCreateIndex().Model((*readiness20261019)(nil)).
					Index("readiness_specialization_idx").Column("specialization_id").IfNotExists().
					Exec(ctx)
				if err != nil {
					return fmt.Errorf("create readiness index: %w", err)
				}
				return nil
			})
		},
		func(ctx context.Context, db *bun.DB) error {
			for _, model := range []interface{}{
				(*benchmark20261019)(nil),
				(*readiness20261019)(nil),
				(*attempt20261019)(nil),
			} {
				if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
