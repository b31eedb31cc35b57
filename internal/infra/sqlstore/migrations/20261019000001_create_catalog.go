package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Schema snapshots as of this migration; later model changes must not leak in.
type specialization20261019 struct {
	bun.BaseModel `bun:"table:specializations"`

	ID   string `bun:"id,pk"`
	Name string `bun:"name,notnull"`
}

type user20261019 struct {
	bun.BaseModel `bun:"table:users"`

	ID          string    `bun:"id,pk"`
	DisplayName string    `bun:"display_name,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

type quiz20261019 struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID               string  `bun:"id,pk"`
	SpecializationID string  `bun:"specialization_id,notnull"`
	Title            string  `bun:"title,notnull"`
	Difficulty       int     `bun:"difficulty,notnull"`
	DurationMinutes  int     `bun:"duration_minutes,notnull"`
	PassingScore     float64 `bun:"passing_score,notnull"`
}

type question20261019 struct {
	bun.BaseModel `bun:"table:questions"`

	ID          string `bun:"id,pk"`
	QuizID      string `bun:"quiz_id,notnull"`
	Prompt      string `bun:"prompt,notnull"`
	Position    int    `bun:"position,notnull"`
	Explanation string `bun:"explanation,notnull"`
}

type option20261019 struct {
	bun.BaseModel `bun:"table:options"`

	ID         string `bun:"id,pk"`
	QuestionID string `bun:"question_id,notnull"`
	Label      string `bun:"label,notnull"`
	Body       string `bun:"body,notnull"`
	IsCorrect  bool   `bun:"is_correct,notnull"`
	Position   int    `bun:"position,notnull"`
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				tables := []struct {
					model interface{}
					fks   []string
				}{
					{model: (*specialization20261019)(nil)},
					{model: (*user20261019)(nil)},
					{model: (*quiz20261019)(nil), fks: []string{
						`("specialization_id") REFERENCES "specializations" ("id")`,
					}},
					{model: (*question20261019)(nil), fks: []string{
						`("quiz_id") REFERENCES "quizzes" ("id") ON DELETE CASCADE`,
					}},
					{model: (*option20261019)(nil), fks: []string{
						`("question_id") REFERENCES "questions" ("id") ON DELETE CASCADE`,
					}},
				}
				for _, table := range tables {
					q := tx.NewCreateTable().Model(table.model).IfNotExists()
					for _, fk := range table.fks {
						q = q.ForeignKey(fk)
					}
					if _, err := q.Exec(ctx); err != nil {
						return fmt.Errorf("create table: %w", err)
					}
				}

				indexes := []struct {
					model  interface{}
					name   string
					column string
				}{
					{(*quiz20261019)(nil), "quizzes_specialization_idx", "specialization_id"},
					{(*question20261019)(nil), "questions_quiz_idx", "quiz_id"},
					{(*option20261019)(nil), "options_question_idx", "question_id"},
				}
				for _, idx := range indexes {
					_, err := tx.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.column).IfNotExists().Exec(ctx)
					if err != nil {
						return fmt.Errorf("create index %s: %w", idx.name, err)
					}
				}
				return nil
			})
		},
		func(ctx context.Context, db *bun.DB) error {
			for _, model := range []interface{}{
				(*option20261019)(nil),
				(*question20261019)(nil),
				(*quiz20261019)(nil),
				(*user20261019)(nil),
				(*specialization20261019)(nil),
			} {
				if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
