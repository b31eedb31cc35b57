package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-readiness-service/internal/domain"
)

// Catalog reads and writes quiz content, users and specializations. It also
// serves as the app.Directory for SQL deployments.
type Catalog struct {
	db *bun.DB
}

func NewCatalog(db *bun.DB) *Catalog {
	return &Catalog{db: db}
}

// LoadQuiz returns the quiz with questions and options in stored order.
func (c *Catalog) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	m := new(quizModel)
	err := c.db.NewSelect().Model(m).
		Relation("Questions", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Relation("Questions.Options", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Where("qz.id = ?", quizID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return m.toDomain(), nil
}

// SaveQuiz validates and upserts a quiz, replacing its questions and options.
func (c *Catalog) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	if err := domain.ValidateQuiz(quiz); err != nil {
		return err
	}

	return c.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		qm := &quizModel{
			ID:               quiz.ID,
			SpecializationID: quiz.SpecializationID,
			Title:            quiz.Title,
			Difficulty:       quiz.Difficulty,
			DurationMinutes:  quiz.DurationMinutes,
			PassingScore:     quiz.PassingScore,
		}
		_, err := tx.NewInsert().Model(qm).
			On("CONFLICT (id) DO UPDATE").
			Set("specialization_id = EXCLUDED.specialization_id").
			Set("title = EXCLUDED.title").
			Set("difficulty = EXCLUDED.difficulty").
			Set("duration_minutes = EXCLUDED.duration_minutes").
			Set("passing_score = EXCLUDED.passing_score").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert quiz: %w", err)
		}

		// options cascade with their questions
		if _, err := tx.NewDelete().Model((*questionModel)(nil)).Where("quiz_id = ?", quiz.ID).Exec(ctx); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}

		questions := make([]questionModel, 0, len(quiz.Questions))
		var options []optionModel
		for i, q := range quiz.Questions {
			position := q.Order
			if position == 0 {
				position = i + 1
			}
			questions = append(questions, questionModel{
				ID:          q.ID,
				QuizID:      quiz.ID,
				Prompt:      q.Prompt,
				Position:    position,
				Explanation: q.Explanation,
			})
			for j, o := range q.Options {
				options = append(options, optionModel{
					ID:         o.ID,
					QuestionID: q.ID,
					Label:      o.Label,
					Body:       o.Text,
					IsCorrect:  o.Correct,
					Position:   j + 1,
				})
			}
		}
		if _, err := tx.NewInsert().Model(&questions).Exec(ctx); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		if len(options) > 0 {
			if _, err := tx.NewInsert().Model(&options).Exec(ctx); err != nil {
				return fmt.Errorf("insert options: %w", err)
			}
		}
		return nil
	})
}

func (c *Catalog) SaveSpecialization(ctx context.Context, id, name string) error {
	_, err := c.db.NewInsert().Model(&specializationModel{ID: id, Name: name}).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save specialization: %w", err)
	}
	return nil
}

func (c *Catalog) SaveUser(ctx context.Context, id, displayName string) error {
	_, err := c.db.NewInsert().Model(&userModel{ID: id, DisplayName: displayName, CreatedAt: time.Now().UTC()}).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (c *Catalog) UserExists(ctx context.Context, userID string) (bool, error) {
	return c.db.NewSelect().Model((*userModel)(nil)).Where("u.id = ?", userID).Exists(ctx)
}

func (c *Catalog) SpecializationExists(ctx context.Context, specializationID string) (bool, error) {
	return c.db.NewSelect().Model((*specializationModel)(nil)).Where("s.id = ?", specializationID).Exists(ctx)
}
