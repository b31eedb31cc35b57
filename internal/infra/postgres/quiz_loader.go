package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-readiness-service/internal/domain"
)

// QuizLoader reads a quiz with one joined query over pgx, skipping the ORM on
// the hot catalog path.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

const loadQuizSQL = `
SELECT qz.id, qz.specialization_id, qz.title, qz.difficulty, qz.duration_minutes, qz.passing_score,
       qn.id, qn.prompt, qn.position, qn.explanation,
       o.id, o.label, o.body, o.is_correct
FROM quizzes qz
JOIN questions qn ON qn.quiz_id = qz.id
JOIN options o ON o.question_id = qn.id
WHERE qz.id = $1
ORDER BY qn.position, o.position`

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	rows, err := l.pool.Query(ctx, loadQuizSQL, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	defer rows.Close()

	var quiz domain.Quiz
	for rows.Next() {
		var (
			question domain.Question
			option   domain.Option
		)
		err := rows.Scan(
			&quiz.ID, &quiz.SpecializationID, &quiz.Title, &quiz.Difficulty, &quiz.DurationMinutes, &quiz.PassingScore,
			&question.ID, &question.Prompt, &question.Order, &question.Explanation,
			&option.ID, &option.Label, &option.Text, &option.Correct,
		)
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("scan quiz row: %w", err)
		}

		n := len(quiz.Questions)
		if n == 0 || quiz.Questions[n-1].ID != question.ID {
			question.QuizID = quiz.ID
			quiz.Questions = append(quiz.Questions, question)
			n++
		}
		option.QuestionID = question.ID
		quiz.Questions[n-1].Options = append(quiz.Questions[n-1].Options, option)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	if quiz.ID == "" {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}
