package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"quiz-readiness-service/internal/domain"
)

type specializationModel struct {
	bun.BaseModel `bun:"table:specializations,alias:s"`

	ID   string `bun:"id,pk"`
	Name string `bun:"name,notnull"`
}

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          string    `bun:"id,pk"`
	DisplayName string    `bun:"display_name,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

type quizModel struct {
	bun.BaseModel `bun:"table:quizzes,alias:qz"`

	ID               string           `bun:"id,pk"`
	SpecializationID string           `bun:"specialization_id,notnull"`
	Title            string           `bun:"title,notnull"`
	Difficulty       int              `bun:"difficulty,notnull"`
	DurationMinutes  int              `bun:"duration_minutes,notnull"`
	PassingScore     float64          `bun:"passing_score,notnull"`
	Questions        []*questionModel `bun:"rel:has-many,join:id=quiz_id"`
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:qn"`

	ID          string         `bun:"id,pk"`
	QuizID      string         `bun:"quiz_id,notnull"`
	Prompt      string         `bun:"prompt,notnull"`
	Position    int            `bun:"position,notnull"`
	Explanation string         `bun:"explanation,notnull"`
	Options     []*optionModel `bun:"rel:has-many,join:id=question_id"`
}

type optionModel struct {
	bun.BaseModel `bun:"table:options,alias:opt"`

	ID         string `bun:"id,pk"`
	QuestionID string `bun:"question_id,notnull"`
	Label      string `bun:"label,notnull"`
	Body       string `bun:"body,notnull"`
	IsCorrect  bool   `bun:"is_correct,notnull"`
	Position   int    `bun:"position,notnull"`
}

type attemptModel struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

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
	Answers          map[string]string `bun:"answers,nullzero"`
}

type readinessModel struct {
	bun.BaseModel `bun:"table:specialization_readiness,alias:r"`

	UserID           string    `bun:"user_id,pk"`
	SpecializationID string    `bun:"specialization_id,pk"`
	Score            float64   `bun:"score,notnull"`
	AttemptCount     int       `bun:"attempt_count,notnull"`
	ScoreSumTenths   int64     `bun:"score_sum_tenths,notnull"`
	UpdatedAt        time.Time `bun:"updated_at,notnull"`
}

type benchmarkModel struct {
	bun.BaseModel `bun:"table:peer_benchmarks,alias:pb"`

	SpecializationID string    `bun:"specialization_id,pk"`
	UserID           string    `bun:"user_id,pk"`
	Score            float64   `bun:"score,notnull"`
	Percentile       float64   `bun:"percentile,notnull"`
	ComputedAt       time.Time `bun:"computed_at,notnull"`
}

func attemptFromDomain(a domain.Attempt) *attemptModel {
	return &attemptModel{
		ID:               a.ID,
		UserID:           a.UserID,
		QuizID:           a.QuizID,
		SpecializationID: a.SpecializationID,
		Status:           string(a.Status),
		StartedAt:        a.StartedAt,
		SubmittedAt:      a.SubmittedAt,
		RawScore:         a.RawScore,
		Percentage:       a.Percentage,
		Total:            a.Total,
		TimeLimitSeconds: a.TimeLimitSeconds,
		Answers:          a.Answers,
	}
}

func (m *attemptModel) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:               m.ID,
		UserID:           m.UserID,
		QuizID:           m.QuizID,
		SpecializationID: m.SpecializationID,
		Status:           domain.AttemptStatus(m.Status),
		StartedAt:        m.StartedAt.UTC(),
		SubmittedAt:      utcPtr(m.SubmittedAt),
		RawScore:         m.RawScore,
		Percentage:       m.Percentage,
		Total:            m.Total,
		TimeLimitSeconds: m.TimeLimitSeconds,
		Answers:          m.Answers,
	}
}

func readinessFromDomain(r domain.SpecializationReadiness) *readinessModel {
	return &readinessModel{
		UserID:           r.UserID,
		SpecializationID: r.SpecializationID,
		Score:            r.Score,
		AttemptCount:     r.AttemptCount,
		ScoreSumTenths:   r.ScoreSumTenths,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (m *readinessModel) toDomain() domain.SpecializationReadiness {
	return domain.SpecializationReadiness{
		UserID:           m.UserID,
		SpecializationID: m.SpecializationID,
		Score:            m.Score,
		AttemptCount:     m.AttemptCount,
		ScoreSumTenths:   m.ScoreSumTenths,
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

func (m *benchmarkModel) toDomain() domain.PeerBenchmarkSnapshot {
	return domain.PeerBenchmarkSnapshot{
		SpecializationID: m.SpecializationID,
		UserID:           m.UserID,
		Score:            m.Score,
		Percentile:       m.Percentile,
		ComputedAt:       m.ComputedAt.UTC(),
	}
}

func (m *quizModel) toDomain() domain.Quiz {
	quiz := domain.Quiz{
		ID:               m.ID,
		SpecializationID: m.SpecializationID,
		Title:            m.Title,
		Difficulty:       m.Difficulty,
		DurationMinutes:  m.DurationMinutes,
		PassingScore:     m.PassingScore,
		Questions:        make([]domain.Question, 0, len(m.Questions)),
	}
	for _, qm := range m.Questions {
		question := domain.Question{
			ID:          qm.ID,
			QuizID:      qm.QuizID,
			Prompt:      qm.Prompt,
			Order:       qm.Position,
			Explanation: qm.Explanation,
			Options:     make([]domain.Option, 0, len(qm.Options)),
		}
		for _, om := range qm.Options {
			question.Options = append(question.Options, domain.Option{
				ID:         om.ID,
				QuestionID: om.QuestionID,
				Label:      om.Label,
				Text:       om.Body,
				Correct:    om.IsCorrect,
			})
		}
		quiz.Questions = append(quiz.Questions, question)
	}
	return quiz
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
