package domain

import "time"

// Option represents a possible answer for a question.
type Option struct {
	ID         string `json:"id"`
	QuestionID string `json:"questionId"`
	Label      string `json:"label"`
	Text       string `json:"text"`
	Correct    bool   `json:"isCorrect"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID          string   `json:"id"`
	QuizID      string   `json:"quizId"`
	Prompt      string   `json:"prompt"`
	Order       int      `json:"order"`
	Explanation string   `json:"explanation,omitempty"`
	Options     []Option `json:"options"`
}

// Quiz is an ordered collection of questions belonging to a specialization.
type Quiz struct {
	ID               string     `json:"id"`
	SpecializationID string     `json:"specializationId"`
	Title            string     `json:"title"`
	Difficulty       int        `json:"difficulty"`
	DurationMinutes  int        `json:"durationMinutes"` // 0 means the configured default
	PassingScore     float64    `json:"passingScore"`
	Questions        []Question `json:"questions"`
}

// AttemptStatus is the lifecycle state of an attempt.
type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "pending"
	AttemptSubmitted AttemptStatus = "submitted"
	AttemptExpired   AttemptStatus = "expired"
)

// Attempt is one user's timed pass at a quiz.
type Attempt struct {
	ID               string            `json:"id"`
	UserID           string            `json:"userId"`
	QuizID           string            `json:"quizId"`
	SpecializationID string            `json:"specializationId"`
	Status           AttemptStatus     `json:"status"`
	StartedAt        time.Time         `json:"startedAt"`
	SubmittedAt      *time.Time        `json:"submittedAt,omitempty"`
	RawScore         *int              `json:"rawScore,omitempty"`
	Percentage       *float64          `json:"percentage,omitempty"`
	Total            int               `json:"total"`
	TimeLimitSeconds int               `json:"timeLimitSeconds"`
	Answers          map[string]string `json:"-"`
}

// TimeLimit is the allowed duration between start and submit.
func (a Attempt) TimeLimit() time.Duration {
	return time.Duration(a.TimeLimitSeconds) * time.Second
}

// Deadline is the instant after which a submit is rejected.
func (a Attempt) Deadline() time.Time {
	return a.StartedAt.Add(a.TimeLimit())
}

// Submission maps question IDs to the chosen option IDs.
type Submission map[string]string

// QuestionAnswer is one entry of a list-form submission.
type QuestionAnswer struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

// QuestionResult is the graded outcome of a single question.
type QuestionResult struct {
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOptionId"`
	SelectedLabel  string `json:"selectedLabel,omitempty"`
	CorrectOption  string `json:"correctOptionId"`
	CorrectLabel   string `json:"correctLabel,omitempty"`
	Correct        bool   `json:"correct"`
	EarnedPoints   int    `json:"earnedPoints"`
	Explanation    string `json:"explanation,omitempty"`
}

// SpecializationReadiness is a user's rolling readiness score in one specialization.
type SpecializationReadiness struct {
	UserID           string    `json:"userId"`
	SpecializationID string    `json:"specializationId"`
	Score            float64   `json:"score"`
	AttemptCount     int       `json:"attemptCount"`
	ScoreSumTenths   int64     `json:"-"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// PeerBenchmarkSnapshot is a user's percentile standing among peers of a specialization.
type PeerBenchmarkSnapshot struct {
	SpecializationID string    `json:"specializationId"`
	UserID           string    `json:"userId"`
	Score            float64   `json:"score"`
	Percentile       float64   `json:"percentile"`
	ComputedAt       time.Time `json:"computedAt"`
}

// BenchmarkUpdate is pushed to live subscribers after a recompute.
type BenchmarkUpdate struct {
	SpecializationID string                  `json:"specializationId"`
	Entries          []PeerBenchmarkSnapshot `json:"entries"`
	UpdatedAt        time.Time               `json:"updatedAt"`
}

// SubmitResult is everything a successful submit produces.
type SubmitResult struct {
	Attempt   Attempt                 `json:"attempt"`
	Readiness SpecializationReadiness `json:"readiness"`
	Benchmark PeerBenchmarkSnapshot   `json:"benchmark"`
	Results   []QuestionResult        `json:"results"`
	Passed    bool                    `json:"passed"`
	Peers     []PeerBenchmarkSnapshot `json:"-"`
}
