package memory

import "quiz-readiness-service/internal/domain"

// SampleCatalog is the demo data set used when no database is configured.
type SampleCatalog struct {
	Quizzes         []domain.Quiz
	Users           []string
	Specializations []string
}

// Sample returns a small catalog: two quizzes in one specialization and three users.
func Sample() SampleCatalog {
	return SampleCatalog{
		Quizzes: []domain.Quiz{
			{
				ID:               "quiz-go-basics",
				SpecializationID: "spec-backend",
				Title:            "Go basics",
				Difficulty:       2,
				DurationMinutes:  10,
				PassingScore:     60,
				Questions: []domain.Question{
					sampleQuestion("quiz-go-basics", "q-zero", 1, "What is the zero value of a map?", "The zero value of a map is nil.", 1,
						"an empty map", "nil", "a panic", "undefined"),
					sampleQuestion("quiz-go-basics", "q-defer", 2, "When do deferred calls run?", "Deferred calls run when the surrounding function returns.", 2,
						"immediately", "at the end of the block", "when the function returns", "on garbage collection"),
					sampleQuestion("quiz-go-basics", "q-chan", 3, "What does receiving from a closed channel return?", "A closed channel yields the zero value.", 0,
						"the zero value", "an error", "it blocks forever", "it panics"),
				},
			},
			{
				ID:               "quiz-sql",
				SpecializationID: "spec-backend",
				Title:            "SQL transactions",
				Difficulty:       3,
				PassingScore:     50,
				Questions: []domain.Question{
					sampleQuestion("quiz-sql", "q-iso", 1, "Which isolation level prevents dirty reads at minimum?", "", 1,
						"read uncommitted", "read committed", "none", "snapshot only"),
					sampleQuestion("quiz-sql", "q-lock", 2, "What does SELECT ... FOR UPDATE do?", "It locks the selected rows until the transaction ends.", 0,
						"locks the selected rows", "updates the rows", "creates an index", "nothing outside a procedure"),
				},
			},
		},
		Users:           []string{"user-alice", "user-bob", "user-carol"},
		Specializations: []string{"spec-backend"},
	}
}

func sampleQuestion(quizID, id string, order int, prompt, explanation string, correct int, texts ...string) domain.Question {
	q := domain.Question{
		ID:          id,
		QuizID:      quizID,
		Prompt:      prompt,
		Order:       order,
		Explanation: explanation,
	}
	labels := []string{"A", "B", "C", "D"}
	for i, text := range texts {
		q.Options = append(q.Options, domain.Option{
			ID:         id + "-" + labels[i],
			QuestionID: id,
			Label:      labels[i],
			Text:       text,
			Correct:    i == correct,
		})
	}
	return q
}
