package domain

import "fmt"

// ValidateQuiz checks catalog invariants: at least one question, unique IDs,
// and exactly one correct option per question.
func ValidateQuiz(q Quiz) error {
	if q.ID == "" || q.SpecializationID == "" {
		return fmt.Errorf("%w: quiz and specialization ids are required", ErrInvalidQuiz)
	}
	if q.Difficulty < 1 || q.Difficulty > 5 {
		return fmt.Errorf("%w: quiz %s difficulty %d outside 1-5", ErrInvalidQuiz, q.ID, q.Difficulty)
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: quiz %s has no questions", ErrInvalidQuiz, q.ID)
	}
	seenQuestions := make(map[string]struct{}, len(q.Questions))
	seenOptions := make(map[string]struct{})
	for _, question := range q.Questions {
		if _, dup := seenQuestions[question.ID]; dup {
			return fmt.Errorf("%w: duplicate question %s", ErrInvalidQuiz, question.ID)
		}
		seenQuestions[question.ID] = struct{}{}

		correct := 0
		for _, opt := range question.Options {
			if _, dup := seenOptions[opt.ID]; dup {
				return fmt.Errorf("%w: duplicate option %s", ErrInvalidQuiz, opt.ID)
			}
			seenOptions[opt.ID] = struct{}{}
			if opt.Correct {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("%w: question %s has %d correct options", ErrInvalidQuiz, question.ID, correct)
		}
	}
	return nil
}

// PublicQuiz returns a copy safe to hand to a quiz-taker: correct flags and
// explanations are stripped.
func PublicQuiz(q Quiz) Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Explanation = ""
		opts := make([]Option, len(question.Options))
		for j, opt := range question.Options {
			opt.Correct = false
			opts[j] = opt
		}
		question.Options = opts
		out.Questions[i] = question
	}
	return out
}
