package app

import (
	"fmt"

	"github.com/shopspring/decimal"

	"quiz-readiness-service/internal/domain"
)

// GradeResult is the outcome of grading one submission.
type GradeResult struct {
	Raw     int
	Total   int
	Results []domain.QuestionResult
}

// Grade validates the submission against the quiz and scores it: one point per
// question whose chosen option is flagged correct. It is a pure function.
func Grade(quiz domain.Quiz, submission domain.Submission) (GradeResult, error) {
	if err := validateSubmission(quiz, submission); err != nil {
		return GradeResult{}, err
	}

	result := GradeResult{
		Total:   len(quiz.Questions),
		Results: make([]domain.QuestionResult, 0, len(quiz.Questions)),
	}
	for _, question := range quiz.Questions {
		chosen := submission[question.ID]
		qr := domain.QuestionResult{
			QuestionID:     question.ID,
			SelectedOption: chosen,
			Explanation:    question.Explanation,
		}
		for _, opt := range question.Options {
			if opt.ID == chosen {
				qr.SelectedLabel = opt.Label
				qr.Correct = opt.Correct
			}
			if opt.Correct {
				qr.CorrectOption = opt.ID
				qr.CorrectLabel = opt.Label
			}
		}
		if qr.Correct {
			qr.EarnedPoints = 1
			result.Raw++
		}
		result.Results = append(result.Results, qr)
	}
	return result, nil
}

// validateSubmission requires the submission to answer every question exactly
// once with an option belonging to that question.
func validateSubmission(quiz domain.Quiz, submission domain.Submission) error {
	if len(submission) != len(quiz.Questions) {
		return fmt.Errorf("%w: expected %d answers, got %d", domain.ErrInvalidSubmission, len(quiz.Questions), len(submission))
	}
	for _, question := range quiz.Questions {
		chosen, ok := submission[question.ID]
		if !ok {
			return fmt.Errorf("%w: missing answer for question %s", domain.ErrInvalidSubmission, question.ID)
		}
		if !hasOption(question, chosen) {
			return fmt.Errorf("%w: option %s does not belong to question %s", domain.ErrInvalidSubmission, chosen, question.ID)
		}
	}
	return nil
}

func hasOption(question domain.Question, optionID string) bool {
	for _, opt := range question.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// SubmissionFromList builds a Submission from ordered (question, option) pairs,
// rejecting a question answered more than once.
func SubmissionFromList(answers []domain.QuestionAnswer) (domain.Submission, error) {
	out := make(domain.Submission, len(answers))
	for _, a := range answers {
		if _, dup := out[a.QuestionID]; dup {
			return nil, fmt.Errorf("%w: question %s answered more than once", domain.ErrInvalidSubmission, a.QuestionID)
		}
		out[a.QuestionID] = a.OptionID
	}
	return out, nil
}

// Percentage returns raw/total*100 rounded to one decimal, half to even.
func Percentage(raw, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(raw)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		RoundBank(1)
	f, _ := pct.Float64()
	return f
}

// Passed reports whether pct meets the quiz passing score. A zero passing
// score means every finished attempt passes.
func Passed(quiz domain.Quiz, pct float64) bool {
	return pct >= quiz.PassingScore
}
