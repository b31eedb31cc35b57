package app

import (
	"time"

	"github.com/shopspring/decimal"

	"quiz-readiness-service/internal/domain"
)

// readinessScale is the number of decimals kept on the derived readiness score.
const readinessScale = 4

// FoldReadiness folds one attempt percentage into the running average:
// newScore = (oldScore*oldCount + pct) / (oldCount + 1). A nil prev starts
// from zero. The sum is carried as exact tenths so the fold is order-independent.
func FoldReadiness(prev *domain.SpecializationReadiness, userID, specializationID string, pct float64, now time.Time) domain.SpecializationReadiness {
	next := domain.SpecializationReadiness{
		UserID:           userID,
		SpecializationID: specializationID,
	}
	if prev != nil {
		next.AttemptCount = prev.AttemptCount
		next.ScoreSumTenths = prev.ScoreSumTenths
	}
	next.AttemptCount++
	next.ScoreSumTenths += toTenths(pct)
	next.Score = averageScore(next.ScoreSumTenths, next.AttemptCount)
	next.UpdatedAt = now
	return next
}

func toTenths(pct float64) int64 {
	return decimal.NewFromFloat(pct).Shift(1).RoundBank(0).IntPart()
}

func averageScore(sumTenths int64, count int) float64 {
	if count <= 0 {
		return 0
	}
	avg := decimal.New(sumTenths, -1).DivRound(decimal.NewFromInt(int64(count)), readinessScale)
	f, _ := avg.Float64()
	return f
}
