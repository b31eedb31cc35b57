package app

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"quiz-readiness-service/internal/domain"
)

// ComputeBenchmarks ranks every readiness row of a specialization.
//
// percentile = users with a strictly lower score / (users - 1) * 100, rounded
// to one decimal. Equal scores share a percentile, and a lone user sits at 100.
// Scores are compared on the exact (sum, count) pair rather than the rounded
// float.
func ComputeBenchmarks(specializationID string, rows []domain.SpecializationReadiness, now time.Time) []domain.PeerBenchmarkSnapshot {
	if len(rows) == 0 {
		return nil
	}

	sorted := make([]domain.SpecializationReadiness, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := compareReadiness(sorted[i], sorted[j]); c != 0 {
			return c < 0
		}
		return sorted[i].UserID < sorted[j].UserID
	})

	out := make([]domain.PeerBenchmarkSnapshot, len(sorted))
	if len(sorted) == 1 {
		out[0] = snapshotFor(specializationID, sorted[0], 100, now)
		return out
	}

	peers := decimal.NewFromInt(int64(len(sorted) - 1))
	lower := 0
	for i, row := range sorted {
		// first index of this score group == number of strictly lower scores
		if i > 0 && compareReadiness(sorted[i-1], row) != 0 {
			lower = i
		}
		pct := decimal.NewFromInt(int64(lower)).
			Mul(decimal.NewFromInt(100)).
			Div(peers).
			RoundBank(1)
		f, _ := pct.Float64()
		out[i] = snapshotFor(specializationID, row, f, now)
	}
	return out
}

// SortStandings orders snapshots best first, breaking ties by user ID.
func SortStandings(snaps []domain.PeerBenchmarkSnapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		if snaps[i].Percentile != snaps[j].Percentile {
			return snaps[i].Percentile > snaps[j].Percentile
		}
		if snaps[i].Score != snaps[j].Score {
			return snaps[i].Score > snaps[j].Score
		}
		return snaps[i].UserID < snaps[j].UserID
	})
}

func snapshotFor(specializationID string, row domain.SpecializationReadiness, percentile float64, now time.Time) domain.PeerBenchmarkSnapshot {
	return domain.PeerBenchmarkSnapshot{
		SpecializationID: specializationID,
		UserID:           row.UserID,
		Score:            row.Score,
		Percentile:       percentile,
		ComputedAt:       now,
	}
}

// compareReadiness compares sumA/countA with sumB/countB without rounding.
func compareReadiness(a, b domain.SpecializationReadiness) int {
	if a.AttemptCount <= 0 || b.AttemptCount <= 0 {
		return compareFloat(a.Score, b.Score)
	}
	left := a.ScoreSumTenths * int64(b.AttemptCount)
	right := b.ScoreSumTenths * int64(a.AttemptCount)
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
