package redis

import (
	"context"
	"testing"
	"time"

	"quiz-readiness-service/internal/domain"
)

func TestStandingsBoardOrdersAndReplaces(t *testing.T) {
	mr, client := newClient(t)
	board := NewStandingsBoard(client)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	err := board.PublishBenchmark(ctx, "spec-1", []domain.PeerBenchmarkSnapshot{
		{SpecializationID: "spec-1", UserID: "low", Score: 20, Percentile: 0, ComputedAt: now},
		{SpecializationID: "spec-1", UserID: "mid", Score: 55.5, Percentile: 50, ComputedAt: now},
		{SpecializationID: "spec-1", UserID: "top", Score: 91.25, Percentile: 100, ComputedAt: now},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !mr.Exists("standings:spec-1") || !mr.Exists("standings:spec-1:entries") {
		t.Fatalf("expected standings keys")
	}

	all, err := board.Top(ctx, "spec-1", 0)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(all) != 3 || all[0].UserID != "top" || all[1].UserID != "mid" || all[2].UserID != "low" {
		t.Fatalf("unexpected order %+v", all)
	}
	if all[0].Score != 91.25 || !all[0].ComputedAt.Equal(now) {
		t.Fatalf("snapshot fields lost: %+v", all[0])
	}

	top1, err := board.Top(ctx, "spec-1", 1)
	if err != nil || len(top1) != 1 || top1[0].UserID != "top" {
		t.Fatalf("expected single top entry, got %+v err=%v", top1, err)
	}

	err = board.PublishBenchmark(ctx, "spec-1", []domain.PeerBenchmarkSnapshot{
		{SpecializationID: "spec-1", UserID: "solo", Score: 70, Percentile: 100, ComputedAt: now},
	})
	if err != nil {
		t.Fatalf("republish: %v", err)
	}
	all, _ = board.Top(ctx, "spec-1", 0)
	if len(all) != 1 || all[0].UserID != "solo" {
		t.Fatalf("expected stale rows removed, got %+v", all)
	}
}

func TestStandingsBoardTieBreaksOnScore(t *testing.T) {
	_, client := newClient(t)
	board := NewStandingsBoard(client)
	ctx := context.Background()

	_ = board.PublishBenchmark(ctx, "spec-1", []domain.PeerBenchmarkSnapshot{
		{UserID: "a", Score: 50, Percentile: 0},
		{UserID: "b", Score: 50.0001, Percentile: 0},
	})
	got, err := board.Top(ctx, "spec-1", 0)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if got[0].UserID != "b" {
		t.Fatalf("expected higher score first, got %+v", got)
	}
}

func TestStandingsBoardEmpty(t *testing.T) {
	_, client := newClient(t)
	got, err := NewStandingsBoard(client).Top(context.Background(), "nobody", 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty standings, got %+v err=%v", got, err)
	}
}

func TestStandingsBoardLimitKeepsTieOrder(t *testing.T) {
	_, client := newClient(t)
	board := NewStandingsBoard(client)
	ctx := context.Background()

	err := board.PublishBenchmark(ctx, "spec-1", []domain.PeerBenchmarkSnapshot{
		{UserID: "bob", Score: 50, Percentile: 0},
		{UserID: "carol", Score: 90, Percentile: 100},
		{UserID: "alice", Score: 50, Percentile: 0},
		{UserID: "dave", Score: 50, Percentile: 0},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, err := board.Top(ctx, "spec-1", 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(got) != 2 || got[0].UserID != "carol" || got[1].UserID != "alice" {
		t.Fatalf("expected [carol alice], got %+v", got)
	}

	got, _ = board.Top(ctx, "spec-1", 3)
	if len(got) != 3 || got[2].UserID != "bob" {
		t.Fatalf("expected bob third, got %+v", got)
	}
}
