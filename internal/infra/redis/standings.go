package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"

	"quiz-readiness-service/internal/app"
	"quiz-readiness-service/internal/domain"
)

// StandingsBoard mirrors benchmark snapshots into Redis:
//
//	ZSET standings:{spec}          member=userID score=rank key
//	HASH standings:{spec}:entries  userID -> snapshot JSON
//
// Every publish replaces both keys in one MULTI so readers never see a mix of
// two recomputes.
type StandingsBoard struct {
	client *redis.Client
}

func NewStandingsBoard(client *redis.Client) *StandingsBoard {
	return &StandingsBoard{client: client}
}

func (b *StandingsBoard) PublishBenchmark(ctx context.Context, specializationID string, snaps []domain.PeerBenchmarkSnapshot) error {
	zkey, hkey := standingsKeys(specializationID)

	members := make([]redis.Z, 0, len(snaps))
	entries := make(map[string]interface{}, len(snaps))
	for _, snap := range snaps {
		raw, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		members = append(members, redis.Z{Score: rankKey(snap), Member: snap.UserID})
		entries[snap.UserID] = raw
	}

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, zkey, hkey)
		if len(members) > 0 {
			pipe.ZAdd(ctx, zkey, members...)
			pipe.HSet(ctx, hkey, entries)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish standings %s: %w", specializationID, err)
	}
	return nil
}

// Top returns up to limit snapshots, best first. limit <= 0 returns all.
// Redis orders equal rank keys by member descending, so when the cut falls
// inside a tie the whole tie group is read and ordered before truncating.
func (b *StandingsBoard) Top(ctx context.Context, specializationID string, limit int) ([]domain.PeerBenchmarkSnapshot, error) {
	zkey, hkey := standingsKeys(specializationID)
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ranked, err := b.client.ZRevRangeWithScores(ctx, zkey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read standings %s: %w", specializationID, err)
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	members := make([]string, 0, len(ranked))
	seen := make(map[string]struct{}, len(ranked))
	for _, z := range ranked {
		m := z.Member.(string)
		members = append(members, m)
		seen[m] = struct{}{}
	}
	if limit > 0 && len(ranked) == limit {
		edge := strconv.FormatFloat(ranked[len(ranked)-1].Score, 'f', -1, 64)
		tied, err := b.client.ZRangeByScore(ctx, zkey, &redis.ZRangeBy{Min: edge, Max: edge}).Result()
		if err != nil {
			return nil, fmt.Errorf("read standings tie %s: %w", specializationID, err)
		}
		for _, m := range tied {
			if _, ok := seen[m]; !ok {
				members = append(members, m)
				seen[m] = struct{}{}
			}
		}
	}

	raws, err := b.client.HMGet(ctx, hkey, members...).Result()
	if err != nil {
		return nil, fmt.Errorf("read standings entries %s: %w", specializationID, err)
	}

	out := make([]domain.PeerBenchmarkSnapshot, 0, len(raws))
	for i, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("standings entry for %s missing", members[i])
		}
		var snap domain.PeerBenchmarkSnapshot
		if err := json.Unmarshal([]byte(s), &snap); err != nil {
			return nil, fmt.Errorf("decode standings entry %s: %w", members[i], err)
		}
		out = append(out, snap)
	}
	app.SortStandings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func standingsKeys(specializationID string) (string, string) {
	zkey := "standings:" + specializationID
	return zkey, zkey + ":entries"
}

// rankKey packs percentile (tenths) and score (1e-4 units) into one exact
// integer so the sorted set orders by percentile, then score.
func rankKey(snap domain.PeerBenchmarkSnapshot) float64 {
	percentile := math.Round(snap.Percentile * 10)
	score := math.Round(snap.Score * 1e4)
	return percentile*1e7 + score
}
