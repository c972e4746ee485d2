package leaderboard

import (
	"context"
	"sort"
	"testing"

	"github.com/redis/go-redis/v9"

	"competitive-programming-platform/internal/contestcore"
)

// fakeRedis is an in-memory stand-in for the narrow redisCmd surface this
// package calls, avoiding a real Redis server in unit tests.
type fakeRedis struct {
	zsets map[string]map[string]float64
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{zsets: make(map[string]map[string]float64)}
}

func (f *fakeRedis) set(key string) map[string]float64 {
	m, ok := f.zsets[key]
	if !ok {
		m = make(map[string]float64)
		f.zsets[key] = m
	}
	return m
}

func (f *fakeRedis) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	m := f.set(key)
	for _, z := range members {
		m[z.Member.(string)] = z.Score
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(members)))
	return cmd
}

func (f *fakeRedis) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) *redis.ZSliceCmd {
	m := f.set(key)
	zs := make([]redis.Z, 0, len(m))
	for member, score := range m {
		zs = append(zs, redis.Z{Member: member, Score: score})
	}
	sort.Slice(zs, func(i, j int) bool { return zs[i].Score > zs[j].Score })
	cmd := redis.NewZSliceCmd(ctx)
	cmd.SetVal(zs)
	return cmd
}

func (f *fakeRedis) ZRevRank(ctx context.Context, key, member string) *redis.IntCmd {
	zs := f.ZRevRangeWithScores(ctx, key, 0, -1).Val()
	cmd := redis.NewIntCmd(ctx)
	for i, z := range zs {
		if z.Member.(string) == member {
			cmd.SetVal(int64(i))
			return cmd
		}
	}
	cmd.SetErr(redis.Nil)
	return cmd
}

func (f *fakeRedis) ZScore(ctx context.Context, key, member string) *redis.FloatCmd {
	cmd := redis.NewFloatCmd(ctx)
	m := f.set(key)
	score, ok := m[member]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(score)
	return cmd
}

func (f *fakeRedis) ZCard(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(f.set(key))))
	return cmd
}

func (f *fakeRedis) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(0)
	return cmd
}

func (f *fakeRedis) HGet(ctx context.Context, key, field string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	cmd.SetErr(redis.Nil)
	return cmd
}

type fakeSnapshotRepo struct {
	upserted []contestcore.LeaderboardSnapshot
	calls    int
}

func (f *fakeSnapshotRepo) UpsertMany(ctx context.Context, rows []contestcore.LeaderboardSnapshot) error {
	f.calls++
	f.upserted = rows
	return nil
}

func TestTopNDenseRankingDescending(t *testing.T) {
	r := newFakeRedis()
	snaps := &fakeSnapshotRepo{}
	idx := NewIndex(nil, snaps, nil, nil)
	idx.redis = r

	ctx := context.Background()
	idx.UpdateScore(ctx, "c1", "u1", 10)
	idx.UpdateScore(ctx, "c1", "u2", 20)
	idx.UpdateScore(ctx, "c1", "u3", 5)

	entries, err := idx.TopN(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	want := []struct {
		userID string
		rank   int
		score  int
	}{
		{"u2", 1, 20},
		{"u1", 2, 10},
		{"u3", 3, 5},
	}
	for i, w := range want {
		if entries[i].UserID != w.userID || entries[i].Rank != w.rank || entries[i].Score != w.score {
			t.Errorf("entry[%d] = %+v, want %+v", i, entries[i], w)
		}
	}
}

func TestTopNTiebreakByFirstToReach(t *testing.T) {
	r := newFakeRedis()
	snaps := &fakeSnapshotRepo{}
	idx := NewIndex(nil, snaps, nil, nil)
	idx.redis = r

	ctx := context.Background()
	// u1 reaches score 10 first, then u2 reaches score 10 later.
	idx.UpdateScore(ctx, "c1", "u1", 10)
	idx.UpdateScore(ctx, "c1", "u2", 10)

	entries, err := idx.TopN(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].UserID != "u1" || entries[0].Rank != 1 {
		t.Errorf("expected u1 to rank first (reached score earlier), got %+v", entries[0])
	}
	if entries[1].UserID != "u2" || entries[1].Rank != 2 {
		t.Errorf("expected u2 to rank second, got %+v", entries[1])
	}
}

func TestPersistLeaderboardIdempotent(t *testing.T) {
	r := newFakeRedis()
	snaps := &fakeSnapshotRepo{}
	idx := NewIndex(nil, snaps, nil, nil)
	idx.redis = r

	ctx := context.Background()
	idx.UpdateScore(ctx, "c1", "u1", 10)
	idx.UpdateScore(ctx, "c1", "u2", 20)

	if err := idx.PersistLeaderboard(ctx, "c1"); err != nil {
		t.Fatalf("PersistLeaderboard: %v", err)
	}
	first := snaps.upserted

	if err := idx.PersistLeaderboard(ctx, "c1"); err != nil {
		t.Fatalf("PersistLeaderboard (2nd): %v", err)
	}
	second := snaps.upserted

	if len(first) != len(second) {
		t.Fatalf("row counts differ between runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("row %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestGetUserRankMissingUser(t *testing.T) {
	r := newFakeRedis()
	snaps := &fakeSnapshotRepo{}
	idx := NewIndex(nil, snaps, nil, nil)
	idx.redis = r

	entry, err := idx.GetUserRank(context.Background(), "c1", "nobody")
	if err != nil {
		t.Fatalf("GetUserRank: %v", err)
	}
	if entry != nil {
		t.Errorf("expected nil entry for unknown user, got %+v", entry)
	}
}
