// Package leaderboard implements C2: a Redis sorted-set-backed per-contest
// score ranking with durable snapshot-on-completion, adapted from the
// teacher's in-memory LeaderboardAggregator cache/version shape and the
// go-redis client construction already present in internal/judge/queue.go.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"competitive-programming-platform/internal/contestcore"
)

// redisCmd is the narrow subset of *redis.Client this package calls,
// letting tests substitute a fake without a real Redis server.
type redisCmd interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) *redis.ZSliceCmd
	ZRevRank(ctx context.Context, key, member string) *redis.IntCmd
	ZScore(ctx context.Context, key, member string) *redis.FloatCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

// Index is the production LeaderboardIndex, backed by two Redis sorted sets
// per contest: the score ranking itself, and a secondary "reached" set
// recording when each user attained their current score, used to break
// ties deterministically (see DESIGN.md's tiebreak decision).
type Index struct {
	redis     redisCmd
	snapshots contestcore.LeaderboardSnapshotRepository
	userNames UserNameResolver
	submitted SubmissionCounter
}

// UserNameResolver looks up a display name for a userID. Kept as a narrow
// interface so the index package never imports the user package directly.
type UserNameResolver interface {
	UserName(ctx context.Context, userID string) (string, error)
}

// SubmissionCounter answers "how many questions has this user answered
// correctly in this contest". TopN calls it once per ranked entry; the
// lookup is not batched.
type SubmissionCounter interface {
	CorrectCount(ctx context.Context, contestID, userID string) (int, error)
}

// NewIndex builds a production Index.
func NewIndex(client *redis.Client, snapshots contestcore.LeaderboardSnapshotRepository, names UserNameResolver, counter SubmissionCounter) *Index {
	return &Index{redis: client, snapshots: snapshots, userNames: names, submitted: counter}
}

func scoreKey(contestID string) string    { return fmt.Sprintf("leaderboard:%s", contestID) }
func reachedKey(contestID string) string  { return fmt.Sprintf("leaderboard:%s:reached", contestID) }

// UpdateScore overwrites a user's absolute score and records the instant
// they reached it, used as the tiebreak key. Best-effort live: on a
// transient Redis error, callers may retry with bounded backoff (this
// function itself does not retry, leaving that policy to the submission
// pipeline's call site per spec.md §4.2 Failure).
func (idx *Index) UpdateScore(ctx context.Context, contestID, userID string, score int) error {
	if err := idx.redis.ZAdd(ctx, scoreKey(contestID), redis.Z{Score: float64(score), Member: userID}).Err(); err != nil {
		return fmt.Errorf("leaderboard: update score: %w", err)
	}
	reachedAt := float64(time.Now().UnixNano())
	if err := idx.redis.ZAdd(ctx, reachedKey(contestID), redis.Z{Score: reachedAt, Member: userID}).Err(); err != nil {
		return fmt.Errorf("leaderboard: record reached time: %w", err)
	}
	return nil
}

// TopN returns dense ranks starting at 1, descending by score, ties broken
// by first-to-reach-score (earlier wins), falling back to lexicographic
// userID if two reached-times tie exactly.
func (idx *Index) TopN(ctx context.Context, contestID string, n int) ([]contestcore.LeaderboardEntry, error) {
	// Pull more than n from the score set so ties can be re-ordered by
	// reached-time without a second round trip per tied group; in practice
	// contests are small enough that reading the full set is cheap and
	// guarantees ties on the n-th boundary are resolved correctly.
	zs, err := idx.redis.ZRevRangeWithScores(ctx, scoreKey(contestID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard: topN: %w", err)
	}

	entries := make([]rankCandidate, 0, len(zs))
	for _, z := range zs {
		userID := z.Member.(string)
		reachedAt, err := idx.redis.ZScore(ctx, reachedKey(contestID), userID).Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("leaderboard: topN reached lookup: %w", err)
		}
		entries = append(entries, rankCandidate{userID: userID, score: int(z.Score), reachedAt: reachedAt})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		if entries[i].reachedAt != entries[j].reachedAt {
			return entries[i].reachedAt < entries[j].reachedAt
		}
		return entries[i].userID < entries[j].userID
	})

	if n > 0 && n < len(entries) {
		entries = entries[:n]
	}

	out := make([]contestcore.LeaderboardEntry, 0, len(entries))
	for i, c := range entries {
		name := c.userID
		if idx.userNames != nil {
			if resolved, err := idx.userNames.UserName(ctx, c.userID); err == nil && resolved != "" {
				name = resolved
			}
		}
		answered := 0
		if idx.submitted != nil {
			if cnt, err := idx.submitted.CorrectCount(ctx, contestID, c.userID); err == nil {
				answered = cnt
			}
		}
		out = append(out, contestcore.LeaderboardEntry{
			Rank:              i + 1,
			UserID:            c.userID,
			UserName:          name,
			Score:             c.score,
			QuestionsAnswered: answered,
		})
	}
	return out, nil
}

type rankCandidate struct {
	userID    string
	score     int
	reachedAt float64
}

// GetUserRank returns a single user's current entry, or nil if absent.
func (idx *Index) GetUserRank(ctx context.Context, contestID, userID string) (*contestcore.LeaderboardEntry, error) {
	score, err := idx.redis.ZScore(ctx, scoreKey(contestID), userID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("leaderboard: get user score: %w", err)
	}

	// Dense rank requires the full ordering because of the reached-time
	// tiebreak; ZRevRank alone would only give a score-tied rank.
	all, err := idx.TopN(ctx, contestID, 0)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].UserID == userID {
			return &all[i], nil
		}
	}
	// Present in the score set but missing from TopN's join (shouldn't
	// happen) — fall back to a bare entry from the score alone.
	return &contestcore.LeaderboardEntry{UserID: userID, Score: int(score)}, nil
}

// TotalParticipants reports the cardinality of the score set.
func (idx *Index) TotalParticipants(ctx context.Context, contestID string) (int, error) {
	n, err := idx.redis.ZCard(ctx, scoreKey(contestID)).Result()
	if err != nil {
		return 0, fmt.Errorf("leaderboard: total participants: %w", err)
	}
	return int(n), nil
}

// PersistLeaderboard reads the full ranking once and upserts snapshot rows
// idempotently: re-running it for the same ranking produces identical rows,
// satisfying the contest-end critical path's idempotence requirement.
func (idx *Index) PersistLeaderboard(ctx context.Context, contestID string) error {
	entries, err := idx.TopN(ctx, contestID, 0)
	if err != nil {
		return err
	}

	rows := make([]contestcore.LeaderboardSnapshot, len(entries))
	for i, e := range entries {
		rows[i] = contestcore.LeaderboardSnapshot{
			ContestID: contestID,
			UserID:    e.UserID,
			Rank:      e.Rank,
			Score:     e.Score,
		}
	}
	if err := idx.snapshots.UpsertMany(ctx, rows); err != nil {
		return fmt.Errorf("leaderboard: persist snapshot: %w", err)
	}
	return nil
}

var _ contestcore.LeaderboardIndex = (*Index)(nil)
