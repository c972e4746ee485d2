package contestcore

import (
	"context"
	"time"
)

// ContestRepository is C3/C4/C5's read access to durable contest metadata.
type ContestRepository interface {
	GetContest(ctx context.Context, contestID string) (Contest, error)
	GetOrderedQuestions(ctx context.Context, contestID string) ([]ContestQuestion, error)
	CountParticipants(ctx context.Context, contestID string) (int, error)
	IsParticipant(ctx context.Context, contestID, userID string) (bool, error)
	GetOptionsFor(ctx context.Context, questionID string) ([]Option, error)
	// ListContests returns every contest's identity and window, for C6's
	// subscribe_contests snapshot. Not named in spec.md's collaborator list
	// (which only covers C3/C4/C5's single-contest reads); added for the
	// public fan-out channel, which has no other way to enumerate contests.
	ListContests(ctx context.Context) ([]Contest, error)
}

// SubmissionRepository is C3's durable store for Submission rows.
type SubmissionRepository interface {
	FindSubmission(ctx context.Context, userID, contestID, questionID string) (*Submission, error)
	CreateOrUpdateSubmission(ctx context.Context, s Submission) (Submission, error)
	ListSubmissions(ctx context.Context, contestID, questionID string) ([]Submission, error)
	ListCorrectWithPoints(ctx context.Context, userID, contestID string) ([]Submission, error)
}

// LeaderboardSnapshotRepository persists final leaderboard rows.
type LeaderboardSnapshotRepository interface {
	UpsertMany(ctx context.Context, rows []LeaderboardSnapshot) error
}

// CodeGrader delegates CODING-question execution to the external sandboxed
// engine. The core never executes user code itself.
type CodeGrader interface {
	Grade(ctx context.Context, code, language, questionID string) (Verdict, error)
}

// TokenVerifier authenticates a bearer token presented on a session
// handshake, returning the caller's identity and role.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (userID string, role string, err error)
}

// LeaderboardIndex is C2's contract: a sorted-index-backed per-contest
// ranking with durable snapshot-on-completion.
type LeaderboardIndex interface {
	UpdateScore(ctx context.Context, contestID, userID string, score int) error
	TopN(ctx context.Context, contestID string, n int) ([]LeaderboardEntry, error)
	GetUserRank(ctx context.Context, contestID, userID string) (*LeaderboardEntry, error)
	TotalParticipants(ctx context.Context, contestID string) (int, error)
	PersistLeaderboard(ctx context.Context, contestID string) error
}

// Broadcaster is C4's narrow view of C5/C6: post a named event to every
// session in a contest's room, or to a single targeted session. Kept
// separate from the realtime package's concrete Hub type so the
// orchestrator never imports the transport layer directly.
type Broadcaster interface {
	BroadcastToRoom(contestID string, event string, data interface{})
	SendToSession(contestID, userID string, event string, data interface{})
}

// SubmissionResult is what C3 returns to its caller (C5) after a successful
// Submit.
type SubmissionResult struct {
	SubmissionID string
	IsCorrect    bool
	PointsEarned int
	TimeTaken    time.Duration
	CurrentScore int
	CurrentRank  int
}
