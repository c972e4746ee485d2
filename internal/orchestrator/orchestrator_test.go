package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"competitive-programming-platform/internal/clock"
	"competitive-programming-platform/internal/contestcore"
)

type fakeContests struct {
	mu           sync.Mutex
	contest      contestcore.Contest
	questions    []contestcore.ContestQuestion
	participants int
}

func (f *fakeContests) GetContest(ctx context.Context, id string) (contestcore.Contest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contest, nil
}
func (f *fakeContests) GetOrderedQuestions(ctx context.Context, id string) ([]contestcore.ContestQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.questions, nil
}
func (f *fakeContests) CountParticipants(ctx context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.participants, nil
}
func (f *fakeContests) IsParticipant(ctx context.Context, contestID, userID string) (bool, error) {
	return true, nil
}
func (f *fakeContests) GetOptionsFor(ctx context.Context, questionID string) ([]contestcore.Option, error) {
	return nil, nil
}
func (f *fakeContests) ListContests(ctx context.Context) ([]contestcore.Contest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []contestcore.Contest{f.contest}, nil
}

type fakeSubmissions struct {
	mu   sync.Mutex
	rows map[string][]contestcore.Submission // keyed by questionID
}

func newFakeSubmissions() *fakeSubmissions {
	return &fakeSubmissions{rows: make(map[string][]contestcore.Submission)}
}
func (f *fakeSubmissions) FindSubmission(ctx context.Context, userID, contestID, questionID string) (*contestcore.Submission, error) {
	return nil, nil
}
func (f *fakeSubmissions) CreateOrUpdateSubmission(ctx context.Context, s contestcore.Submission) (contestcore.Submission, error) {
	return s, nil
}
func (f *fakeSubmissions) ListSubmissions(ctx context.Context, contestID, questionID string) ([]contestcore.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]contestcore.Submission(nil), f.rows[questionID]...), nil
}
func (f *fakeSubmissions) ListCorrectWithPoints(ctx context.Context, userID, contestID string) ([]contestcore.Submission, error) {
	return nil, nil
}
func (f *fakeSubmissions) preload(questionID string, userIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range userIDs {
		f.rows[questionID] = append(f.rows[questionID], contestcore.Submission{UserID: u, QuestionID: questionID, IsCorrect: true})
	}
}

type fakeLeaderboard struct {
	mu        sync.Mutex
	persisted int
}

func (f *fakeLeaderboard) UpdateScore(ctx context.Context, contestID, userID string, score int) error {
	return nil
}
func (f *fakeLeaderboard) TopN(ctx context.Context, contestID string, n int) ([]contestcore.LeaderboardEntry, error) {
	return nil, nil
}
func (f *fakeLeaderboard) GetUserRank(ctx context.Context, contestID, userID string) (*contestcore.LeaderboardEntry, error) {
	return nil, nil
}
func (f *fakeLeaderboard) TotalParticipants(ctx context.Context, contestID string) (int, error) {
	return 0, nil
}
func (f *fakeLeaderboard) PersistLeaderboard(ctx context.Context, contestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persisted++
	return nil
}

type recordedBroadcast struct {
	event string
	data  interface{}
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedBroadcast
}

func (f *fakeBroadcaster) BroadcastToRoom(contestID string, event string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedBroadcast{event: event, data: data})
}
func (f *fakeBroadcaster) SendToSession(contestID, userID string, event string, data interface{}) {}

func (f *fakeBroadcaster) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func twoQuestionContest(start time.Time) (*fakeContests, string, string) {
	q1, q2 := "q1", "q2"
	contests := &fakeContests{
		contest: contestcore.Contest{ID: "c1", StartAt: start, EndAt: start.Add(time.Hour)},
		questions: []contestcore.ContestQuestion{
			{ContestID: "c1", QuestionID: q1, OrderIndex: 0, Points: 5, TimeLimitSecs: 60, Question: contestcore.Question{ID: q1, Type: contestcore.QuestionMCQ}},
			{ContestID: "c1", QuestionID: q2, OrderIndex: 1, Points: 5, TimeLimitSecs: 60, Question: contestcore.Question{ID: q2, Type: contestcore.QuestionMCQ}},
		},
		participants: 2,
	}
	return contests, q1, q2
}

// syncOn forces the test goroutine to wait until every command enqueued before
// this call has been processed by the contest's single loop goroutine,
// since cmds is a FIFO channel with one consumer.
func syncOn(o *Orchestrator, contestID string) {
	o.GetCurrentQuestionData(contestID)
}

func TestEarlyAdvancementEntersInterstitialBeforeTimerExpiry(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	contests, q1, _ := twoQuestionContest(start)
	subs := newFakeSubmissions()
	lb := &fakeLeaderboard{}
	bc := &fakeBroadcaster{}
	clk := clock.NewFake(start)
	o := New(contests, subs, lb, bc, clk)

	o.StartContest(context.Background(), "c1")
	syncOn(o, "c1")

	if got := bc.count(contestcore.EventQuestionBroadcast); got != 1 {
		t.Fatalf("question_broadcast count = %d, want 1", got)
	}

	o.RecordSubmission("c1", "u1", q1)
	o.RecordSubmission("c1", "u2", q1)
	syncOn(o, "c1")

	if got := bc.count(contestcore.EventQuestionChange); got != 1 {
		t.Fatalf("question_change count after both submit = %d, want 1 (early advancement)", got)
	}

	clk.Advance(interstitialGrace)
	syncOn(o, "c1")

	if got := bc.count(contestcore.EventQuestionBroadcast); got != 2 {
		t.Fatalf("question_broadcast count after grace = %d, want 2 (q2 broadcast)", got)
	}
}

func TestTimerExpiryEndsQuestionWithNoSubmissions(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q1 := "q1"
	contests := &fakeContests{
		contest: contestcore.Contest{ID: "c1", StartAt: start, EndAt: start.Add(time.Hour)},
		questions: []contestcore.ContestQuestion{
			{ContestID: "c1", QuestionID: q1, OrderIndex: 0, Points: 5, TimeLimitSecs: 3, Question: contestcore.Question{ID: q1, Type: contestcore.QuestionMCQ}},
		},
		participants: 1,
	}
	subs := newFakeSubmissions()
	lb := &fakeLeaderboard{}
	bc := &fakeBroadcaster{}
	clk := clock.NewFake(start)
	o := New(contests, subs, lb, bc, clk)

	o.StartContest(context.Background(), "c1")
	syncOn(o, "c1")

	clk.Advance(3 * time.Second)
	syncOn(o, "c1")
	if got := bc.count(contestcore.EventQuestionChange); got != 1 {
		t.Fatalf("question_change after 3s timer = %d, want 1", got)
	}

	clk.Advance(interstitialGrace)
	// The orchestrator removes the actor once Ended; GetCurrentQuestionData
	// would otherwise spin up a fresh Idle actor. Give the loop goroutine a
	// moment to drain its queue and exit before asserting.
	time.Sleep(10 * time.Millisecond)

	if got := lb.persisted; got != 1 {
		t.Fatalf("persisted leaderboard count = %d, want 1", got)
	}
	if got := bc.count(contestcore.EventContestEnd); got != 1 {
		t.Fatalf("contest_end count = %d, want 1", got)
	}
}

func TestRecoverySkipsAlreadyCompleteQuestion(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	contests, q1, q2 := twoQuestionContest(start)
	contests.participants = 1
	subs := newFakeSubmissions()
	subs.preload(q1, "u1")
	lb := &fakeLeaderboard{}
	bc := &fakeBroadcaster{}
	clk := clock.NewFake(start)
	o := New(contests, subs, lb, bc, clk)

	o.StartContest(context.Background(), "c1")
	snap := o.GetCurrentQuestionData("c1")

	if snap == nil || snap.Question == nil {
		t.Fatalf("snapshot = %v, want running q2", snap)
	}
	if snap.Question.QuestionID != q2 {
		t.Fatalf("current question = %s, want %s (q1 skipped on recovery)", snap.Question.QuestionID, q2)
	}
	if got := bc.count(contestcore.EventQuestionBroadcast); got != 1 {
		t.Fatalf("question_broadcast count = %d, want 1 (q1 preload skip must not broadcast)", got)
	}
}

func TestUpcomingContestSchedulesAndStartsAtStartAt(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 2, 0, 0, time.UTC) // 120s in the future
	now := start.Add(-120 * time.Second)
	contests := &fakeContests{
		contest: contestcore.Contest{ID: "c1", StartAt: start, EndAt: start.Add(time.Hour)},
		questions: []contestcore.ContestQuestion{
			{ContestID: "c1", QuestionID: "q1", OrderIndex: 0, Points: 5, TimeLimitSecs: 30, Question: contestcore.Question{ID: "q1", Type: contestcore.QuestionMCQ}},
		},
		participants: 1,
	}
	subs := newFakeSubmissions()
	lb := &fakeLeaderboard{}
	bc := &fakeBroadcaster{}
	clk := clock.NewFake(now)
	o := New(contests, subs, lb, bc, clk)

	o.StartContest(context.Background(), "c1")
	syncOn(o, "c1")

	if got := bc.count(contestcore.EventContestStart); got != 1 {
		t.Fatalf("contest_start count = %d, want 1", got)
	}

	clk.Advance(120 * time.Second)
	syncOn(o, "c1")

	if got := bc.count(contestcore.EventQuestionBroadcast); got != 1 {
		t.Fatalf("question_broadcast count after startAt = %d, want 1", got)
	}
}
