package submission

import (
	"context"
	"errors"
	"testing"
	"time"

	"competitive-programming-platform/internal/contestcore"
)

type fakeContests struct {
	contest   contestcore.Contest
	questions []contestcore.ContestQuestion
	options   map[string][]contestcore.Option
	participants map[string]bool
}

func (f *fakeContests) GetContest(ctx context.Context, id string) (contestcore.Contest, error) {
	return f.contest, nil
}
func (f *fakeContests) GetOrderedQuestions(ctx context.Context, id string) ([]contestcore.ContestQuestion, error) {
	return f.questions, nil
}
func (f *fakeContests) CountParticipants(ctx context.Context, id string) (int, error) {
	return len(f.participants), nil
}
func (f *fakeContests) IsParticipant(ctx context.Context, contestID, userID string) (bool, error) {
	return f.participants[userID], nil
}
func (f *fakeContests) GetOptionsFor(ctx context.Context, questionID string) ([]contestcore.Option, error) {
	return f.options[questionID], nil
}
func (f *fakeContests) ListContests(ctx context.Context) ([]contestcore.Contest, error) {
	return []contestcore.Contest{f.contest}, nil
}

type fakeSubmissions struct {
	rows map[string]contestcore.Submission
}

func key(userID, contestID, questionID string) string { return userID + "|" + contestID + "|" + questionID }

func (f *fakeSubmissions) FindSubmission(ctx context.Context, userID, contestID, questionID string) (*contestcore.Submission, error) {
	if s, ok := f.rows[key(userID, contestID, questionID)]; ok {
		return &s, nil
	}
	return nil, nil
}
func (f *fakeSubmissions) CreateOrUpdateSubmission(ctx context.Context, s contestcore.Submission) (contestcore.Submission, error) {
	if f.rows == nil {
		f.rows = make(map[string]contestcore.Submission)
	}
	f.rows[key(s.UserID, s.ContestID, s.QuestionID)] = s
	return s, nil
}
func (f *fakeSubmissions) ListSubmissions(ctx context.Context, contestID, questionID string) ([]contestcore.Submission, error) {
	var out []contestcore.Submission
	for _, s := range f.rows {
		if s.ContestID == contestID && s.QuestionID == questionID {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeSubmissions) ListCorrectWithPoints(ctx context.Context, userID, contestID string) ([]contestcore.Submission, error) {
	var out []contestcore.Submission
	for _, s := range f.rows {
		if s.UserID == userID && s.ContestID == contestID && s.IsCorrect {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeLeaderboard struct {
	scores map[string]int
}

func (f *fakeLeaderboard) UpdateScore(ctx context.Context, contestID, userID string, score int) error {
	if f.scores == nil {
		f.scores = make(map[string]int)
	}
	f.scores[userID] = score
	return nil
}
func (f *fakeLeaderboard) TopN(ctx context.Context, contestID string, n int) ([]contestcore.LeaderboardEntry, error) {
	return nil, nil
}
func (f *fakeLeaderboard) GetUserRank(ctx context.Context, contestID, userID string) (*contestcore.LeaderboardEntry, error) {
	score, ok := f.scores[userID]
	if !ok {
		return nil, nil
	}
	rank := 1
	for other, s := range f.scores {
		if other != userID && s > score {
			rank++
		}
	}
	return &contestcore.LeaderboardEntry{UserID: userID, Score: score, Rank: rank}, nil
}
func (f *fakeLeaderboard) TotalParticipants(ctx context.Context, contestID string) (int, error) {
	return len(f.scores), nil
}
func (f *fakeLeaderboard) PersistLeaderboard(ctx context.Context, contestID string) error { return nil }

type fakeGrader struct {
	verdict contestcore.Verdict
	err     error
}

func (f *fakeGrader) Grade(ctx context.Context, code, language, questionID string) (contestcore.Verdict, error) {
	return f.verdict, f.err
}

type fakeNotifier struct {
	recorded []string
}

func (f *fakeNotifier) RecordSubmission(contestID, userID, questionID string) {
	f.recorded = append(f.recorded, userID)
}

func mcqSetup() (*fakeContests, *fakeSubmissions, *fakeLeaderboard) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	contests := &fakeContests{
		contest: contestcore.Contest{ID: "c1", StartAt: start, EndAt: start.Add(time.Hour)},
		questions: []contestcore.ContestQuestion{
			{ContestID: "c1", QuestionID: "q1", OrderIndex: 0, Points: 10, Question: contestcore.Question{ID: "q1", Type: contestcore.QuestionMCQ}},
		},
		options: map[string][]contestcore.Option{
			"q1": {{ID: "A", Text: "A", IsCorrect: true}, {ID: "B", Text: "B"}},
		},
		participants: map[string]bool{"u1": true},
	}
	return contests, &fakeSubmissions{rows: map[string]contestcore.Submission{}}, &fakeLeaderboard{}
}

func TestSubmitMCQCorrectFlow(t *testing.T) {
	contests, subs, lb := mcqSetup()
	notifier := &fakeNotifier{}
	p := New(contests, subs, lb, nil, notifier, nil)

	result, err := p.Submit(context.Background(), "u1", "c1", "q1", AnswerInput{
		SelectedOptionID: "A",
		SubmittedAt:      contests.contest.StartAt.Add(5 * time.Second),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.IsCorrect || result.PointsEarned != 10 || result.CurrentScore != 10 || result.CurrentRank != 1 {
		t.Errorf("result = %+v, want isCorrect=true points=10 score=10 rank=1", result)
	}
	if len(notifier.recorded) != 1 {
		t.Errorf("expected orchestrator to be notified once, got %d", len(notifier.recorded))
	}
}

func TestSubmitDuplicateRejected(t *testing.T) {
	contests, subs, lb := mcqSetup()
	p := New(contests, subs, lb, nil, &fakeNotifier{}, nil)
	ctx := context.Background()

	_, err := p.Submit(ctx, "u1", "c1", "q1", AnswerInput{SelectedOptionID: "A", SubmittedAt: contests.contest.StartAt.Add(5 * time.Second)})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err = p.Submit(ctx, "u1", "c1", "q1", AnswerInput{SelectedOptionID: "B", SubmittedAt: contests.contest.StartAt.Add(7 * time.Second)})
	if contestcore.CodeOf(err) != contestcore.CodeAlreadySubmitted {
		t.Fatalf("second submit error = %v, want ALREADY_SUBMITTED", err)
	}

	row, _ := subs.FindSubmission(ctx, "u1", "c1", "q1")
	if row.SelectedOptionID != "A" {
		t.Errorf("stored row changed after duplicate submit: %+v", row)
	}
	if lb.scores["u1"] != 10 {
		t.Errorf("score changed after duplicate submit: %d", lb.scores["u1"])
	}
}

func TestSubmitCodingAcceptedIsTerminal(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	contests := &fakeContests{
		contest: contestcore.Contest{ID: "c1", StartAt: start, EndAt: start.Add(time.Hour)},
		questions: []contestcore.ContestQuestion{
			{ContestID: "c1", QuestionID: "q1", Points: 20, Question: contestcore.Question{ID: "q1", Type: contestcore.QuestionCoding}},
		},
		participants: map[string]bool{"u1": true},
	}
	subs := &fakeSubmissions{rows: map[string]contestcore.Submission{}}
	lb := &fakeLeaderboard{}
	grader := &fakeGrader{verdict: contestcore.Verdict{Status: contestcore.StatusAccepted, TestCasesPassed: 3, TotalTestCases: 3}}
	p := New(contests, subs, lb, grader, &fakeNotifier{}, nil)
	ctx := context.Background()

	result, err := p.Submit(ctx, "u1", "c1", "q1", AnswerInput{Code: "print(1)", Language: "python", SubmittedAt: start.Add(time.Second)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.IsCorrect || result.PointsEarned != 20 {
		t.Fatalf("result = %+v, want accepted with 20 points", result)
	}

	// A later resubmission must be refused as ALREADY_SUBMITTED, never
	// allowed to downgrade the terminal acceptance.
	grader.verdict = contestcore.Verdict{Status: contestcore.StatusRuntimeError}
	_, err = p.Submit(ctx, "u1", "c1", "q1", AnswerInput{Code: "bad code", Language: "python", SubmittedAt: start.Add(2 * time.Second)})
	if contestcore.CodeOf(err) != contestcore.CodeAlreadySubmitted {
		t.Fatalf("resubmit after acceptance error = %v, want ALREADY_SUBMITTED", err)
	}

	row, _ := subs.FindSubmission(ctx, "u1", "c1", "q1")
	if !row.IsCorrect || row.Status != contestcore.StatusAccepted {
		t.Errorf("terminal row was downgraded: %+v", row)
	}
}

func TestSubmitCodingRetryBeforeAcceptance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	contests := &fakeContests{
		contest: contestcore.Contest{ID: "c1", StartAt: start, EndAt: start.Add(time.Hour)},
		questions: []contestcore.ContestQuestion{
			{ContestID: "c1", QuestionID: "q1", Points: 20, Question: contestcore.Question{ID: "q1", Type: contestcore.QuestionCoding}},
		},
		participants: map[string]bool{"u1": true},
	}
	subs := &fakeSubmissions{rows: map[string]contestcore.Submission{}}
	lb := &fakeLeaderboard{}
	grader := &fakeGrader{verdict: contestcore.Verdict{Status: contestcore.StatusWrongAnswer}}
	p := New(contests, subs, lb, grader, &fakeNotifier{}, nil)
	ctx := context.Background()

	result, err := p.Submit(ctx, "u1", "c1", "q1", AnswerInput{Code: "v1", Language: "python", SubmittedAt: start.Add(time.Second)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.IsCorrect {
		t.Fatalf("expected wrong answer result, got %+v", result)
	}

	grader.verdict = contestcore.Verdict{Status: contestcore.StatusAccepted}
	result, err = p.Submit(ctx, "u1", "c1", "q1", AnswerInput{Code: "v2", Language: "python", SubmittedAt: start.Add(2 * time.Second)})
	if err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if !result.IsCorrect || result.PointsEarned != 20 {
		t.Fatalf("retry result = %+v, want accepted", result)
	}
}

func TestSubmitCodingGraderFailurePersistsRow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	contests := &fakeContests{
		contest: contestcore.Contest{ID: "c1", StartAt: start, EndAt: start.Add(time.Hour)},
		questions: []contestcore.ContestQuestion{
			{ContestID: "c1", QuestionID: "q1", Points: 20, Question: contestcore.Question{ID: "q1", Type: contestcore.QuestionCoding}},
		},
		participants: map[string]bool{"u1": true},
	}
	subs := &fakeSubmissions{rows: map[string]contestcore.Submission{}}
	lb := &fakeLeaderboard{}
	grader := &fakeGrader{err: errors.New("queue unreachable")}
	p := New(contests, subs, lb, grader, &fakeNotifier{}, nil)
	ctx := context.Background()

	_, err := p.Submit(ctx, "u1", "c1", "q1", AnswerInput{Code: "v1", Language: "python", SubmittedAt: start.Add(time.Second)})
	if contestcore.CodeOf(err) != contestcore.CodeServerError {
		t.Fatalf("Submit error = %v, want SERVER_ERROR", err)
	}

	row, _ := subs.FindSubmission(ctx, "u1", "c1", "q1")
	if row == nil {
		t.Fatal("expected the failed attempt to be persisted, found no row")
	}
	if row.IsCorrect || row.Status != contestcore.StatusRuntimeError {
		t.Errorf("persisted row = %+v, want non-accepted RUNTIME_ERROR", row)
	}

	// A grader failure doesn't make the question unanswerable: the row is
	// not terminal for CODING, so a later retry must still go through.
	grader.err = nil
	grader.verdict = contestcore.Verdict{Status: contestcore.StatusAccepted}
	result, err := p.Submit(ctx, "u1", "c1", "q1", AnswerInput{Code: "v2", Language: "python", SubmittedAt: start.Add(2 * time.Second)})
	if err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if !result.IsCorrect {
		t.Fatalf("retry result = %+v, want accepted", result)
	}
}

func TestSubmitRejectsInactiveContest(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	contests := &fakeContests{
		contest:      contestcore.Contest{ID: "c1", StartAt: start, EndAt: start.Add(time.Hour)},
		participants: map[string]bool{"u1": true},
	}
	subs := &fakeSubmissions{rows: map[string]contestcore.Submission{}}
	lb := &fakeLeaderboard{}
	p := New(contests, subs, lb, nil, &fakeNotifier{}, nil)

	_, err := p.Submit(context.Background(), "u1", "c1", "q1", AnswerInput{SubmittedAt: start.Add(-time.Minute)})
	if contestcore.CodeOf(err) != contestcore.CodeContestNotActive {
		t.Fatalf("error = %v, want CONTEST_NOT_ACTIVE", err)
	}
}
