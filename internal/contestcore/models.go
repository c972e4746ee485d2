// Package contestcore holds the domain types and collaborator interfaces
// shared by the submission pipeline, the contest orchestrator and the
// session fan-out layer. Keeping them in one narrow package (rather than
// importing concrete packages from each other) avoids cyclic imports across
// internal/submission, internal/orchestrator and internal/realtime.
package contestcore

import "time"

// QuestionType distinguishes MCQ from CODING questions.
type QuestionType string

const (
	QuestionMCQ    QuestionType = "MCQ"
	QuestionCoding QuestionType = "CODING"
)

// Difficulty is the question's declared difficulty band.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// RuntimeState is the pure function of (now, startAt, endAt). It is the
// sole source of truth for admission decisions; any persisted status column
// on Contest is a display hint only.
type RuntimeState string

const (
	StateUpcoming  RuntimeState = "UPCOMING"
	StateActive    RuntimeState = "ACTIVE"
	StateCompleted RuntimeState = "COMPLETED"
)

// DeriveRuntimeState computes the runtime state from wall-clock time and the
// contest's open/close instants. endAt is inclusive: a contest is still
// ACTIVE at the instant now == endAt.
func DeriveRuntimeState(now, startAt, endAt time.Time) RuntimeState {
	switch {
	case now.Before(startAt):
		return StateUpcoming
	case now.After(endAt):
		return StateCompleted
	default:
		return StateActive
	}
}

// Contest is the organizer-defined container of an ordered question
// sequence with a fixed open/close window. Status is advisory; see
// DeriveRuntimeState.
type Contest struct {
	ID          string
	Title       string
	Description string
	StartAt     time.Time
	EndAt       time.Time
	Status      string
}

// RuntimeState derives this contest's authoritative state as of now.
func (c Contest) RuntimeState(now time.Time) RuntimeState {
	return DeriveRuntimeState(now, c.StartAt, c.EndAt)
}

// ContestQuestion binds a Question into a contest's ordered sequence with a
// per-question time limit and point value. orderIndex is a dense,
// zero-based permutation within a contest.
type ContestQuestion struct {
	ContestID       string
	QuestionID      string
	OrderIndex      int
	TimeLimitSecs   int
	Points          int
	Question        Question
}

// Question is a reusable item from the question bank. MCQ questions carry
// Options; CODING questions carry TestCases (resolved separately, since
// they are frequently large and hidden-flagged).
type Question struct {
	ID            string
	Type          QuestionType
	Title         string
	Description   string
	FunctionName  string
	TimeLimitMS   int
	MemoryLimitMB int
	Difficulty    Difficulty
	Options       []Option
}

// Option is an MCQ answer choice. At most one Option per Question has
// IsCorrect true.
type Option struct {
	ID        string
	Text      string
	IsCorrect bool
}

// TestCase is an ordered CODING test fixture. Hidden test cases must never
// surface Input/ExpectedOutput/ActualOutput in a client-facing response.
type TestCase struct {
	ID             string
	QuestionID     string
	Input          string
	ExpectedOutput string
	IsHidden       bool
	Order          int
}

// ContestParticipant records that userId has joined contestId.
// (contestId, userId) is unique.
type ContestParticipant struct {
	ContestID string
	UserID    string
	JoinedAt  time.Time
}

// SubmissionStatus is the grading outcome recorded on a Submission row.
// It mirrors internal/judge's Verdict vocabulary for CODING questions and
// adds the two states an MCQ submission or an ungraded row can be in.
type SubmissionStatus string

const (
	StatusPending              SubmissionStatus = "PENDING"
	StatusAccepted             SubmissionStatus = "ACCEPTED"
	StatusWrongAnswer          SubmissionStatus = "WRONG_ANSWER"
	StatusTimeLimitExceeded    SubmissionStatus = "TIME_LIMIT_EXCEEDED"
	StatusMemoryLimitExceeded  SubmissionStatus = "MEMORY_LIMIT_EXCEEDED"
	StatusRuntimeError         SubmissionStatus = "RUNTIME_ERROR"
	StatusCompilationError     SubmissionStatus = "COMPILATION_ERROR"
)

// Submission is at most one row per (userId, contestId, questionId). Once
// IsCorrect is true the row is terminal: no later write may set it false or
// reduce PointsEarned.
type Submission struct {
	ID               string
	UserID           string
	ContestID        string
	QuestionID       string
	SelectedOptionID string
	Code             string
	Language         string
	Status           SubmissionStatus
	IsCorrect        bool
	PointsEarned     int
	SubmittedAt      time.Time
	ExecutionTimeMS  int64
	MemoryUsageKB    int
	TestCasesPassed  int
	TotalTestCases   int
}

// IsTerminal reports whether this submission can no longer be graded again.
// An accepted row is always terminal, for either question type. MCQ is
// one-shot: any graded row (correct or not) is terminal. CODING permits
// retries until accepted, so a graded-but-not-accepted CODING row is NOT
// terminal and remains resubmittable.
func (s Submission) IsTerminal(qType QuestionType) bool {
	if s.IsCorrect {
		return true
	}
	return qType == QuestionMCQ && s.Status != "" && s.Status != StatusPending
}

// LeaderboardEntry is one ranked row returned by topN or getUserRank.
type LeaderboardEntry struct {
	Rank              int
	UserID            string
	UserName          string
	Score             int
	QuestionsAnswered int
}

// LeaderboardSnapshot is the durable record of a user's final ranking,
// written once at contest end. Ranks are dense starting at 1.
type LeaderboardSnapshot struct {
	ContestID string
	UserID    string
	Rank      int
	Score     int
}

// Verdict is the outcome the CodeGrader collaborator returns for a CODING
// submission.
type Verdict struct {
	Status          SubmissionStatus
	ExecutionTimeMS int64
	MemoryUsageKB   int
	TestCasesPassed int
	TotalTestCases  int
	CaseResults     []TestCaseResult
	ErrorMessage    string
}

// TestCaseResult is one per-test-case outcome. When IsHidden is true,
// Input/ExpectedOutput/ActualOutput must be cleared before this ever
// reaches a client response.
type TestCaseResult struct {
	Order          int
	Passed         bool
	IsHidden       bool
	Input          string
	ExpectedOutput string
	ActualOutput   string
}
