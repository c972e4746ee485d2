package contestcore

import "time"

// Client→server event names (§4.5, fixed).
const (
	EventJoinContest = "join_contest"
	EventSubmitAnswer = "submit_answer"
	EventResync       = "resync"
	EventPing         = "ping"

	// C6-only client events.
	EventSubscribeContests    = "subscribe_contests"
	EventSubscribeLeaderboard = "subscribe_leaderboard"
)

// Server→client event names (§4.5, fixed).
const (
	EventContestStart     = "contest_start"
	EventQuestionBroadcast = "question_broadcast"
	EventTimerUpdate       = "timer_update"
	EventQuestionChange    = "question_change"
	EventSubmissionResult  = "submission_result"
	EventLeaderboardUpdate = "leaderboard_update"
	EventContestEnd        = "contest_end"
	EventError             = "error"
	EventPong              = "pong"
)

// Close codes used on the websocket upgrade paths (§6).
const (
	CloseNormal        = 1000
	CloseAuthFailed    = 4401
	CloseForbidden     = 4403
)

// Envelope is the fixed wire shape: {event, data, timestamp}.
type Envelope struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorPayload is the `data` object of an `error` event.
type ErrorPayload struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// JoinContestPayload is the `data` object of a `join_contest` client event.
type JoinContestPayload struct {
	ContestID string `json:"contestId"`
}

// SubmitAnswerPayload is the `data` object of a `submit_answer` client event.
type SubmitAnswerPayload struct {
	QuestionID       string    `json:"questionId"`
	SelectedOptionID string    `json:"selectedOptionId,omitempty"`
	Code             string    `json:"code,omitempty"`
	Language         string    `json:"language,omitempty"`
	SubmittedAt      time.Time `json:"submittedAt"`
}

// ResyncPayload is the `data` object of a `resync` client event.
type ResyncPayload struct {
	ContestID string `json:"contestId"`
}

// ContestStartPayload is sent on entering ACTIVE or on an UPCOMING join.
type ContestStartPayload struct {
	ContestID        string `json:"contestId"`
	CountdownToStart int    `json:"countdownToStart"`
}

// QuestionOption is the client-safe projection of Option (IsCorrect omitted).
type QuestionOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionBroadcastPayload carries the current question, options resolved
// (MCQ) with isCorrect omitted, or memoryLimit included and test cases
// omitted (CODING).
type QuestionBroadcastPayload struct {
	QuestionID     string           `json:"questionId"`
	QuestionNumber int              `json:"questionNumber"`
	TotalQuestions int              `json:"totalQuestions"`
	Type           QuestionType     `json:"type"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	TimeLimitSecs  int              `json:"timeLimitSeconds"`
	Points         int              `json:"points"`
	Options        []QuestionOption `json:"options,omitempty"`
	MemoryLimitMB  int              `json:"memoryLimitMb,omitempty"`
}

// TimerUpdatePayload reports remaining time on the current question.
type TimerUpdatePayload struct {
	QuestionID    string `json:"questionId"`
	RemainingSecs int    `json:"remainingSeconds"`
}

// QuestionChangePayload announces the interstitial transition. NextQuestionID
// is empty when the contest has no more questions.
type QuestionChangePayload struct {
	PreviousQuestionID string `json:"previousQuestionId"`
	NextQuestionID     string `json:"nextQuestionId,omitempty"`
	GraceSeconds        int    `json:"graceSeconds"`
}

// SubmissionResultPayload is sent to the submitter only.
type SubmissionResultPayload struct {
	SubmissionID string  `json:"submissionId"`
	IsCorrect    bool    `json:"isCorrect"`
	PointsEarned int     `json:"pointsEarned"`
	TimeTakenMS  int64   `json:"timeTakenMs"`
	CurrentScore int     `json:"currentScore"`
	CurrentRank  int     `json:"currentRank"`
	Verdict      *Verdict `json:"verdict,omitempty"`
}

// LeaderboardUpdatePayload carries the current topN; ViewerRank is filled in
// per-recipient when the viewer is a participant.
type LeaderboardUpdatePayload struct {
	ContestID         string             `json:"contestId"`
	TopN              []LeaderboardEntry `json:"topN"`
	TotalParticipants int                `json:"totalParticipants"`
	ViewerRank        *LeaderboardEntry  `json:"viewerRank,omitempty"`
}

// ContestEndPayload announces the final state; FinalRank/FinalScore are
// filled in from the snapshot for the targeted recipient, or synthesized for
// a session joining an already-COMPLETED contest.
type ContestEndPayload struct {
	ContestID  string `json:"contestId"`
	FinalRank  int    `json:"finalRank,omitempty"`
	FinalScore int    `json:"finalScore,omitempty"`
}

// ContestsSnapshotPayload is C6's `subscribe_contests` push: every contest's
// current runtime state.
type ContestsSnapshotPayload struct {
	Contests []ContestSummary `json:"contests"`
}

// ContestSummary is the anonymized, listing-level view of a Contest.
type ContestSummary struct {
	ContestID string       `json:"contestId"`
	Title     string       `json:"title"`
	StartAt   time.Time    `json:"startAt"`
	EndAt     time.Time    `json:"endAt"`
	State     RuntimeState `json:"state"`
}
