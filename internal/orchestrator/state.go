package orchestrator

import (
	"time"

	"competitive-programming-platform/internal/clock"
	"competitive-programming-platform/internal/contestcore"
)

// phase is the per-contest progression state named in spec.md §4.4.1:
// Idle -> Scheduled -> Running(q_i) -> Interstitial -> ... -> Ended.
type phase int

const (
	phaseIdle phase = iota
	phaseScheduled
	phaseRunning
	phaseInterstitial
	phaseEnded
)

// runtimeContestState is C4's in-memory state for one ACTIVE contest,
// mutated only by that contest's single contestLoop goroutine. Mirrors
// spec.md §3's RuntimeContestState exactly: ordered question list, current
// index, monotonic start of the current question, the set of users who
// have submitted to it, and the participant denominator.
type runtimeContestState struct {
	contestID            string
	phase                phase
	questions            []contestcore.ContestQuestion
	currentQuestionIndex int
	currentQuestionStart time.Duration // monotonic, from clock.Monotonic()
	submittedUsers       map[string]struct{}
	totalParticipants    int

	tickCancel clock.Cancel // periodic timer_update broadcast
	endCancel  clock.Cancel // one-shot end-of-question timer

	scheduleCancel clock.Cancel // one-shot UPCOMING -> startContest timer
}

func newRuntimeContestState(contestID string) *runtimeContestState {
	return &runtimeContestState{
		contestID:      contestID,
		phase:          phaseIdle,
		submittedUsers: make(map[string]struct{}),
	}
}

// currentQuestion returns the question at currentQuestionIndex, or nil if
// out of range (no questions left, or none loaded yet).
func (s *runtimeContestState) currentQuestion() *contestcore.ContestQuestion {
	if s.currentQuestionIndex < 0 || s.currentQuestionIndex >= len(s.questions) {
		return nil
	}
	return &s.questions[s.currentQuestionIndex]
}

// earlyAdvancementReady implements the §4.4.2 predicate: every currently
// known participant has submitted, and there is at least one participant.
func (s *runtimeContestState) earlyAdvancementReady() bool {
	return len(s.submittedUsers) >= s.totalParticipants && s.totalParticipants > 0
}

func (s *runtimeContestState) cancelTimers() {
	if s.tickCancel != nil {
		s.tickCancel()
		s.tickCancel = nil
	}
	if s.endCancel != nil {
		s.endCancel()
		s.endCancel = nil
	}
}

func (s *runtimeContestState) cancelSchedule() {
	if s.scheduleCancel != nil {
		s.scheduleCancel()
		s.scheduleCancel = nil
	}
}
