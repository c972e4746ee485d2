package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"competitive-programming-platform/internal/contestcore"
	"competitive-programming-platform/internal/metrics"
	"competitive-programming-platform/internal/orchestrator"
	"competitive-programming-platform/internal/submission"
)

const leaderboardDebounce = 100 * time.Millisecond

const roleParticipant = "participant"

// Service wires C5's session fan-out to its collaborators: C1 (verifier),
// C3 (pipeline), C4 (orchestrator) and the durable reads C5 needs for its
// own join/resync decisions.
type Service struct {
	hub      *Hub
	public   *PublicHub
	contests contestcore.ContestRepository
	subs     contestcore.SubmissionRepository
	leader   contestcore.LeaderboardIndex
	orch     *orchestrator.Orchestrator
	pipeline *submission.Pipeline
	verifier contestcore.TokenVerifier
	upgrader websocket.Upgrader

	mu        sync.Mutex
	debouncer map[string]*time.Timer
}

// NewService builds the C5/C6 HTTP surface. hub is constructed by the
// caller (main.go) and shared with the orchestrator, which needs it as its
// contestcore.Broadcaster before a Service can exist. Call Run to start
// both hubs.
func NewService(
	hub *Hub,
	contests contestcore.ContestRepository,
	subs contestcore.SubmissionRepository,
	leader contestcore.LeaderboardIndex,
	orch *orchestrator.Orchestrator,
	pipeline *submission.Pipeline,
	verifier contestcore.TokenVerifier,
) *Service {
	return &Service{
		hub:      hub,
		public:   NewPublicHub(contests, leader),
		contests: contests,
		subs:     subs,
		leader:   leader,
		orch:     orch,
		pipeline: pipeline,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		debouncer: make(map[string]*time.Timer),
	}
}

// Hub exposes the authenticated hub as a contestcore.Broadcaster for
// wiring into the orchestrator.
func (s *Service) Hub() *Hub { return s.hub }

// Run starts both hubs' loops; call once at process startup.
func (s *Service) Run(ctx context.Context) {
	go s.hub.Run(ctx)
	go s.public.Run(ctx)
}

// HandleContestWS upgrades /contest: authenticated bearer-token session.
func (s *Service) HandleContestWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID, role, err := s.verifier.Verify(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: upgrade failed: %v", err)
		return
	}

	sess := newSession(conn, userID, role, s.hub, s)
	go sess.writePump()
	sess.readPump()
}

// dispatch routes one decoded client frame to its handler. Invalid/unknown
// events get an INVALID_EVENT error rather than closing the session.
func (s *Service) dispatch(sess *Session, evt clientEvent) {
	ctx := context.Background()
	switch evt.Event {
	case contestcore.EventJoinContest:
		var p contestcore.JoinContestPayload
		if json.Unmarshal(evt.Data, &p) != nil || p.ContestID == "" {
			sess.enqueue(contestcore.EventError, invalidEvent("join_contest requires contestId"))
			return
		}
		s.join(ctx, sess, p.ContestID, true)

	case contestcore.EventResync:
		var p contestcore.ResyncPayload
		if json.Unmarshal(evt.Data, &p) != nil || p.ContestID == "" {
			sess.enqueue(contestcore.EventError, invalidEvent("resync requires contestId"))
			return
		}
		s.join(ctx, sess, p.ContestID, sess.contestID != p.ContestID)

	case contestcore.EventSubmitAnswer:
		var p contestcore.SubmitAnswerPayload
		if json.Unmarshal(evt.Data, &p) != nil {
			sess.enqueue(contestcore.EventError, invalidEvent("malformed submit_answer"))
			return
		}
		s.submit(ctx, sess, p)

	case contestcore.EventPing:
		sess.enqueue(contestcore.EventPong, nil)

	default:
		sess.enqueue(contestcore.EventError, invalidEvent("unrecognized event "+evt.Event))
	}
}

func invalidEvent(msg string) contestcore.ErrorPayload {
	return contestcore.ErrorPayload{Code: contestcore.CodeInvalidEvent, Message: msg}
}

// join implements §4.5's join/resync state resolution. requireAuthorize is
// false for resync on a session already in the room, per spec.md's "does
// not require re-authorization of membership if the session is already in
// the room".
func (s *Service) join(ctx context.Context, sess *Session, contestID string, requireAuthorize bool) {
	c, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		sess.enqueue(contestcore.EventError, contestcore.ErrorPayload{Code: contestcore.CodeContestNotFound, Message: "contest not found"})
		sess.close()
		return
	}

	alreadyInRoom := sess.contestID == contestID
	if requireAuthorize && !alreadyInRoom {
		isMonitor := sess.role != roleParticipant
		if !isMonitor {
			ok, err := s.contests.IsParticipant(ctx, contestID, sess.userID)
			if err != nil {
				sess.enqueue(contestcore.EventError, contestcore.ErrorPayload{Code: contestcore.CodeServerError, Message: "lookup failed"})
				return
			}
			if !ok {
				sess.enqueue(contestcore.EventError, contestcore.ErrorPayload{Code: contestcore.CodeNotParticipant, Message: "not registered for this contest"})
				sess.close()
				return
			}
		}
		sess.contestID = contestID
		s.hub.register <- sess
	}

	now := time.Now()
	switch c.RuntimeState(now) {
	case contestcore.StateCompleted:
		s.sendContestEnd(ctx, sess, contestID)

	case contestcore.StateUpcoming:
		s.orch.EnsureContestRunning(ctx, contestID)
		delay := int(c.StartAt.Sub(now).Seconds())
		sess.enqueue(contestcore.EventContestStart, contestcore.ContestStartPayload{ContestID: contestID, CountdownToStart: delay})

	case contestcore.StateActive:
		done, err := s.allQuestionsAnswered(ctx, sess.userID, contestID)
		if err != nil {
			sess.enqueue(contestcore.EventError, contestcore.ErrorPayload{Code: contestcore.CodeServerError, Message: "load progress failed"})
			return
		}
		if done {
			s.sendContestEnd(ctx, sess, contestID)
			return
		}
		s.orch.EnsureContestRunning(ctx, contestID)
		s.orch.UpdateParticipantCount(contestID)
		s.sendCurrentQuestion(ctx, sess, contestID)
		s.sendLeaderboardTo(ctx, sess, contestID)
	}
}

func (s *Service) allQuestionsAnswered(ctx context.Context, userID, contestID string) (bool, error) {
	questions, err := s.contests.GetOrderedQuestions(ctx, contestID)
	if err != nil {
		return false, err
	}
	for _, q := range questions {
		row, err := s.subs.FindSubmission(ctx, userID, contestID, q.QuestionID)
		if err != nil {
			return false, err
		}
		if row == nil || !row.IsTerminal(q.Question.Type) {
			return false, nil
		}
	}
	return len(questions) > 0, nil
}

// sendContestEnd synthesizes a contest_end for a session joining a
// COMPLETED contest or one that has already answered everything. The
// redis-backed LeaderboardIndex is never cleared on PersistLeaderboard, so
// GetUserRank still serves the final ranking after the contest has ended.
func (s *Service) sendContestEnd(ctx context.Context, sess *Session, contestID string) {
	payload := contestcore.ContestEndPayload{ContestID: contestID}
	if entry, err := s.leader.GetUserRank(ctx, contestID, sess.userID); err == nil && entry != nil {
		payload.FinalRank = entry.Rank
		payload.FinalScore = entry.Score
	}
	sess.enqueue(contestcore.EventContestEnd, payload)
}

func (s *Service) sendCurrentQuestion(ctx context.Context, sess *Session, contestID string) {
	snap := s.orch.GetCurrentQuestionData(contestID)
	if snap == nil || snap.Question == nil {
		return
	}
	var opts []contestcore.Option
	if snap.Question.Question.Type == contestcore.QuestionMCQ {
		opts, _ = s.contests.GetOptionsFor(ctx, snap.Question.QuestionID)
	}
	sess.enqueue(contestcore.EventQuestionBroadcast, buildQuestionBroadcast(snap, opts))
	sess.enqueue(contestcore.EventTimerUpdate, contestcore.TimerUpdatePayload{
		QuestionID:    snap.Question.QuestionID,
		RemainingSecs: int(snap.RemainingTime.Seconds()),
	})
}

func buildQuestionBroadcast(snap *orchestrator.Snapshot, options []contestcore.Option) contestcore.QuestionBroadcastPayload {
	q := snap.Question
	payload := contestcore.QuestionBroadcastPayload{
		QuestionID:     q.QuestionID,
		QuestionNumber: snap.QuestionNumber,
		TotalQuestions: snap.TotalQuestions,
		Type:           q.Question.Type,
		Title:          q.Question.Title,
		Description:    q.Question.Description,
		TimeLimitSecs:  q.TimeLimitSecs,
		Points:         q.Points,
	}
	if q.Question.Type == contestcore.QuestionCoding {
		payload.MemoryLimitMB = q.Question.MemoryLimitMB
	}
	for _, o := range options {
		payload.Options = append(payload.Options, contestcore.QuestionOption{ID: o.ID, Text: o.Text})
	}
	return payload
}

func (s *Service) sendLeaderboardTo(ctx context.Context, sess *Session, contestID string) {
	top, err := s.leader.TopN(ctx, contestID, 10)
	if err != nil {
		return
	}
	total, _ := s.leader.TotalParticipants(ctx, contestID)
	payload := contestcore.LeaderboardUpdatePayload{ContestID: contestID, TopN: top, TotalParticipants: total}
	if entry, err := s.leader.GetUserRank(ctx, contestID, sess.userID); err == nil {
		payload.ViewerRank = entry
	}
	sess.enqueue(contestcore.EventLeaderboardUpdate, payload)
}

// submit implements §4.5's submit_answer handling. The pipeline itself
// re-checks ALREADY_SUBMITTED/terminal state under a durable-store read, so
// this does not duplicate that query; a prior non-terminal row is simply
// overwritten per §4.3.4.
func (s *Service) submit(ctx context.Context, sess *Session, p contestcore.SubmitAnswerPayload) {
	if sess.role != roleParticipant {
		sess.enqueue(contestcore.EventError, contestcore.ErrorPayload{Code: contestcore.CodeNotParticipant, Message: "monitors cannot submit"})
		return
	}
	if sess.contestID == "" {
		sess.enqueue(contestcore.EventError, invalidEvent("submit_answer before join_contest"))
		return
	}

	result, err := s.pipeline.Submit(ctx, sess.userID, sess.contestID, p.QuestionID, submission.AnswerInput{
		SelectedOptionID: p.SelectedOptionID,
		Code:             p.Code,
		Language:         p.Language,
		SubmittedAt:      p.SubmittedAt,
	})
	if err != nil {
		sess.enqueue(contestcore.EventError, contestcore.ErrorPayload{Code: contestcore.CodeOf(err), Message: err.Error()})
		return
	}

	sess.enqueue(contestcore.EventSubmissionResult, contestcore.SubmissionResultPayload{
		SubmissionID: result.SubmissionID,
		IsCorrect:    result.IsCorrect,
		PointsEarned: result.PointsEarned,
		TimeTakenMS:  result.TimeTaken.Milliseconds(),
		CurrentScore: result.CurrentScore,
		CurrentRank:  result.CurrentRank,
	})

	s.debouncedLeaderboard(sess.contestID)
}

// debouncedLeaderboard coalesces bursts of submissions into one
// leaderboard_update per ~100ms per contest, per §4.5 submit_answer.
func (s *Service) debouncedLeaderboard(contestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.debouncer[contestID]; ok {
		t.Stop()
	}
	s.debouncer[contestID] = time.AfterFunc(leaderboardDebounce, func() {
		s.broadcastLeaderboard(contestID)
	})
}

func (s *Service) broadcastLeaderboard(contestID string) {
	ctx := context.Background()
	top, err := s.leader.TopN(ctx, contestID, 10)
	if err != nil {
		return
	}
	total, _ := s.leader.TotalParticipants(ctx, contestID)
	payload := contestcore.LeaderboardUpdatePayload{ContestID: contestID, TopN: top, TotalParticipants: total}
	s.hub.BroadcastToRoom(contestID, contestcore.EventLeaderboardUpdate, payload)
	s.public.BroadcastLeaderboard(contestID, payload)
	metrics.NewApplicationMetrics().IncrementLeaderboardBroadcast(contestID)
}

// Stats is exposed for operational health/metrics surfaces.
func (s *Service) Stats() map[string]interface{} {
	return map[string]interface{}{
		"authenticated_sessions": s.hub.SessionCount(),
		"public_subscribers":     s.public.SubscriberCount(),
	}
}
