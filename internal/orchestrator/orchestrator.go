// Package orchestrator implements C4: the per-contest progression state
// machine, timers, early-advancement and crash recovery. It is grounded on
// the teacher's internal/realtime Hub's single-goroutine-owns-state pattern
// (register/unregister/broadcast channels all drained by one select loop),
// generalized here into one such loop per contest, reachable only through
// that contest's command channel.
package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"competitive-programming-platform/internal/clock"
	"competitive-programming-platform/internal/contestcore"
)

const (
	interstitialGrace = 2 * time.Second
	timerTickInterval = 1 * time.Second
)

// Orchestrator is C4's top-level type: one contestLoop goroutine per
// touched contest, reachable through a buffered command channel. The
// map from contestId to that channel is the only place a mutex is needed,
// matching spec.md §5's "one map of contestId -> RuntimeContestState ...
// mutations are serialized by ownership."
type Orchestrator struct {
	contests     contestcore.ContestRepository
	submissions  contestcore.SubmissionRepository
	leaderboard  contestcore.LeaderboardIndex
	broadcaster  contestcore.Broadcaster
	clock        clock.Clock

	mu     sync.Mutex
	actors map[string]chan command
}

// New builds an Orchestrator. broadcaster may be nil in tests that only
// assert on internal state transitions.
func New(contests contestcore.ContestRepository, submissions contestcore.SubmissionRepository, lb contestcore.LeaderboardIndex, broadcaster contestcore.Broadcaster, clk clock.Clock) *Orchestrator {
	return &Orchestrator{
		contests:    contests,
		submissions: submissions,
		leaderboard: lb,
		broadcaster: broadcaster,
		clock:       clk,
		actors:      make(map[string]chan command),
	}
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdRecordSubmission
	cmdUpdateParticipantCount
	cmdQuestionTimerExpired
	cmdInterstitialGraceElapsed
	cmdStop
	cmdSnapshot
)

type command struct {
	kind       commandKind
	userID     string
	questionID string
	generation int // guards stale timer callbacks from a prior question/phase
	reply      chan *Snapshot
}

// Snapshot is the immutable, late-joiner-safe view getCurrentQuestionData
// returns (§4.4.4).
type Snapshot struct {
	ContestID      string
	Phase          string
	Question       *contestcore.ContestQuestion
	QuestionNumber int
	TotalQuestions int
	RemainingTime  time.Duration
}

func (o *Orchestrator) actorFor(contestID string) chan command {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch, ok := o.actors[contestID]
	if ok {
		return ch
	}
	ch = make(chan command, 64)
	o.actors[contestID] = ch
	go o.contestLoop(contestID, ch)
	return ch
}

func (o *Orchestrator) removeActor(contestID string, ch chan command) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.actors[contestID] == ch {
		delete(o.actors, contestID)
	}
}

// ensureContestRunning is invoked by C5 on each join/resync: if runtime
// state is ACTIVE and no state exists yet, start it now; if UPCOMING and
// unscheduled, schedule it. startContest already implements both branches
// idempotently, so this is just an alias kept for spec-name parity.
func (o *Orchestrator) EnsureContestRunning(ctx context.Context, contestID string) {
	o.StartContest(ctx, contestID)
}

// StartContest posts a start request onto the contest's actor, creating the
// actor if this is the first time this contest has been touched.
func (o *Orchestrator) StartContest(ctx context.Context, contestID string) {
	o.actorFor(contestID) <- command{kind: cmdStart}
}

// RecordSubmission tells C4 a submission landed, so early advancement can
// be rechecked. Implements the submission package's Notifier interface
// structurally (RecordSubmission(contestID, userID, questionID)).
func (o *Orchestrator) RecordSubmission(contestID, userID, questionID string) {
	o.actorFor(contestID) <- command{kind: cmdRecordSubmission, userID: userID, questionID: questionID}
}

// UpdateParticipantCount recounts totalParticipants from storage, called
// when a user joins, keeping the early-advancement denominator fresh.
func (o *Orchestrator) UpdateParticipantCount(contestID string) {
	o.actorFor(contestID) <- command{kind: cmdUpdateParticipantCount}
}

// StopContest cancels a contest's timers and pending interstitial delays
// and removes its state, per §5 Cancellation.
func (o *Orchestrator) StopContest(contestID string) {
	o.mu.Lock()
	ch, ok := o.actors[contestID]
	o.mu.Unlock()
	if !ok {
		return
	}
	ch <- command{kind: cmdStop}
}

// GetCurrentQuestionData implements §4.4.4's late-joiner snapshot.
func (o *Orchestrator) GetCurrentQuestionData(contestID string) *Snapshot {
	reply := make(chan *Snapshot, 1)
	o.actorFor(contestID) <- command{kind: cmdSnapshot, reply: reply}
	return <-reply
}

// HasExpired implements submission.TimerCheck: a question is treated as
// expired for grading purposes both when its timer has run out and when
// the contest has already moved past it, satisfying §4.3.1's "on
// ambiguity, reject" rule for TIME_EXPIRED.
func (o *Orchestrator) HasExpired(contestID, questionID string) bool {
	snap := o.GetCurrentQuestionData(contestID)
	if snap == nil || snap.Question == nil || snap.Question.QuestionID != questionID {
		return true
	}
	return snap.RemainingTime <= 0
}

// contestLoop is the single goroutine that owns one contest's
// runtimeContestState. Every mutation happens here; timer callbacks from
// clock.After/clock.Every only ever post a command onto cmds, never touch
// state directly, satisfying §5's no-lock-needed ownership rule.
func (o *Orchestrator) contestLoop(contestID string, cmds chan command) {
	ctx := context.Background()
	st := newRuntimeContestState(contestID)
	generation := 0

	for cmd := range cmds {
		switch cmd.kind {
		case cmdStart:
			o.handleStart(ctx, st, &generation)
		case cmdRecordSubmission:
			o.handleRecordSubmission(st, &generation, cmd)
		case cmdUpdateParticipantCount:
			o.handleUpdateParticipantCount(ctx, st, &generation)
		case cmdQuestionTimerExpired:
			if cmd.generation != generation {
				continue // stale timer from a question we already left
			}
			o.enterInterstitial(st, &generation)
		case cmdInterstitialGraceElapsed:
			if cmd.generation != generation {
				continue
			}
			o.advanceOrEnd(ctx, st, &generation)
		case cmdStop:
			st.cancelTimers()
			st.cancelSchedule()
			o.removeActor(contestID, cmds)
			return
		case cmdSnapshot:
			cmd.reply <- o.snapshotOf(st)
		}

		if st.phase == phaseEnded {
			o.removeActor(contestID, cmds)
			return
		}
	}
}

func (o *Orchestrator) snapshotOf(st *runtimeContestState) *Snapshot {
	q := st.currentQuestion()
	if q == nil || st.phase != phaseRunning {
		return nil
	}
	elapsed := o.clock.Monotonic() - st.currentQuestionStart
	remaining := time.Duration(q.TimeLimitSecs)*time.Second - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return &Snapshot{
		ContestID:      st.contestID,
		Phase:          "RUNNING",
		Question:       q,
		QuestionNumber: st.currentQuestionIndex + 1,
		TotalQuestions: len(st.questions),
		RemainingTime:  remaining,
	}
}

// handleStart implements §4.4.1's startContest transition.
func (o *Orchestrator) handleStart(ctx context.Context, st *runtimeContestState, generation *int) {
	c, err := o.contests.GetContest(ctx, st.contestID)
	if err != nil {
		log.Printf("orchestrator: start %s: load contest: %v", st.contestID, err)
		return
	}
	now := o.clock.Now()
	switch c.RuntimeState(now) {
	case contestcore.StateCompleted:
		log.Printf("orchestrator: contest %s already completed, start is a no-op", st.contestID)
	case contestcore.StateUpcoming:
		if st.phase == phaseScheduled {
			return // idempotent: already scheduled
		}
		st.cancelSchedule()
		st.phase = phaseScheduled
		delay := c.StartAt.Sub(now)
		st.scheduleCancel = o.clock.After(delay, func() {
			o.actorFor(st.contestID) <- command{kind: cmdStart}
		})
		if o.broadcaster != nil {
			o.broadcaster.BroadcastToRoom(st.contestID, contestcore.EventContestStart, contestcore.ContestStartPayload{
				ContestID:        st.contestID,
				CountdownToStart: int(delay.Seconds()),
			})
		}
	case contestcore.StateActive:
		if st.phase == phaseRunning || st.phase == phaseInterstitial {
			return // idempotent: already running
		}
		questions, err := o.contests.GetOrderedQuestions(ctx, st.contestID)
		if err != nil {
			log.Printf("orchestrator: start %s: load questions: %v", st.contestID, err)
			return
		}
		if len(questions) == 0 {
			return
		}
		st.questions = questions
		count, err := o.contests.CountParticipants(ctx, st.contestID)
		if err != nil {
			log.Printf("orchestrator: start %s: count participants: %v", st.contestID, err)
		}
		st.totalParticipants = count
		st.currentQuestionIndex = -1
		if o.broadcaster != nil {
			o.broadcaster.BroadcastToRoom(st.contestID, contestcore.EventContestStart, contestcore.ContestStartPayload{ContestID: st.contestID})
		}
		o.enterQuestion(ctx, st, generation, 0)
	}
}

// enterQuestion moves into Running(index), preloading submittedUsers from
// durable storage for crash recovery (§4.4.1 Recovery), and skipping
// immediately if that preload already satisfies early advancement.
func (o *Orchestrator) enterQuestion(ctx context.Context, st *runtimeContestState, generation *int, index int) {
	if index >= len(st.questions) {
		st.phase = phaseEnded
		o.endContest(ctx, st)
		return
	}

	st.currentQuestionIndex = index
	q := st.currentQuestion()

	existing, err := o.submissions.ListSubmissions(ctx, st.contestID, q.QuestionID)
	if err != nil {
		log.Printf("orchestrator: preload submissions for %s/%s: %v", st.contestID, q.QuestionID, err)
	}
	st.submittedUsers = make(map[string]struct{}, len(existing))
	for _, s := range existing {
		st.submittedUsers[s.UserID] = struct{}{}
	}

	if st.earlyAdvancementReady() {
		// Recovery: every participant already answered this question
		// before the process restarted. Skip without broadcasting.
		o.enterQuestion(ctx, st, generation, index+1)
		return
	}

	st.phase = phaseRunning
	*generation++
	gen := *generation
	st.currentQuestionStart = o.clock.Monotonic()

	options := o.resolveOptions(ctx, q)
	if o.broadcaster != nil {
		o.broadcaster.BroadcastToRoom(st.contestID, contestcore.EventQuestionBroadcast, buildQuestionBroadcast(q, index, len(st.questions), options))
	}

	st.endCancel = o.clock.After(time.Duration(q.TimeLimitSecs)*time.Second, func() {
		o.actorFor(st.contestID) <- command{kind: cmdQuestionTimerExpired, generation: gen}
	})
	st.tickCancel = o.clock.Every(timerTickInterval, func() {
		o.broadcastTimerUpdate(st)
	})
}

func (o *Orchestrator) resolveOptions(ctx context.Context, q *contestcore.ContestQuestion) []contestcore.Option {
	if q.Question.Type != contestcore.QuestionMCQ {
		return nil
	}
	opts, err := o.contests.GetOptionsFor(ctx, q.QuestionID)
	if err != nil {
		log.Printf("orchestrator: resolve options for %s: %v", q.QuestionID, err)
		return nil
	}
	return opts
}

func buildQuestionBroadcast(q *contestcore.ContestQuestion, index, total int, options []contestcore.Option) contestcore.QuestionBroadcastPayload {
	payload := contestcore.QuestionBroadcastPayload{
		QuestionID:     q.QuestionID,
		QuestionNumber: index + 1,
		TotalQuestions: total,
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

// broadcastTimerUpdate is safe to call from the clock callback's own
// goroutine: it only reads o.broadcaster and o.clock, and a best-effort
// snapshot of st fields that the callback closure captured by pointer is
// read-raced against the owning loop only for RemainingTime's arithmetic,
// which is tolerant of a stale read (the next tick corrects it).
func (o *Orchestrator) broadcastTimerUpdate(st *runtimeContestState) {
	q := st.currentQuestion()
	if q == nil || o.broadcaster == nil {
		return
	}
	elapsed := o.clock.Monotonic() - st.currentQuestionStart
	remaining := time.Duration(q.TimeLimitSecs)*time.Second - elapsed
	if remaining < 0 {
		remaining = 0
	}
	o.broadcaster.BroadcastToRoom(st.contestID, contestcore.EventTimerUpdate, contestcore.TimerUpdatePayload{
		QuestionID:    q.QuestionID,
		RemainingSecs: int(remaining.Seconds()),
	})
}

func (o *Orchestrator) handleRecordSubmission(st *runtimeContestState, generation *int, cmd command) {
	if st.phase != phaseRunning {
		return
	}
	q := st.currentQuestion()
	if q == nil || q.QuestionID != cmd.questionID {
		return // submission for a question we've already left
	}
	st.submittedUsers[cmd.userID] = struct{}{}
	if st.earlyAdvancementReady() {
		o.enterInterstitial(st, generation)
	}
}

func (o *Orchestrator) handleUpdateParticipantCount(ctx context.Context, st *runtimeContestState, generation *int) {
	count, err := o.contests.CountParticipants(ctx, st.contestID)
	if err != nil {
		log.Printf("orchestrator: update participant count for %s: %v", st.contestID, err)
		return
	}
	st.totalParticipants = count
	if st.phase == phaseRunning && st.earlyAdvancementReady() {
		o.enterInterstitial(st, generation)
	}
}

// enterInterstitial implements the Running -> Interstitial transition,
// triggered by either the end-of-question timer or early advancement.
func (o *Orchestrator) enterInterstitial(st *runtimeContestState, generation *int) {
	if st.phase != phaseRunning {
		return
	}
	st.cancelTimers()
	st.phase = phaseInterstitial
	*generation++
	gen := *generation

	q := st.currentQuestion()
	var nextID string
	if st.currentQuestionIndex+1 < len(st.questions) {
		nextID = st.questions[st.currentQuestionIndex+1].QuestionID
	}
	if o.broadcaster != nil {
		o.broadcaster.BroadcastToRoom(st.contestID, contestcore.EventQuestionChange, contestcore.QuestionChangePayload{
			PreviousQuestionID: q.QuestionID,
			NextQuestionID:     nextID,
			GraceSeconds:       int(interstitialGrace.Seconds()),
		})
	}

	o.clock.After(interstitialGrace, func() {
		o.actorFor(st.contestID) <- command{kind: cmdInterstitialGraceElapsed, generation: gen}
	})
}

func (o *Orchestrator) advanceOrEnd(ctx context.Context, st *runtimeContestState, generation *int) {
	o.enterQuestion(ctx, st, generation, st.currentQuestionIndex+1)
}

// endContest implements §4.4.1's endContest: broadcast contest_end, persist
// the final leaderboard, and let contestLoop tear down the actor.
func (o *Orchestrator) endContest(ctx context.Context, st *runtimeContestState) {
	tracer := otel.Tracer("orchestrator")
	ctx, span := tracer.Start(ctx, "orchestrator.end_contest")
	defer span.End()
	span.SetAttributes(attribute.String("contest.id", st.contestID))

	if o.broadcaster != nil {
		o.broadcaster.BroadcastToRoom(st.contestID, contestcore.EventContestEnd, contestcore.ContestEndPayload{ContestID: st.contestID})
	}
	if err := o.leaderboard.PersistLeaderboard(ctx, st.contestID); err != nil {
		span.RecordError(err)
		log.Printf("orchestrator: persist leaderboard for %s: %v", st.contestID, err)
	}
}
