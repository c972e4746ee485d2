package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"competitive-programming-platform/internal/contestcore"
)

// AnswerInput is what a session (C5) hands the pipeline. C5 does no
// duplicate check of its own; Submit's terminal-row check rejects
// duplicates with ALREADY_SUBMITTED.
type AnswerInput struct {
	SelectedOptionID string
	Code             string
	Language         string
	SubmittedAt      time.Time
}

// Notifier is C3's narrow view of C4: tell the orchestrator a submission
// landed, so it can recheck the early-advancement predicate.
type Notifier interface {
	RecordSubmission(contestID, userID, questionID string)
}

// TimerCheck lets the pipeline ask C4 whether a question's timer has
// already elapsed, per §4.3.1's TIME_EXPIRED precondition ("on ambiguity,
// reject" — a nil TimerCheck is treated as "never expired", which only a
// test harness without an orchestrator should do).
type TimerCheck interface {
	HasExpired(contestID, questionID string) bool
}

// Pipeline is C3: validate, grade, persist, update score, compute rank.
type Pipeline struct {
	contests     contestcore.ContestRepository
	submissions  contestcore.SubmissionRepository
	leaderboard  contestcore.LeaderboardIndex
	grader       contestcore.CodeGrader
	notifier     Notifier
	timer        TimerCheck
}

// New builds a Pipeline. timer may be nil in tests that don't exercise
// TIME_EXPIRED.
func New(contests contestcore.ContestRepository, submissions contestcore.SubmissionRepository, lb contestcore.LeaderboardIndex, grader contestcore.CodeGrader, notifier Notifier, timer TimerCheck) *Pipeline {
	return &Pipeline{contests: contests, submissions: submissions, leaderboard: lb, grader: grader, notifier: notifier, timer: timer}
}

// Submit runs the full C3 pipeline for one answer. MCQ grading is
// synchronous; CODING grading is delegated to the CodeGrader collaborator,
// which in production blocks on the asynq-dispatched worker's result
// (see internal/judge's ContestCodeGrader) so this call's external contract
// stays the simple synchronous "grade(code, language, questionId) → verdict"
// spec.md describes, whatever the delegate does underneath.
func (p *Pipeline) Submit(ctx context.Context, userID, contestID, questionID string, in AnswerInput) (contestcore.SubmissionResult, error) {
	tracer := otel.Tracer("submission-pipeline")
	ctx, span := tracer.Start(ctx, "submission.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("submission.user_id", userID),
		attribute.String("submission.contest_id", contestID),
		attribute.String("submission.question_id", questionID),
	)

	contestVal, err := p.contests.GetContest(ctx, contestID)
	if err != nil {
		span.RecordError(err)
		return contestcore.SubmissionResult{}, err
	}
	if contestVal.RuntimeState(in.SubmittedAt) != contestcore.StateActive {
		return contestcore.SubmissionResult{}, contestcore.ErrContestNotActive
	}

	isParticipant, err := p.contests.IsParticipant(ctx, contestID, userID)
	if err != nil {
		return contestcore.SubmissionResult{}, fmt.Errorf("submission pipeline: check participant: %w", err)
	}
	if !isParticipant {
		return contestcore.SubmissionResult{}, contestcore.ErrNotParticipant
	}

	questions, err := p.contests.GetOrderedQuestions(ctx, contestID)
	if err != nil {
		return contestcore.SubmissionResult{}, fmt.Errorf("submission pipeline: load questions: %w", err)
	}
	cq := findQuestion(questions, questionID)
	if cq == nil {
		return contestcore.SubmissionResult{}, contestcore.ErrInvalidQuestion
	}

	if p.timer != nil && p.timer.HasExpired(contestID, questionID) {
		return contestcore.SubmissionResult{}, contestcore.ErrTimeExpired
	}

	existing, err := p.submissions.FindSubmission(ctx, userID, contestID, questionID)
	if err != nil {
		return contestcore.SubmissionResult{}, fmt.Errorf("submission pipeline: find existing: %w", err)
	}
	if existing != nil && existing.IsTerminal(cq.Question.Type) {
		return contestcore.SubmissionResult{}, contestcore.ErrAlreadySubmitted
	}

	var row contestcore.Submission
	if existing != nil {
		row = *existing
	} else {
		row.ID = uuid.NewString()
	}
	row.UserID = userID
	row.ContestID = contestID
	row.QuestionID = questionID
	row.SubmittedAt = in.SubmittedAt

	var gradeErr error
	switch cq.Question.Type {
	case contestcore.QuestionMCQ:
		if err := p.gradeMCQ(ctx, cq, in, &row); err != nil {
			return contestcore.SubmissionResult{}, err
		}
	case contestcore.QuestionCoding:
		// A grader failure (wedged worker, unreachable queue) still leaves
		// row in a persistable, non-accepted state; gradeCoding never
		// returns early without filling it in, so the row below always
		// reflects this attempt rather than silently dropping it.
		gradeErr = p.gradeCoding(ctx, cq, in, &row)
	default:
		return contestcore.SubmissionResult{}, contestcore.NewError(contestcore.CodeServerError, "unknown question type")
	}

	saved, err := p.submissions.CreateOrUpdateSubmission(ctx, row)
	if err != nil {
		return contestcore.SubmissionResult{}, fmt.Errorf("submission pipeline: persist: %w", err)
	}
	if gradeErr != nil {
		return contestcore.SubmissionResult{}, gradeErr
	}

	score, err := p.recomputeScore(ctx, userID, contestID, questions)
	if err != nil {
		return contestcore.SubmissionResult{}, fmt.Errorf("submission pipeline: recompute score: %w", err)
	}
	if err := p.leaderboard.UpdateScore(ctx, contestID, userID, score); err != nil {
		span.RecordError(err)
		return contestcore.SubmissionResult{}, fmt.Errorf("submission pipeline: update score: %w", err)
	}

	rank := 0
	if entry, err := p.leaderboard.GetUserRank(ctx, contestID, userID); err == nil && entry != nil {
		rank = entry.Rank
	}

	if p.notifier != nil {
		p.notifier.RecordSubmission(contestID, userID, questionID)
	}

	return contestcore.SubmissionResult{
		SubmissionID: saved.ID,
		IsCorrect:    saved.IsCorrect,
		PointsEarned: saved.PointsEarned,
		TimeTaken:    in.SubmittedAt.Sub(row.SubmittedAt),
		CurrentScore: score,
		CurrentRank:  rank,
	}, nil
}

func (p *Pipeline) gradeMCQ(ctx context.Context, cq *contestcore.ContestQuestion, in AnswerInput, row *contestcore.Submission) error {
	options, err := p.contests.GetOptionsFor(ctx, cq.QuestionID)
	if err != nil {
		return fmt.Errorf("submission pipeline: load options: %w", err)
	}
	opt := findOption(options, in.SelectedOptionID)
	if opt == nil {
		return contestcore.ErrInvalidOption
	}

	row.SelectedOptionID = in.SelectedOptionID
	row.IsCorrect = opt.IsCorrect
	if opt.IsCorrect {
		row.Status = contestcore.StatusAccepted
		row.PointsEarned = cq.Points
	} else {
		row.Status = contestcore.StatusWrongAnswer
		row.PointsEarned = 0
	}
	return nil
}

// gradeCoding delegates to the CodeGrader collaborator. Retry semantics are
// already enforced by the terminal check in Submit: an accepted row never
// reaches here, so every row that does gets its code/language and graded
// metrics overwritten, win or lose.
func (p *Pipeline) gradeCoding(ctx context.Context, cq *contestcore.ContestQuestion, in AnswerInput, row *contestcore.Submission) error {
	row.Code = in.Code
	row.Language = in.Language

	verdict, err := p.grader.Grade(ctx, in.Code, in.Language, cq.QuestionID)
	if err != nil {
		// The grader itself is unreachable, not just slow. Record the
		// attempt as a non-accepted row so the next submit is recognized
		// as a retry instead of racing a fresh insert, then surface the
		// failure to the caller.
		row.Status = contestcore.StatusRuntimeError
		row.IsCorrect = false
		row.PointsEarned = 0
		return contestcore.NewError(contestcore.CodeServerError, err.Error())
	}

	row.ExecutionTimeMS = verdict.ExecutionTimeMS
	row.MemoryUsageKB = verdict.MemoryUsageKB
	row.TestCasesPassed = verdict.TestCasesPassed
	row.TotalTestCases = verdict.TotalTestCases

	// Never downgrade a terminal acceptance: Submit already rejected
	// resubmission to an accepted row via ALREADY_SUBMITTED, so this only
	// guards the case where verdict status somehow regresses mid-grade.
	if row.IsCorrect && verdict.Status != contestcore.StatusAccepted {
		return nil
	}

	row.Status = verdict.Status
	row.IsCorrect = verdict.Status == contestcore.StatusAccepted
	if row.IsCorrect {
		row.PointsEarned = cq.Points
	} else {
		row.PointsEarned = 0
	}
	return nil
}

// recomputeScore sums points over every currently-correct submission the
// user has in this contest, satisfying the §4.3.3 score invariant.
func (p *Pipeline) recomputeScore(ctx context.Context, userID, contestID string, questions []contestcore.ContestQuestion) (int, error) {
	correct, err := p.submissions.ListCorrectWithPoints(ctx, userID, contestID)
	if err != nil {
		return 0, err
	}
	pointsByQuestion := make(map[string]int, len(questions))
	for _, cq := range questions {
		pointsByQuestion[cq.QuestionID] = cq.Points
	}
	total := 0
	for _, s := range correct {
		total += pointsByQuestion[s.QuestionID]
	}
	return total, nil
}

func findQuestion(qs []contestcore.ContestQuestion, questionID string) *contestcore.ContestQuestion {
	for i := range qs {
		if qs[i].QuestionID == questionID {
			return &qs[i]
		}
	}
	return nil
}

func findOption(opts []contestcore.Option, optionID string) *contestcore.Option {
	for i := range opts {
		if opts[i].ID == optionID {
			return &opts[i]
		}
	}
	return nil
}
