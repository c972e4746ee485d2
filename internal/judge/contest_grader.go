package judge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"competitive-programming-platform/internal/contestcore"
)

// defaultContestTimeLimitSecs and defaultContestMemoryLimitMB back-fill
// sandbox resource limits the CodeGrader interface's
// (code, language, questionId) signature has no room for; a real deployment
// would resolve these per-question from the question bank, same as
// ContestRepository.GetOptionsFor resolves MCQ options. Kept as constants
// here since no question-bank lookup for CODING limits is wired into this
// adapter yet.
const (
	defaultContestTimeLimitSecs = 5
	defaultContestMemoryLimitMB = 256
	defaultGradeTimeout         = 30 * time.Second
)

// ContestCodeGrader implements contestcore.CodeGrader over the same
// asynq-dispatched sandbox pipeline internal/judge already runs for
// practice-problem submissions, presenting C3 a blocking call per spec.md
// §4.3.2 while the actual grading runs in an asynq task handler. The handler
// must be registered in the same process as this grader, since the
// CompletionRegistry it waits on is in-memory (main.go does this).
type ContestCodeGrader struct {
	queue    *QueueManager
	registry *CompletionRegistry
	timeout  time.Duration
}

// NewContestCodeGrader builds a ContestCodeGrader. A zero timeout defaults
// to defaultGradeTimeout.
func NewContestCodeGrader(qm *QueueManager, registry *CompletionRegistry, timeout time.Duration) *ContestCodeGrader {
	if timeout <= 0 {
		timeout = defaultGradeTimeout
	}
	return &ContestCodeGrader{queue: qm, registry: registry, timeout: timeout}
}

// Grade enqueues a judge:contest_submission task and blocks until the async
// worker calls CompletionRegistry.Complete for the generated submission ID,
// or the grading timeout elapses. A worker that never responds (wedged) is
// reported as a RUNTIME_ERROR verdict rather than an error, so the caller
// still persists and scores the submission like any other graded attempt.
// Only a failure to even dispatch the task (the grader is unreachable) is
// surfaced as an error.
func (g *ContestCodeGrader) Grade(ctx context.Context, code, language, questionID string) (contestcore.Verdict, error) {
	submissionID := uuid.NewString()
	payload := &SubmissionPayload{
		SubmissionID: submissionID,
		ProblemID:    questionID,
		Language:     language,
		SourceCode:   code,
		TimeLimit:    defaultContestTimeLimitSecs * 1000,
		MemoryLimit:  defaultContestMemoryLimitMB,
	}

	if err := g.queue.EnqueueContestSubmission(ctx, payload); err != nil {
		return contestcore.Verdict{}, contestcore.NewError(contestcore.CodeServerError, fmt.Sprintf("grader unreachable: %v", err))
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.registry.Await(waitCtx, submissionID)
	if err != nil {
		return contestcore.Verdict{
			Status:       contestcore.StatusRuntimeError,
			ErrorMessage: fmt.Sprintf("grading timed out: %v", err),
		}, nil
	}
	return toContestVerdict(result), nil
}

func toContestVerdict(r JudgeResult) contestcore.Verdict {
	return contestcore.Verdict{
		Status:          mapVerdictStatus(r.Verdict),
		ExecutionTimeMS: r.ExecutionTime.Milliseconds(),
		MemoryUsageKB:   r.MemoryUsage,
		TestCasesPassed: r.TestCasesRun,
		TotalTestCases:  r.TotalTestCases,
		ErrorMessage:    r.ErrorMessage,
	}
}

// mapVerdictStatus translates internal/judge's short-code Verdict vocabulary
// (AC/WA/TLE/...) into contestcore's long-form SubmissionStatus. The two
// vocabularies are kept independently named: judge.Verdict predates this
// module and spec.md doesn't mandate a naming scheme for either.
func mapVerdictStatus(v Verdict) contestcore.SubmissionStatus {
	switch v {
	case VerdictAccepted:
		return contestcore.StatusAccepted
	case VerdictWrongAnswer:
		return contestcore.StatusWrongAnswer
	case VerdictTimeLimitExceeded:
		return contestcore.StatusTimeLimitExceeded
	case VerdictMemoryLimitExceeded:
		return contestcore.StatusMemoryLimitExceeded
	case VerdictCompilationError:
		return contestcore.StatusCompilationError
	case VerdictRuntimeError, VerdictInternalError, VerdictPending:
		return contestcore.StatusRuntimeError
	default:
		return contestcore.StatusRuntimeError
	}
}

var _ contestcore.CodeGrader = (*ContestCodeGrader)(nil)
