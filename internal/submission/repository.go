// Package submission implements C3: validate, grade, persist, update score,
// compute rank, with at-most-once semantics per (user, contest, question).
package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"competitive-programming-platform/internal/contestcore"
	"competitive-programming-platform/pkg/database"
)

// Repository is the pgx-backed contestcore.SubmissionRepository, grounded on
// internal/judge/service.go's createSubmissionRecord/updateSubmissionResult
// query shape, generalized to contest questions and an explicit unique
// constraint on (user_id, contest_id, question_id).
type Repository struct {
	db *database.DB
}

// NewRepository builds a Repository over an existing connection pool.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// FindSubmission returns the existing row for (userID, contestID,
// questionID), or nil if none exists yet.
func (r *Repository) FindSubmission(ctx context.Context, userID, contestID, questionID string) (*contestcore.Submission, error) {
	const query = `
		SELECT id, user_id, contest_id, question_id, COALESCE(selected_option_id, ''),
		       COALESCE(code, ''), COALESCE(language, ''), status, is_correct, points_earned,
		       submitted_at, execution_time_ms, memory_usage_kb, test_cases_passed, total_test_cases
		FROM contest_submissions
		WHERE user_id = $1 AND contest_id = $2 AND question_id = $3
	`
	var s contestcore.Submission
	err := r.db.Pool.QueryRow(ctx, query, userID, contestID, questionID).Scan(
		&s.ID, &s.UserID, &s.ContestID, &s.QuestionID, &s.SelectedOptionID,
		&s.Code, &s.Language, &s.Status, &s.IsCorrect, &s.PointsEarned,
		&s.SubmittedAt, &s.ExecutionTimeMS, &s.MemoryUsageKB, &s.TestCasesPassed, &s.TotalTestCases,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("submission repository: find: %w", err)
	}
	return &s, nil
}

// CreateOrUpdateSubmission upserts on the (user_id, contest_id, question_id)
// unique constraint. Callers enforce the terminal/no-downgrade rule before
// calling this; the repository itself only persists whatever row it is
// given, matching the teacher's updateSubmissionResult being a plain write.
func (r *Repository) CreateOrUpdateSubmission(ctx context.Context, s contestcore.Submission) (contestcore.Submission, error) {
	const query = `
		INSERT INTO contest_submissions
			(user_id, contest_id, question_id, selected_option_id, code, language,
			 status, is_correct, points_earned, submitted_at,
			 execution_time_ms, memory_usage_kb, test_cases_passed, total_test_cases)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
		        $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id, contest_id, question_id) DO UPDATE SET
			selected_option_id = EXCLUDED.selected_option_id,
			code               = EXCLUDED.code,
			language           = EXCLUDED.language,
			status             = EXCLUDED.status,
			is_correct         = EXCLUDED.is_correct,
			points_earned      = EXCLUDED.points_earned,
			submitted_at       = EXCLUDED.submitted_at,
			execution_time_ms  = EXCLUDED.execution_time_ms,
			memory_usage_kb    = EXCLUDED.memory_usage_kb,
			test_cases_passed  = EXCLUDED.test_cases_passed,
			total_test_cases   = EXCLUDED.total_test_cases
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		s.UserID, s.ContestID, s.QuestionID, s.SelectedOptionID, s.Code, s.Language,
		s.Status, s.IsCorrect, s.PointsEarned, s.SubmittedAt,
		s.ExecutionTimeMS, s.MemoryUsageKB, s.TestCasesPassed, s.TotalTestCases,
	).Scan(&s.ID)
	if err != nil {
		return contestcore.Submission{}, fmt.Errorf("submission repository: upsert: %w", err)
	}
	return s, nil
}

// ListSubmissions returns every submission for a given contest+question,
// used by the orchestrator's recovery path to preload submittedUsers.
func (r *Repository) ListSubmissions(ctx context.Context, contestID, questionID string) ([]contestcore.Submission, error) {
	const query = `
		SELECT id, user_id, contest_id, question_id, COALESCE(selected_option_id, ''),
		       COALESCE(code, ''), COALESCE(language, ''), status, is_correct, points_earned,
		       submitted_at, execution_time_ms, memory_usage_kb, test_cases_passed, total_test_cases
		FROM contest_submissions
		WHERE contest_id = $1 AND question_id = $2
	`
	rows, err := r.db.Pool.Query(ctx, query, contestID, questionID)
	if err != nil {
		return nil, fmt.Errorf("submission repository: list: %w", err)
	}
	defer rows.Close()

	var out []contestcore.Submission
	for rows.Next() {
		var s contestcore.Submission
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.ContestID, &s.QuestionID, &s.SelectedOptionID,
			&s.Code, &s.Language, &s.Status, &s.IsCorrect, &s.PointsEarned,
			&s.SubmittedAt, &s.ExecutionTimeMS, &s.MemoryUsageKB, &s.TestCasesPassed, &s.TotalTestCases,
		); err != nil {
			return nil, fmt.Errorf("submission repository: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListCorrectWithPoints returns every currently-correct submission a user
// has in a contest, the basis for the score invariant. The leaderboard's
// questionsAnswered count comes from CorrectCount instead.
func (r *Repository) ListCorrectWithPoints(ctx context.Context, userID, contestID string) ([]contestcore.Submission, error) {
	const query = `
		SELECT cs.id, cs.user_id, cs.contest_id, cs.question_id, COALESCE(cs.selected_option_id, ''),
		       COALESCE(cs.code, ''), COALESCE(cs.language, ''), cs.status, cs.is_correct, cs.points_earned,
		       cs.submitted_at, cs.execution_time_ms, cs.memory_usage_kb, cs.test_cases_passed, cs.total_test_cases
		FROM contest_submissions cs
		WHERE cs.user_id = $1 AND cs.contest_id = $2 AND cs.is_correct = TRUE
	`
	rows, err := r.db.Pool.Query(ctx, query, userID, contestID)
	if err != nil {
		return nil, fmt.Errorf("submission repository: list correct: %w", err)
	}
	defer rows.Close()

	var out []contestcore.Submission
	for rows.Next() {
		var s contestcore.Submission
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.ContestID, &s.QuestionID, &s.SelectedOptionID,
			&s.Code, &s.Language, &s.Status, &s.IsCorrect, &s.PointsEarned,
			&s.SubmittedAt, &s.ExecutionTimeMS, &s.MemoryUsageKB, &s.TestCasesPassed, &s.TotalTestCases,
		); err != nil {
			return nil, fmt.Errorf("submission repository: scan correct: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CorrectCount implements leaderboard.SubmissionCounter.
func (r *Repository) CorrectCount(ctx context.Context, contestID, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM contest_submissions WHERE contest_id = $1 AND user_id = $2 AND is_correct = TRUE`
	var n int
	if err := r.db.Pool.QueryRow(ctx, query, contestID, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("submission repository: correct count: %w", err)
	}
	return n, nil
}

var _ contestcore.SubmissionRepository = (*Repository)(nil)
