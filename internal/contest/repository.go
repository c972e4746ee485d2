// Package contest is the pgx-backed contestcore.ContestRepository and
// contestcore.LeaderboardSnapshotRepository implementation. The teacher's
// contest-CRUD REST surface (practice contests against a different
// problems/registrations schema) is out of scope here; see DESIGN.md.
package contest

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"competitive-programming-platform/internal/contestcore"
	"competitive-programming-platform/pkg/database"
)

// Repository is the pgx-backed contestcore.ContestRepository collaborator,
// running its queries directly against *database.DB. Question/option
// resolution is delegated through the questions table.
type Repository struct {
	db *database.DB
}

// NewRepository builds a Repository over an existing connection pool.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// GetContest loads a single contest's identity and open/close window.
func (r *Repository) GetContest(ctx context.Context, contestID string) (contestcore.Contest, error) {
	const query = `
		SELECT id, title, COALESCE(description, ''), start_time, end_time, status
		FROM contests
		WHERE id = $1
	`
	var c contestcore.Contest
	err := r.db.Pool.QueryRow(ctx, query, contestID).Scan(
		&c.ID, &c.Title, &c.Description, &c.StartAt, &c.EndAt, &c.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return contestcore.Contest{}, contestcore.ErrContestNotFound
	}
	if err != nil {
		return contestcore.Contest{}, fmt.Errorf("contest repository: get contest: %w", err)
	}
	return c, nil
}

// ListContests returns every contest's identity and open/close window, for
// C6's subscribe_contests snapshot (§5.6).
func (r *Repository) ListContests(ctx context.Context) ([]contestcore.Contest, error) {
	const query = `
		SELECT id, title, COALESCE(description, ''), start_time, end_time, status
		FROM contests
		ORDER BY start_time DESC
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("contest repository: list contests: %w", err)
	}
	defer rows.Close()

	var out []contestcore.Contest
	for rows.Next() {
		var c contestcore.Contest
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.StartAt, &c.EndAt, &c.Status); err != nil {
			return nil, fmt.Errorf("contest repository: scan contest: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetOrderedQuestions returns this contest's questions in orderIndex order,
// joined with the question bank row each entry references.
func (r *Repository) GetOrderedQuestions(ctx context.Context, contestID string) ([]contestcore.ContestQuestion, error) {
	const query = `
		SELECT cq.contest_id, cq.question_id, cq.order_index, cq.time_limit_seconds, cq.points,
		       q.type, q.title, q.description, COALESCE(q.function_name, ''),
		       q.time_limit_ms, q.memory_limit_mb, q.difficulty
		FROM contest_questions cq
		JOIN questions q ON q.id = cq.question_id
		WHERE cq.contest_id = $1
		ORDER BY cq.order_index ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("contest repository: get ordered questions: %w", err)
	}
	defer rows.Close()

	var out []contestcore.ContestQuestion
	for rows.Next() {
		var cq contestcore.ContestQuestion
		if err := rows.Scan(
			&cq.ContestID, &cq.QuestionID, &cq.OrderIndex, &cq.TimeLimitSecs, &cq.Points,
			&cq.Question.Type, &cq.Question.Title, &cq.Question.Description, &cq.Question.FunctionName,
			&cq.Question.TimeLimitMS, &cq.Question.MemoryLimitMB, &cq.Question.Difficulty,
		); err != nil {
			return nil, fmt.Errorf("contest repository: scan question: %w", err)
		}
		cq.Question.ID = cq.QuestionID
		out = append(out, cq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contest repository: iterate questions: %w", err)
	}
	return out, nil
}

// CountParticipants counts rows in contest_participants for this contest.
// This is the denominator §4.4.2's early-advancement predicate compares
// submittedUsers against, and per spec.md §9's open question it includes
// users who joined but never connected.
func (r *Repository) CountParticipants(ctx context.Context, contestID string) (int, error) {
	const query = `SELECT COUNT(*) FROM contest_participants WHERE contest_id = $1`
	var n int
	if err := r.db.Pool.QueryRow(ctx, query, contestID).Scan(&n); err != nil {
		return 0, fmt.Errorf("contest repository: count participants: %w", err)
	}
	return n, nil
}

// IsParticipant reports whether userID has joined contestID.
func (r *Repository) IsParticipant(ctx context.Context, contestID, userID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM contest_participants WHERE contest_id = $1 AND user_id = $2)`
	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, contestID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("contest repository: is participant: %w", err)
	}
	return exists, nil
}

// GetOptionsFor returns a question's MCQ options including IsCorrect; the
// orchestrator strips IsCorrect before broadcasting (§4.4.3).
func (r *Repository) GetOptionsFor(ctx context.Context, questionID string) ([]contestcore.Option, error) {
	const query = `
		SELECT id, text, is_correct
		FROM question_options
		WHERE question_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, questionID)
	if err != nil {
		return nil, fmt.Errorf("contest repository: get options: %w", err)
	}
	defer rows.Close()

	var out []contestcore.Option
	for rows.Next() {
		var o contestcore.Option
		if err := rows.Scan(&o.ID, &o.Text, &o.IsCorrect); err != nil {
			return nil, fmt.Errorf("contest repository: scan option: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Join records contestcore.ContestParticipant when a session's join_contest
// handshake succeeds. Idempotent: joining twice leaves a single row because
// (contest_id, user_id) is unique.
func (r *Repository) Join(ctx context.Context, contestID, userID string) error {
	const query = `
		INSERT INTO contest_participants (contest_id, user_id, joined_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (contest_id, user_id) DO NOTHING
	`
	if _, err := r.db.Pool.Exec(ctx, query, contestID, userID); err != nil {
		return fmt.Errorf("contest repository: join: %w", err)
	}
	return nil
}

// UpsertMany implements contestcore.LeaderboardSnapshotRepository, writing
// the final ranking once at contest end. Re-running it for the same
// ranking produces identical rows since the unique constraint on
// (contest_id, user_id) makes every row an idempotent overwrite.
func (r *Repository) UpsertMany(ctx context.Context, rows []contestcore.LeaderboardSnapshot) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("contest repository: upsert leaderboard snapshot: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO leaderboard_snapshots (contest_id, user_id, rank, score)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (contest_id, user_id) DO UPDATE SET
			rank  = EXCLUDED.rank,
			score = EXCLUDED.score
	`
	for _, row := range rows {
		if _, err := tx.Exec(ctx, query, row.ContestID, row.UserID, row.Rank, row.Score); err != nil {
			return fmt.Errorf("contest repository: upsert leaderboard snapshot: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("contest repository: upsert leaderboard snapshot: commit: %w", err)
	}
	return nil
}

var _ contestcore.ContestRepository = (*Repository)(nil)
var _ contestcore.LeaderboardSnapshotRepository = (*Repository)(nil)
