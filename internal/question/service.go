// Package question manages the organizer-facing question bank: MCQ and
// CODING items with their options and test cases, referenced by ordered
// position from contest_questions. It is the CRUD surface behind the data
// internal/contest's Repository resolves at contest-run time; nothing in
// this package participates in a running contest's orchestration.
package question

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"competitive-programming-platform/internal/contestcore"
	"competitive-programming-platform/pkg/database"
	"competitive-programming-platform/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Service handles question-bank operations
type Service struct {
	db *database.DB
}

// NewService creates a new question service
func NewService(db *database.DB) *Service {
	return &Service{db: db}
}

// Question is the HTTP-facing representation of a question-bank item.
type Question struct {
	ID            string                  `json:"id"`
	Type          contestcore.QuestionType `json:"type"`
	Title         string                  `json:"title"`
	Description   string                  `json:"description"`
	FunctionName  string                  `json:"function_name,omitempty"`
	TimeLimitMS   int                     `json:"time_limit_ms"`
	MemoryLimitMB int                     `json:"memory_limit_mb"`
	Difficulty    contestcore.Difficulty  `json:"difficulty"`
	CreatedBy     *string                 `json:"created_by"`
	Options       []Option                `json:"options,omitempty"`
}

// Option is an MCQ answer choice. IsCorrect is only included in organizer
// reads; ContestRepository.GetOptionsFor is the path participants' clients
// go through, and the orchestrator strips IsCorrect before broadcasting.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// TestCase is a CODING fixture. IsHidden fixtures never leave this package
// with Input/ExpectedOutput populated for non-organizer callers.
type TestCase struct {
	ID             string `json:"id"`
	QuestionID     string `json:"question_id"`
	Input          string `json:"input,omitempty"`
	ExpectedOutput string `json:"expected_output,omitempty"`
	IsHidden       bool   `json:"is_hidden"`
	Order          int    `json:"order"`
}

// CreateQuestionRequest is the body for creating a bank question.
type CreateQuestionRequest struct {
	Type          contestcore.QuestionType `json:"type"`
	Title         string                  `json:"title"`
	Description   string                  `json:"description"`
	FunctionName  string                  `json:"function_name"`
	TimeLimitMS   int                     `json:"time_limit_ms"`
	MemoryLimitMB int                     `json:"memory_limit_mb"`
	Difficulty    contestcore.Difficulty  `json:"difficulty"`
	Options       []CreateOptionRequest   `json:"options"`
}

// CreateOptionRequest is one MCQ option supplied at creation time.
type CreateOptionRequest struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// CreateTestCaseRequest is the body for attaching a test case to a CODING
// question.
type CreateTestCaseRequest struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden"`
	Order          int    `json:"order"`
}

// ListQuestions returns the question bank, paginated.
func (s *Service) ListQuestions(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	const query = `
		SELECT id, type, title, description, COALESCE(function_name, ''),
		       time_limit_ms, memory_limit_mb, difficulty, created_by
		FROM questions
		ORDER BY id ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.Pool.Query(r.Context(), query, limit, (page-1)*limit)
	if err != nil {
		http.Error(w, "Failed to fetch questions", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(
			&q.ID, &q.Type, &q.Title, &q.Description, &q.FunctionName,
			&q.TimeLimitMS, &q.MemoryLimitMB, &q.Difficulty, &q.CreatedBy,
		); err != nil {
			http.Error(w, "Failed to scan question", http.StatusInternalServerError)
			return
		}
		questions = append(questions, q)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(questions)
}

// GetQuestion returns a question including its options (MCQ) with
// IsCorrect hidden from non-organizer callers.
func (s *Service) GetQuestion(w http.ResponseWriter, r *http.Request) {
	questionID := chi.URLParam(r, "id")
	if questionID == "" {
		http.Error(w, "Question ID is required", http.StatusBadRequest)
		return
	}

	q, err := s.getQuestionByID(r.Context(), questionID)
	if err != nil {
		http.Error(w, "Question not found", http.StatusNotFound)
		return
	}

	if q.Type == contestcore.QuestionMCQ {
		opts, err := s.listOptions(r.Context(), questionID)
		if err != nil {
			http.Error(w, "Failed to fetch options", http.StatusInternalServerError)
			return
		}
		role, _ := middleware.GetUserRoleFromContext(r.Context())
		if role != "organizer" {
			for i := range opts {
				opts[i].IsCorrect = false
			}
		}
		q.Options = opts
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(q)
}

// CreateQuestion adds a question (and its MCQ options, if any) to the bank.
// Organizer-only: gated by middleware.RequireRole at the route level.
func (s *Service) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User not authenticated", http.StatusUnauthorized)
		return
	}

	var req CreateQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Title == "" || req.Description == "" {
		http.Error(w, "Title and description are required", http.StatusBadRequest)
		return
	}
	if req.Type != contestcore.QuestionMCQ && req.Type != contestcore.QuestionCoding {
		http.Error(w, "Type must be MCQ or CODING", http.StatusBadRequest)
		return
	}
	if req.Type == contestcore.QuestionMCQ && len(req.Options) < 2 {
		http.Error(w, "MCQ questions require at least two options", http.StatusBadRequest)
		return
	}

	questionID := uuid.New().String()

	tx, err := s.db.Pool.Begin(r.Context())
	if err != nil {
		http.Error(w, "Failed to create question", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	const insertQuestion = `
		INSERT INTO questions (id, type, title, description, function_name, time_limit_ms, memory_limit_mb, difficulty, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := tx.Exec(r.Context(), insertQuestion,
		questionID, req.Type, req.Title, req.Description, req.FunctionName,
		req.TimeLimitMS, req.MemoryLimitMB, req.Difficulty, userID,
	); err != nil {
		http.Error(w, "Failed to create question", http.StatusInternalServerError)
		return
	}

	var options []Option
	if req.Type == contestcore.QuestionMCQ {
		const insertOption = `
			INSERT INTO question_options (id, question_id, text, is_correct)
			VALUES ($1, $2, $3, $4)
		`
		correctCount := 0
		for _, o := range req.Options {
			optionID := uuid.New().String()
			if _, err := tx.Exec(r.Context(), insertOption, optionID, questionID, o.Text, o.IsCorrect); err != nil {
				http.Error(w, "Failed to create option", http.StatusInternalServerError)
				return
			}
			if o.IsCorrect {
				correctCount++
			}
			options = append(options, Option{ID: optionID, Text: o.Text, IsCorrect: o.IsCorrect})
		}
		if correctCount != 1 {
			http.Error(w, "MCQ questions require exactly one correct option", http.StatusBadRequest)
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		http.Error(w, "Failed to create question", http.StatusInternalServerError)
		return
	}

	q := Question{
		ID: questionID, Type: req.Type, Title: req.Title, Description: req.Description,
		FunctionName: req.FunctionName, TimeLimitMS: req.TimeLimitMS, MemoryLimitMB: req.MemoryLimitMB,
		Difficulty: req.Difficulty, CreatedBy: &userID, Options: options,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(q)
}

// AddTestCase attaches a test case to a CODING question. Organizer-only.
func (s *Service) AddTestCase(w http.ResponseWriter, r *http.Request) {
	questionID := chi.URLParam(r, "id")
	if questionID == "" {
		http.Error(w, "Question ID is required", http.StatusBadRequest)
		return
	}

	var req CreateTestCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	testCaseID := uuid.New().String()
	const query = `
		INSERT INTO test_cases (id, question_id, input, expected_output, is_hidden, "order")
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.Pool.Exec(r.Context(), query, testCaseID, questionID, req.Input, req.ExpectedOutput, req.IsHidden, req.Order); err != nil {
		http.Error(w, "Failed to create test case", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(TestCase{
		ID: testCaseID, QuestionID: questionID, Input: req.Input,
		ExpectedOutput: req.ExpectedOutput, IsHidden: req.IsHidden, Order: req.Order,
	})
}

// ListTestCases returns a CODING question's fixtures. Non-organizer callers
// get hidden cases back with Input/ExpectedOutput cleared, same redaction
// rule contestcore.TestCaseResult documents for grading feedback.
func (s *Service) ListTestCases(w http.ResponseWriter, r *http.Request) {
	questionID := chi.URLParam(r, "id")
	if questionID == "" {
		http.Error(w, "Question ID is required", http.StatusBadRequest)
		return
	}

	const query = `
		SELECT id, question_id, input, expected_output, is_hidden, "order"
		FROM test_cases
		WHERE question_id = $1
		ORDER BY "order" ASC
	`
	rows, err := s.db.Pool.Query(r.Context(), query, questionID)
	if err != nil {
		http.Error(w, "Failed to fetch test cases", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	role, _ := middleware.GetUserRoleFromContext(r.Context())
	var cases []TestCase
	for rows.Next() {
		var tc TestCase
		if err := rows.Scan(&tc.ID, &tc.QuestionID, &tc.Input, &tc.ExpectedOutput, &tc.IsHidden, &tc.Order); err != nil {
			http.Error(w, "Failed to scan test case", http.StatusInternalServerError)
			return
		}
		if tc.IsHidden && role != "organizer" {
			tc.Input = ""
			tc.ExpectedOutput = ""
		}
		cases = append(cases, tc)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cases)
}

func (s *Service) getQuestionByID(ctx context.Context, questionID string) (*Question, error) {
	const query = `
		SELECT id, type, title, description, COALESCE(function_name, ''),
		       time_limit_ms, memory_limit_mb, difficulty, created_by
		FROM questions
		WHERE id = $1
	`
	var q Question
	err := s.db.Pool.QueryRow(ctx, query, questionID).Scan(
		&q.ID, &q.Type, &q.Title, &q.Description, &q.FunctionName,
		&q.TimeLimitMS, &q.MemoryLimitMB, &q.Difficulty, &q.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *Service) listOptions(ctx context.Context, questionID string) ([]Option, error) {
	const query = `
		SELECT id, text, is_correct
		FROM question_options
		WHERE question_id = $1
		ORDER BY id ASC
	`
	rows, err := s.db.Pool.Query(ctx, query, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opts []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.Text, &o.IsCorrect); err != nil {
			return nil, err
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}
