package contestcore

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a typed precondition or protocol failure, matching
// the wire error envelope's `code` field one-to-one.
type ErrorCode string

const (
	CodeContestNotFound  ErrorCode = "CONTEST_NOT_FOUND"
	CodeContestNotActive ErrorCode = "CONTEST_NOT_ACTIVE"
	CodeNotParticipant   ErrorCode = "NOT_PARTICIPANT"
	CodeInvalidQuestion  ErrorCode = "INVALID_QUESTION"
	CodeAlreadySubmitted ErrorCode = "ALREADY_SUBMITTED"
	CodeTimeExpired      ErrorCode = "TIME_EXPIRED"
	CodeInvalidOption    ErrorCode = "INVALID_OPTION"
	CodeInvalidEvent     ErrorCode = "INVALID_EVENT"
	CodeServerError      ErrorCode = "SERVER_ERROR"
)

// Error is a typed sentinel error carrying the wire protocol's error code
// and an optional human-readable detail. Callers compare against Code with
// errors.As; the package-level Err* var convention is generalized here to
// a single struct since the code space here is shared
// between the pipeline, the orchestrator and the fan-out layer.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Code)
}

// NewError builds an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the ErrorCode from err if it is (or wraps) a *Error,
// defaulting to SERVER_ERROR for anything else.
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeServerError
}

var (
	ErrContestNotFound  = NewError(CodeContestNotFound, "contest not found")
	ErrContestNotActive = NewError(CodeContestNotActive, "contest is not active")
	ErrNotParticipant   = NewError(CodeNotParticipant, "caller is not a participant")
	ErrInvalidQuestion  = NewError(CodeInvalidQuestion, "question does not belong to this contest")
	ErrAlreadySubmitted = NewError(CodeAlreadySubmitted, "a submission already exists for this question")
	ErrTimeExpired      = NewError(CodeTimeExpired, "question timer has expired")
	ErrInvalidOption    = NewError(CodeInvalidOption, "selected option does not belong to this question")
)
