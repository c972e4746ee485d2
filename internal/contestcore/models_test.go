package contestcore

import (
	"testing"
	"time"
)

func TestDeriveRuntimeState(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	tests := []struct {
		name string
		now  time.Time
		want RuntimeState
	}{
		{"before start", start.Add(-time.Minute), StateUpcoming},
		{"at start", start, StateActive},
		{"mid contest", start.Add(30 * time.Minute), StateActive},
		{"exactly at end, inclusive", end, StateActive},
		{"just after end", end.Add(time.Nanosecond), StateCompleted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveRuntimeState(tc.now, start, end)
			if got != tc.want {
				t.Errorf("DeriveRuntimeState(%v) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestSubmissionIsTerminal(t *testing.T) {
	tests := []struct {
		name  string
		sub   Submission
		qType QuestionType
		want  bool
	}{
		{"correct MCQ", Submission{IsCorrect: true}, QuestionMCQ, true},
		{"wrong MCQ is one-shot terminal", Submission{Status: StatusWrongAnswer}, QuestionMCQ, true},
		{"no status yet", Submission{}, QuestionMCQ, false},
		{"pending coding", Submission{Status: StatusPending}, QuestionCoding, false},
		{"wrong coding stays resubmittable", Submission{Status: StatusWrongAnswer}, QuestionCoding, false},
		{"accepted coding is terminal", Submission{IsCorrect: true, Status: StatusAccepted}, QuestionCoding, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.sub.IsTerminal(tc.qType); got != tc.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestErrorCodeOf(t *testing.T) {
	if CodeOf(ErrAlreadySubmitted) != CodeAlreadySubmitted {
		t.Errorf("CodeOf(ErrAlreadySubmitted) = %v, want %v", CodeOf(ErrAlreadySubmitted), CodeAlreadySubmitted)
	}
	if CodeOf(nil) != CodeServerError {
		t.Errorf("CodeOf(nil) should default to SERVER_ERROR")
	}
}
