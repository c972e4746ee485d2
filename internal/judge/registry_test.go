package judge

import (
	"context"
	"testing"
	"time"
)

func TestCompletionRegistryAwaitReceivesComplete(t *testing.T) {
	r := NewCompletionRegistry()
	done := make(chan struct{})

	go func() {
		time.Sleep(5 * time.Millisecond)
		r.Complete("sub-1", JudgeResult{SubmissionID: "sub-1", Verdict: VerdictAccepted})
		close(done)
	}()

	result, err := r.Await(context.Background(), "sub-1")
	<-done
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if result.Verdict != VerdictAccepted {
		t.Errorf("verdict = %s, want AC", result.Verdict)
	}
}

func TestCompletionRegistryAwaitTimesOut(t *testing.T) {
	r := NewCompletionRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := r.Await(ctx, "sub-missing")
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}

	// A late Complete for a submission nobody is waiting on must not panic
	// or block.
	r.Complete("sub-missing", JudgeResult{SubmissionID: "sub-missing"})
}
