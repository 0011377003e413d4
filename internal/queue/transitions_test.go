package queue

import (
	"errors"
	"testing"
)

func TestCanTransitionForwardPath(t *testing.T) {
	path := []Status{StatusPending, StatusQueued, StatusScraping, StatusAnalyzing, StatusGenerating, StatusCompleted}
	for i := 0; i+1 < len(path); i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Errorf("forward transition %s -> %s rejected", path[i], path[i+1])
		}
	}
}

func TestCanTransitionFailurePaths(t *testing.T) {
	for _, from := range []Status{StatusScraping, StatusAnalyzing, StatusGenerating} {
		if !CanTransition(from, StatusFailed) {
			t.Errorf("%s -> failed rejected", from)
		}
	}
	if CanTransition(StatusPending, StatusFailed) {
		t.Error("pending -> failed should be rejected; nothing has executed")
	}
}

func TestCanTransitionRecoveryPaths(t *testing.T) {
	if !CanTransition(StatusFailed, StatusQueued) {
		t.Error("retry-resume failed -> queued rejected")
	}
	if !CanTransition(StatusFailed, StatusCompleted) {
		t.Error("partial completion failed -> completed rejected")
	}
	for _, resume := range []Status{StatusAnalyzing, StatusGenerating} {
		if !CanTransition(StatusQueued, resume) {
			t.Errorf("checkpoint resume queued -> %s rejected", resume)
		}
	}
}

func TestCanTransitionCancellation(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusQueued, StatusScraping, StatusAnalyzing, StatusGenerating} {
		if !CanTransition(from, StatusCancelled) {
			t.Errorf("%s -> cancelled rejected", from)
		}
	}
	for _, from := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		if CanTransition(from, StatusCancelled) {
			t.Errorf("terminal %s -> cancelled should be rejected", from)
		}
	}
}

func TestCanTransitionRejectsBackwards(t *testing.T) {
	cases := []struct{ from, to Status }{
		{StatusAnalyzing, StatusScraping},
		{StatusCompleted, StatusQueued},
		{StatusGenerating, StatusQueued},
		{StatusCancelled, StatusQueued},
	}
	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("transition %s -> %s should be rejected", tc.from, tc.to)
		}
	}
}

func TestCanTransitionStageReentry(t *testing.T) {
	if !CanTransition(StatusScraping, StatusScraping) {
		t.Error("re-entering a processing stage for retry should be allowed")
	}
	if CanTransition(StatusPending, StatusPending) {
		t.Error("re-entering a non-processing status should be rejected")
	}
}

func TestTransitionToReturnsError(t *testing.T) {
	search := &Search{Status: StatusPending}
	if err := search.TransitionTo(StatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if search.Status != StatusPending {
		t.Fatal("status mutated despite rejected transition")
	}
	if err := search.TransitionTo(Status("review")); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected rejection of unknown status, got %v", err)
	}
	if err := search.TransitionTo(StatusQueued); err != nil {
		t.Fatalf("valid transition rejected: %v", err)
	}
	if search.Status != StatusQueued {
		t.Fatal("status not updated by valid transition")
	}
}
