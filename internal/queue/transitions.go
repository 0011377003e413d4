package queue

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition indicates a status change the lifecycle does not allow.
// Hitting it is a programming error in the caller, never a silent no-op.
var ErrInvalidTransition = errors.New("invalid status transition")

// validTransitions is the closed set of allowed (from, to) pairs: the forward
// pipeline path, failure from any processing stage, retry-resume and partial
// completion out of failed, and cancellation from any non-terminal state.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusQueued, StatusCancelled},
	// Queued may enter any processing stage so retries resume after their
	// checkpoint instead of rescraping completed work.
	StatusQueued:     {StatusScraping, StatusAnalyzing, StatusGenerating, StatusCancelled},
	StatusScraping:   {StatusAnalyzing, StatusFailed, StatusCancelled},
	StatusAnalyzing:  {StatusGenerating, StatusFailed, StatusCancelled},
	StatusGenerating: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusFailed:     {StatusQueued, StatusCompleted},
}

// CanTransition reports whether the lifecycle allows moving from one status
// to another. Re-entering the current status (stage retry) is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return IsProcessingStatus(from)
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionTo moves the search to a new status after validating the change.
func (s *Search) TransitionTo(to Status) error {
	if _, known := statusSet[to]; !known {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
	}
	s.Status = to
	return nil
}
