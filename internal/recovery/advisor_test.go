package recovery_test

import (
	"strings"
	"testing"
	"time"

	"abstractor/internal/errclass"
	"abstractor/internal/recovery"
)

var logStart = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func record(stage, message string, streak int) errclass.Record {
	return errclass.Classify(errclass.RawFailure{
		Stage:               stage,
		Message:             message,
		ConsecutiveFailures: streak,
	}, logStart)
}

func actionNames(opts recovery.Options) []string {
	names := make([]string, 0, len(opts.Actions))
	for _, action := range opts.Actions {
		names = append(names, action.Action)
	}
	return names
}

func hasAction(opts recovery.Options, name string) bool {
	for _, action := range opts.Actions {
		if action.Action == name {
			return true
		}
	}
	return false
}

func TestAdviseSummaryFold(t *testing.T) {
	log := []errclass.Record{
		record("scraping", "captcha detected", 1),
		record("scraping", "connection refused", 1),
		record("scraping", "connection reset by peer", 2),
	}
	opts := recovery.Advise(recovery.Input{
		Log:           log,
		RetryCount:    2,
		RetryCeiling:  3,
		ProgressSaved: 10,
	})
	if opts.ErrorSummary.TotalErrors != 3 {
		t.Fatalf("total_errors = %d, want 3", opts.ErrorSummary.TotalErrors)
	}
	if opts.ErrorSummary.ConsecutiveFailures != 2 {
		t.Fatalf("consecutive_failures = %d, want 2 (network streak at tail)", opts.ErrorSummary.ConsecutiveFailures)
	}
	if opts.ErrorSummary.ProgressSaved != 10 {
		t.Fatalf("progress_saved = %d, want 10", opts.ErrorSummary.ProgressSaved)
	}
}

func TestAdviseRetryOfferedForTransientErrors(t *testing.T) {
	log := []errclass.Record{record("scraping", "request timed out", 1)}
	opts := recovery.Advise(recovery.Input{Log: log, RetryCount: 5, RetryCeiling: 3})
	if !hasAction(opts, recovery.ActionRetry) {
		t.Fatalf("retry should be offered when a transient error exists, got %v", actionNames(opts))
	}
}

func TestAdviseRetryOfferedBelowCeiling(t *testing.T) {
	log := []errclass.Record{record("generating", "template exploded", 1)}
	opts := recovery.Advise(recovery.Input{Log: log, RetryCount: 1, RetryCeiling: 3})
	if !hasAction(opts, recovery.ActionRetry) {
		t.Fatalf("retry should be offered below the ceiling, got %v", actionNames(opts))
	}
}

func TestAdviseRetryWithheldWhenExhausted(t *testing.T) {
	log := []errclass.Record{record("generating", "template exploded", 4)}
	opts := recovery.Advise(recovery.Input{Log: log, RetryCount: 3, RetryCeiling: 3})
	if hasAction(opts, recovery.ActionRetry) {
		t.Fatalf("retry should not be offered with no transient errors at the ceiling, got %v", actionNames(opts))
	}
}

func TestAdvisePartialCompleteRequiresAnalyzing(t *testing.T) {
	log := []errclass.Record{record("analyzing", "mystery failure", 1)}

	before := recovery.Advise(recovery.Input{Log: log, RetryCeiling: 3, ReachedAnalyzing: false})
	if hasAction(before, recovery.ActionPartialComplete) {
		t.Fatal("partial_complete offered before any analyzable data exists")
	}

	after := recovery.Advise(recovery.Input{Log: log, RetryCeiling: 3, ReachedAnalyzing: true, ProgressSaved: 60})
	if !hasAction(after, recovery.ActionPartialComplete) {
		t.Fatalf("partial_complete missing once analyzing was reached, got %v", actionNames(after))
	}
}

func TestAdviseManualUploadForScrapingAndAuth(t *testing.T) {
	for _, message := range []string{"captcha detected", "authentication failed"} {
		log := []errclass.Record{record("scraping", message, 1)}
		opts := recovery.Advise(recovery.Input{Log: log, RetryCeiling: 3})
		if !hasAction(opts, recovery.ActionManualUpload) {
			t.Fatalf("manual_upload missing for %q, got %v", message, actionNames(opts))
		}
	}

	log := []errclass.Record{record("scraping", "connection refused", 1)}
	opts := recovery.Advise(recovery.Input{Log: log, RetryCeiling: 3})
	if hasAction(opts, recovery.ActionManualUpload) {
		t.Fatalf("manual_upload should not be offered for network failures, got %v", actionNames(opts))
	}
}

func TestAdviseCancelAlwaysOffered(t *testing.T) {
	opts := recovery.Advise(recovery.Input{Log: nil, RetryCount: 3, RetryCeiling: 3})
	if !hasAction(opts, recovery.ActionCancel) {
		t.Fatalf("cancel must always be offered, got %v", actionNames(opts))
	}
}

func TestAdviseSuggestionsTrackDominantCategory(t *testing.T) {
	log := []errclass.Record{
		record("scraping", "rate limit exceeded", 1),
		record("scraping", "too many requests", 2),
		record("scraping", "connection refused", 1),
	}
	opts := recovery.Advise(recovery.Input{Log: log, RetryCeiling: 3})
	joined := strings.Join(opts.Suggestions, "\n")
	if !strings.Contains(joined, "off-peak") {
		t.Fatalf("expected rate-limit advice, got %q", joined)
	}
}

func TestAdviseFlagsLongStreaks(t *testing.T) {
	log := []errclass.Record{
		record("scraping", "connection refused", 1),
		record("scraping", "connection refused", 2),
		record("scraping", "connection refused", 3),
	}
	opts := recovery.Advise(recovery.Input{Log: log, RetryCeiling: 3})
	if len(opts.Suggestions) == 0 || !strings.Contains(opts.Suggestions[0], "consecutive failures") {
		t.Fatalf("expected streak warning first, got %v", opts.Suggestions)
	}
}

func TestDominantCategoryTieBreaksToMostRecent(t *testing.T) {
	log := []errclass.Record{
		record("scraping", "connection refused", 1),
		record("scraping", "captcha detected", 1),
	}
	if got := recovery.DominantCategory(log); got != errclass.CategoryScraping {
		t.Fatalf("DominantCategory = %s, want scraping on tie", got)
	}
}
