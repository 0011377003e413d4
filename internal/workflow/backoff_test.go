package workflow

import (
	"context"
	"testing"
	"time"

	"abstractor/internal/logging"
	"abstractor/internal/queue"
	"abstractor/internal/services"
	"abstractor/internal/testsupport"
)

func TestBackoffRestartsAtBaseAfterStageSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.RetryBackoffBase = 2
	cfg.Workflow.RetryBackoffMax = 600
	cfg.Workflow.RetryCeiling = 10
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	m := NewManager(cfg, store, logging.NewNop())
	search := testsupport.NewSearch(t, store, "123 Main St")
	search.Status = queue.StatusScraping

	transient := services.Wrap(services.ErrTransient, "scraping", "fetch records", "connection refused", nil)

	retry, delay := m.handleStageFailure(ctx, "scraping", search, transient, 1)
	if !retry {
		t.Fatal("first transient failure must retry")
	}
	if delay != 2*time.Second {
		t.Fatalf("first scraping retry waits %s, want base 2s", delay)
	}

	retry, delay = m.handleStageFailure(ctx, "scraping", search, transient, 2)
	if !retry {
		t.Fatal("second transient failure must retry")
	}
	if delay != 4*time.Second {
		t.Fatalf("second scraping retry waits %s, want doubled 4s", delay)
	}

	// Scraping succeeds on the next attempt; analyzing then hits its first
	// transient failure and must start back at the base delay even though
	// the job-wide retry count kept charging.
	search.Checkpoint = queue.StatusScraping
	search.Status = queue.StatusAnalyzing

	retry, delay = m.handleStageFailure(ctx, "analyzing", search, transient, 1)
	if !retry {
		t.Fatal("first analyzing failure must retry")
	}
	if delay != 2*time.Second {
		t.Fatalf("first analyzing retry waits %s, want base 2s", delay)
	}
	if search.RetryCount != 3 {
		t.Fatalf("retry count = %d, want cumulative 3 for the ceiling", search.RetryCount)
	}
}

func TestBackoffDelayCapsAtConfiguredMax(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.RetryBackoffBase = 2
	cfg.Workflow.RetryBackoffMax = 5
	store := testsupport.MustOpenStore(t, cfg)

	m := NewManager(cfg, store, logging.NewNop())
	if delay := m.backoffDelay(4); delay != 5*time.Second {
		t.Fatalf("delay = %s, want capped 5s", delay)
	}
}

func TestClaimRefusesDuplicateUntilReleased(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	m := NewManager(cfg, store, logging.NewNop())
	if !m.tryClaim(42) {
		t.Fatal("first claim refused")
	}
	if m.tryClaim(42) {
		t.Fatal("duplicate claim granted while held")
	}
	m.releaseClaim(42)
	if !m.tryClaim(42) {
		t.Fatal("claim not reusable after release")
	}
}
