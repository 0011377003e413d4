package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"abstractor/internal/config"
	"abstractor/internal/logging"
	"abstractor/internal/queue"
	"abstractor/internal/services"
	"abstractor/internal/stage"
	"abstractor/internal/testsupport"
	"abstractor/internal/workflow"
)

type stubStage struct {
	name        string
	mu          sync.Mutex
	executions  int
	prepareHook func(*queue.Search)
	executeHook func(*queue.Search) error
	health      stage.Health
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, search *queue.Search) error {
	if s.prepareHook != nil {
		s.prepareHook(search)
	}
	return nil
}

func (s *stubStage) Execute(_ context.Context, search *queue.Search) error {
	s.mu.Lock()
	s.executions++
	s.mu.Unlock()
	if s.executeHook != nil {
		return s.executeHook(search)
	}
	return nil
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

func (s *stubStage) executionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executions
}

type stubNotifier struct {
	mu        sync.Mutex
	completed []string
	failed    []string
	partial   []string
}

func (s *stubNotifier) NotifySearchCompleted(_ context.Context, address, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, address)
	return nil
}

func (s *stubNotifier) NotifySearchFailed(_ context.Context, address, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, address)
	return nil
}

func (s *stubNotifier) NotifyPartialComplete(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partial = append(s.partial, address)
	return nil
}

func (s *stubNotifier) NotifyError(context.Context, error, string) error { return nil }
func (s *stubNotifier) TestNotification(context.Context) error           { return nil }

func (s *stubNotifier) counts() (completed, failed, partial int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed), len(s.failed), len(s.partial)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t, testsupport.WithWorkerCount(1), func(cfg *config.Config) {
		cfg.Workflow.RetryBackoffBase = 0
		cfg.Workflow.RetryBackoffMax = 0
	})
}

func newTestManager(t *testing.T, cfg *config.Config, store *queue.Store, notifier *stubNotifier, set workflow.StageSet) *workflow.Manager {
	t.Helper()
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	if err := mgr.ConfigureStages(set); err != nil {
		t.Fatalf("ConfigureStages: %v", err)
	}
	return mgr
}

func startManager(t *testing.T, mgr *workflow.Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		mgr.Stop()
		cancel()
	})
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Search {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			current, _ := store.GetByID(context.Background(), id)
			t.Fatalf("timed out waiting for status %s, last seen %+v", want, current)
		default:
		}
		search, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if search != nil && search.Status == want {
			return search
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestManagerProcessesSearchThroughPipeline(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	notifier := &stubNotifier{}
	mgr := newTestManager(t, cfg, store, notifier, workflow.StageSet{
		Scraper:   newStubStage("scraping"),
		Analyzer:  newStubStage("analyzing"),
		Generator: newStubStage("generating"),
	})
	startManager(t, mgr)

	search := testsupport.NewSearch(t, store, "123 Main St")
	if _, err := mgr.Trigger(ctx, search.ID); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	done := waitForStatus(t, store, search.ID, queue.StatusCompleted)
	if done.ProgressPercent != 100 {
		t.Fatalf("progress = %v, want 100", done.ProgressPercent)
	}
	if done.Checkpoint != queue.StatusGenerating {
		t.Fatalf("checkpoint = %s, want generating", done.Checkpoint)
	}
	if done.Partial {
		t.Fatal("clean run must not be marked partial")
	}

	completed, failed, _ := notifier.counts()
	if completed != 1 || failed != 0 {
		t.Fatalf("notifications completed=%d failed=%d, want 1/0", completed, failed)
	}
}

func TestManagerRetriesTransientFailureThenSucceeds(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	scraper := newStubStage("scraping")
	var failures int
	scraper.executeHook = func(*queue.Search) error {
		failures++
		if failures <= 2 {
			return services.Wrap(services.ErrTransient, "scraping", "fetch records", "connection refused", nil)
		}
		return nil
	}

	notifier := &stubNotifier{}
	mgr := newTestManager(t, cfg, store, notifier, workflow.StageSet{
		Scraper:   scraper,
		Analyzer:  newStubStage("analyzing"),
		Generator: newStubStage("generating"),
	})
	startManager(t, mgr)

	search := testsupport.NewSearch(t, store, "123 Main St")
	if _, err := mgr.Trigger(ctx, search.ID); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	done := waitForStatus(t, store, search.ID, queue.StatusCompleted)
	if done.RetryCount != 2 {
		t.Fatalf("retry count = %d, want 2", done.RetryCount)
	}
	log, err := done.DecodeErrorLog()
	if err != nil {
		t.Fatalf("DecodeErrorLog: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("error log length = %d, want 2", len(log))
	}
	for _, rec := range log {
		if !rec.IsTransient {
			t.Fatalf("expected transient records, got %+v", rec)
		}
	}
	if scraper.executionCount() != 3 {
		t.Fatalf("scraper executions = %d, want 3", scraper.executionCount())
	}
}

func TestManagerExhaustsRetriesAndFails(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	cfg.Workflow.RetryCeiling = 2
	ctx := context.Background()

	scraper := newStubStage("scraping")
	scraper.executeHook = func(*queue.Search) error {
		return services.Wrap(services.ErrTransient, "scraping", "fetch records", "request timed out", nil)
	}

	notifier := &stubNotifier{}
	mgr := newTestManager(t, cfg, store, notifier, workflow.StageSet{
		Scraper:   scraper,
		Analyzer:  newStubStage("analyzing"),
		Generator: newStubStage("generating"),
	})
	startManager(t, mgr)

	search := testsupport.NewSearch(t, store, "123 Main St")
	if _, err := mgr.Trigger(ctx, search.ID); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	done := waitForStatus(t, store, search.ID, queue.StatusFailed)
	if done.RetryCount != 2 {
		t.Fatalf("retry count = %d, want ceiling 2", done.RetryCount)
	}
	log, err := done.DecodeErrorLog()
	if err != nil {
		t.Fatalf("DecodeErrorLog: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("error log length = %d, want 2", len(log))
	}
	if done.Checkpoint != "" {
		t.Fatalf("checkpoint = %s, want none before first stage completes", done.Checkpoint)
	}

	_, failed, _ := notifier.counts()
	if failed != 1 {
		t.Fatalf("failure notifications = %d, want 1", failed)
	}
}

func TestManagerNeverRetriesInternalErrors(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	analyzer := newStubStage("analyzing")
	analyzer.executeHook = func(*queue.Search) error {
		return services.Wrap(services.ErrInternal, "analyzing", "chain", "entries out of order", nil)
	}

	notifier := &stubNotifier{}
	mgr := newTestManager(t, cfg, store, notifier, workflow.StageSet{
		Scraper:   newStubStage("scraping"),
		Analyzer:  analyzer,
		Generator: newStubStage("generating"),
	})
	startManager(t, mgr)

	search := testsupport.NewSearch(t, store, "123 Main St")
	if _, err := mgr.Trigger(ctx, search.ID); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	done := waitForStatus(t, store, search.ID, queue.StatusFailed)
	if analyzer.executionCount() != 1 {
		t.Fatalf("analyzer executions = %d, internal errors must not be retried", analyzer.executionCount())
	}
	log, err := done.DecodeErrorLog()
	if err != nil {
		t.Fatalf("DecodeErrorLog: %v", err)
	}
	if len(log) != 1 || log[0].IsTransient {
		t.Fatalf("unexpected error log: %+v", log)
	}
	if done.Checkpoint != queue.StatusScraping {
		t.Fatalf("checkpoint = %s, want scraping preserved", done.Checkpoint)
	}
}

func TestManagerCancelsAtStageBoundary(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	scraper := newStubStage("scraping")
	scraper.executeHook = func(search *queue.Search) error {
		search.CancelRequested = true
		return nil
	}
	analyzer := newStubStage("analyzing")

	notifier := &stubNotifier{}
	mgr := newTestManager(t, cfg, store, notifier, workflow.StageSet{
		Scraper:   scraper,
		Analyzer:  analyzer,
		Generator: newStubStage("generating"),
	})
	startManager(t, mgr)

	search := testsupport.NewSearch(t, store, "123 Main St")
	if _, err := mgr.Trigger(ctx, search.ID); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	done := waitForStatus(t, store, search.ID, queue.StatusCancelled)
	if analyzer.executionCount() != 0 {
		t.Fatal("analyzer ran after cancellation was requested")
	}
	if done.Checkpoint != queue.StatusScraping {
		t.Fatalf("checkpoint = %s, want scraping preserved", done.Checkpoint)
	}
	if done.StatusMessage != queue.UserCancelReason {
		t.Fatalf("status message = %q", done.StatusMessage)
	}
}

func TestManagerRetryResumesFromCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	scraper := newStubStage("scraping")
	scraper.executeHook = func(*queue.Search) error {
		return services.Wrap(services.ErrPersistent, "scraping", "fetch records", "scraping must not rerun after checkpoint", nil)
	}

	notifier := &stubNotifier{}
	mgr := newTestManager(t, cfg, store, notifier, workflow.StageSet{
		Scraper:   scraper,
		Analyzer:  newStubStage("analyzing"),
		Generator: newStubStage("generating"),
	})

	search := testsupport.NewSearch(t, store, "123 Main St")
	search.Status = queue.StatusFailed
	search.Checkpoint = queue.StatusScraping
	search.ProgressPercent = 62
	if err := store.Update(ctx, search); err != nil {
		t.Fatalf("Update: %v", err)
	}

	requeued, err := mgr.RequestRetry(ctx, search.ID)
	if err != nil {
		t.Fatalf("RequestRetry: %v", err)
	}
	if requeued.Status != queue.StatusQueued {
		t.Fatalf("status = %s, want queued", requeued.Status)
	}
	if requeued.ProgressPercent != 60 {
		t.Fatalf("progress = %v, want checkpoint ceiling 60", requeued.ProgressPercent)
	}

	startManager(t, mgr)
	waitForStatus(t, store, search.ID, queue.StatusCompleted)
	if scraper.executionCount() != 0 {
		t.Fatal("scraper reran despite completed checkpoint")
	}
}

func TestManagerTriggerIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	mgr := newTestManager(t, cfg, store, &stubNotifier{}, workflow.StageSet{
		Scraper:   newStubStage("scraping"),
		Analyzer:  newStubStage("analyzing"),
		Generator: newStubStage("generating"),
	})

	search := testsupport.NewSearch(t, store, "123 Main St")
	if _, err := mgr.Trigger(ctx, search.ID); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	second, err := mgr.Trigger(ctx, search.ID)
	if err != nil {
		t.Fatalf("duplicate Trigger must be a no-op, got %v", err)
	}
	if second.Status != queue.StatusQueued {
		t.Fatalf("status = %s, want queued", second.Status)
	}

	search.Status = queue.StatusCompleted
	if err := store.Update(ctx, search); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := mgr.Trigger(ctx, search.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for terminal trigger, got %v", err)
	}
}

func TestManagerConcurrentTriggersRunStageOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkerCount(2), func(cfg *config.Config) {
		cfg.Workflow.RetryBackoffBase = 0
		cfg.Workflow.RetryBackoffMax = 0
	})
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	release := make(chan struct{})
	var releaseOnce sync.Once
	releaseStage := func() { releaseOnce.Do(func() { close(release) }) }

	started := make(chan struct{}, 8)
	scraper := newStubStage("scraping")
	scraper.executeHook = func(*queue.Search) error {
		started <- struct{}{}
		<-release
		return nil
	}

	notifier := &stubNotifier{}
	mgr := newTestManager(t, cfg, store, notifier, workflow.StageSet{
		Scraper:   scraper,
		Analyzer:  newStubStage("analyzing"),
		Generator: newStubStage("generating"),
	})
	startManager(t, mgr)
	t.Cleanup(releaseStage)

	search := testsupport.NewSearch(t, store, "123 Main St")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := mgr.Trigger(ctx, search.ID); err != nil {
				t.Errorf("Trigger: %v", err)
			}
		}()
	}
	wg.Wait()

	<-started

	// Both workers keep polling while the stage is blocked; duplicate
	// triggers during that window must not start a second execution.
	for i := 0; i < 3; i++ {
		if _, err := mgr.Trigger(ctx, search.ID); err != nil {
			t.Fatalf("Trigger while processing: %v", err)
		}
		time.Sleep(700 * time.Millisecond)
	}
	if got := scraper.executionCount(); got != 1 {
		t.Fatalf("scraper executions = %d while blocked, want exactly 1", got)
	}

	releaseStage()
	done := waitForStatus(t, store, search.ID, queue.StatusCompleted)
	if got := scraper.executionCount(); got != 1 {
		t.Fatalf("scraper executions = %d after completion, want exactly 1", got)
	}
	if done.RetryCount != 0 {
		t.Fatalf("retry count = %d, want 0", done.RetryCount)
	}
}

func TestManagerCancelBeforeProcessing(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	mgr := newTestManager(t, cfg, store, &stubNotifier{}, workflow.StageSet{
		Scraper:   newStubStage("scraping"),
		Analyzer:  newStubStage("analyzing"),
		Generator: newStubStage("generating"),
	})

	search := testsupport.NewSearch(t, store, "123 Main St")
	cancelled, err := mgr.RequestCancel(ctx, search.ID)
	if err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	if cancelled.Status != queue.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}

	if _, err := mgr.RequestCancel(ctx, search.ID); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for terminal cancel, got %v", err)
	}
}

func TestManagerMarkPartialComplete(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	notifier := &stubNotifier{}
	mgr := newTestManager(t, cfg, store, notifier, workflow.StageSet{
		Scraper:   newStubStage("scraping"),
		Analyzer:  newStubStage("analyzing"),
		Generator: newStubStage("generating"),
	})

	search := testsupport.NewSearch(t, store, "123 Main St")
	search.Status = queue.StatusFailed
	search.Checkpoint = queue.StatusAnalyzing
	if err := store.Update(ctx, search); err != nil {
		t.Fatalf("Update: %v", err)
	}

	done, err := mgr.MarkPartialComplete(ctx, search.ID)
	if err != nil {
		t.Fatalf("MarkPartialComplete: %v", err)
	}
	if done.Status != queue.StatusCompleted || !done.Partial {
		t.Fatalf("got status=%s partial=%t, want completed partial", done.Status, done.Partial)
	}
	if done.ProgressPercent != 100 {
		t.Fatalf("progress = %v, want 100", done.ProgressPercent)
	}
	if _, _, partial := notifier.counts(); partial != 1 {
		t.Fatalf("partial notifications = %d, want 1", partial)
	}
}

func TestManagerMarkPartialCompleteRequiresAnalyzableData(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	mgr := newTestManager(t, cfg, store, &stubNotifier{}, workflow.StageSet{
		Scraper:   newStubStage("scraping"),
		Analyzer:  newStubStage("analyzing"),
		Generator: newStubStage("generating"),
	})

	search := testsupport.NewSearch(t, store, "123 Main St")
	search.Status = queue.StatusFailed
	if err := store.Update(ctx, search); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := mgr.MarkPartialComplete(ctx, search.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error without checkpoint, got %v", err)
	}
}

func TestManagerStatusReportsStageHealth(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	scraper := newStubStage("scraping")
	scraper.health = stage.Unhealthy("scraping", "ingest directory missing")
	mgr := newTestManager(t, cfg, store, &stubNotifier{}, workflow.StageSet{
		Scraper:   scraper,
		Analyzer:  newStubStage("analyzing"),
		Generator: newStubStage("generating"),
	})

	summary := mgr.Status(context.Background())
	if summary.Running {
		t.Fatal("manager reported running before Start")
	}
	health, ok := summary.StageHealth["scraping"]
	if !ok || health.Ready {
		t.Fatalf("unexpected scraper health: %+v", summary.StageHealth)
	}
}
