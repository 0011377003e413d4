package discovery_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"abstractor/internal/chain"
	"abstractor/internal/discovery"
	"abstractor/internal/logging"
	"abstractor/internal/queue"
	"abstractor/internal/services"
	"abstractor/internal/testsupport"
)

func writeDrop(t *testing.T, dir string, searchID int64, records discovery.RecordSet) {
	t.Helper()
	data, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal drop: %v", err)
	}
	source := discovery.NewDirectorySource(dir)
	testsupport.WriteFile(t, source.DropPath(searchID), string(data))
}

func TestScraperAttachesRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	search := testsupport.NewSearch(t, store, "123 Main St")
	search.Status = queue.StatusScraping
	when := time.Date(2005, time.June, 1, 0, 0, 0, 0, time.UTC)
	writeDrop(t, cfg.Paths.IngestDir, search.ID, discovery.RecordSet{
		ChainEntries: []chain.Entry{{
			SequenceNumber:  1,
			TransactionType: "warranty deed",
			TransactionDate: &when,
			GranteeNames:    []string{"Alice"},
		}},
	})

	scraper := discovery.NewScraper(cfg, store, logging.NewNop())
	if err := scraper.Prepare(ctx, search); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := scraper.Execute(ctx, search); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if search.ChainEntriesJSON == "" {
		t.Fatal("chain entries not attached")
	}
	var entries []chain.Entry
	if err := json.Unmarshal([]byte(search.ChainEntriesJSON), &entries); err != nil {
		t.Fatalf("unmarshal attached entries: %v", err)
	}
	if len(entries) != 1 || entries[0].GranteeNames[0] != "Alice" {
		t.Fatalf("unexpected attached entries: %+v", entries)
	}
	if search.ProgressPercent != 60 {
		t.Fatalf("progress = %v, want stage ceiling 60", search.ProgressPercent)
	}
}

func TestDirectorySourceArchivesConsumedDrop(t *testing.T) {
	dir := t.TempDir()
	source := discovery.NewDirectorySource(dir)
	writeDrop(t, dir, 7, discovery.RecordSet{})

	records, err := source.Fetch(context.Background(), discovery.Request{SearchID: 7})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if records == nil {
		t.Fatal("no records returned")
	}
	if _, err := os.Stat(source.DropPath(7)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("consumed drop still present: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "processed", "record-7.json")); err != nil {
		t.Fatalf("archived drop missing: %v", err)
	}
}

func TestScraperMissingDropIsPersistent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	search := testsupport.NewSearch(t, store, "123 Main St")
	search.Status = queue.StatusScraping

	scraper := discovery.NewScraper(cfg, store, logging.NewNop())
	err := scraper.Execute(context.Background(), search)
	if err == nil {
		t.Fatal("expected an error for a missing record drop")
	}
	if services.IsTransient(err) {
		t.Fatal("a missing drop must not be classified transient")
	}
}

func TestScraperMalformedDrop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	search := testsupport.NewSearch(t, store, "123 Main St")
	search.Status = queue.StatusScraping
	source := discovery.NewDirectorySource(cfg.Paths.IngestDir)
	testsupport.WriteFile(t, source.DropPath(search.ID), "{not json")

	scraper := discovery.NewScraper(cfg, store, logging.NewNop())
	err := scraper.Execute(context.Background(), search)
	if err == nil || !errors.Is(err, services.ErrPersistent) {
		t.Fatalf("expected a persistent error, got %v", err)
	}
}

func TestSessionPoolBounds(t *testing.T) {
	pool := discovery.NewSessionPool(2)
	ctx := context.Background()

	if err := pool.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := pool.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if pool.InUse() != 2 {
		t.Fatalf("in use = %d, want 2", pool.InUse())
	}

	full, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := pool.Acquire(full); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded on a full pool, got %v", err)
	}

	pool.Release()
	if err := pool.Acquire(ctx); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestScraperHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	scraper := discovery.NewScraper(cfg, store, logging.NewNop())
	if health := scraper.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy scraper, got %+v", health)
	}
}
