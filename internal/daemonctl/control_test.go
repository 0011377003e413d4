package daemonctl

import (
	"context"
	"os"
	"testing"

	"abstractor/internal/testsupport"
)

func TestBuildSystemChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.IngestDir, 0o755); err != nil {
		t.Fatalf("mkdir ingest: %v", err)
	}

	lines := BuildSystemChecks(cfg, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 status lines, got %d", len(lines))
	}
	if lines[0].Label != "Abstractor" || lines[0].Severity != "warn" {
		t.Fatalf("unexpected daemon line: %+v", lines[0])
	}
	if lines[2].Label != "Ingest Directory" || lines[2].Severity != "ok" {
		t.Fatalf("unexpected ingest line: %+v", lines[2])
	}

	running := BuildSystemChecks(cfg, true)
	if running[0].Severity != "ok" {
		t.Fatalf("expected ok severity when running, got %+v", running[0])
	}
}

func TestDirectoryCheck(t *testing.T) {
	missing := directoryCheck("Ingest Directory", "/nonexistent/abstractor-test")
	if missing.Severity != "warn" {
		t.Fatalf("expected warn for missing directory, got %+v", missing)
	}
	blank := directoryCheck("Ingest Directory", " ")
	if blank.Severity != "warn" || blank.Detail != "Not configured" {
		t.Fatalf("unexpected blank check: %+v", blank)
	}
}

func TestBuildStatusSnapshotOfflineFallback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewSearch(t, store, "123 Main St")

	resp, err := BuildStatusSnapshot(context.Background(), cfg.SocketPath(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if resp.Running {
		t.Fatal("no daemon is running, snapshot should report offline")
	}
	if resp.QueueStats["pending"] != 1 {
		t.Fatalf("expected offline queue stats fallback, got %+v", resp.QueueStats)
	}
	if len(resp.SystemChecks) == 0 {
		t.Fatal("expected system checks in snapshot")
	}
}
