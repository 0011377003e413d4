package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"abstractor/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing file")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Workflow.RetryCeiling != config.Default().Workflow.RetryCeiling {
		t.Fatalf("expected default retry ceiling, got %d", cfg.Workflow.RetryCeiling)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
api_bind = " 127.0.0.1:9000 "

[workflow]
retry_ceiling = 5
retry_backoff_base = 10
retry_backoff_max = 120

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Paths.APIBind != "127.0.0.1:9000" {
		t.Fatalf("expected trimmed bind address, got %q", cfg.Paths.APIBind)
	}
	if cfg.Workflow.RetryCeiling != 5 {
		t.Fatalf("expected retry ceiling 5, got %d", cfg.Workflow.RetryCeiling)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased log format, got %q", cfg.Logging.Format)
	}
	if cfg.Workflow.WorkerCount != config.Default().Workflow.WorkerCount {
		t.Fatalf("expected default worker count, got %d", cfg.Workflow.WorkerCount)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*config.Config)
		fragment string
	}{
		{"zero workers", func(c *config.Config) { c.Workflow.WorkerCount = 0 }, "worker_count"},
		{"backoff max below base", func(c *config.Config) {
			c.Workflow.RetryBackoffBase = 60
			c.Workflow.RetryBackoffMax = 30
		}, "retry_backoff_max"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad partial threshold", func(c *config.Config) { c.Analysis.PartialMinCheckpoint = 150 }, "partial_min_checkpoint"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.fragment) {
				t.Fatalf("expected %q in error, got %v", tc.fragment, err)
			}
		})
	}
}
