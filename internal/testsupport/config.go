package testsupport

import (
	"path/filepath"
	"testing"

	"abstractor/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.IngestDir = filepath.Join(base, "ingest")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Workflow.HeartbeatTimeout = 2

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithRetryCeiling overrides the transient retry ceiling on the test config.
func WithRetryCeiling(ceiling int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.RetryCeiling = ceiling
	}
}

// WithWorkerCount overrides the workflow worker count on the test config.
func WithWorkerCount(count int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.WorkerCount = count
	}
}
