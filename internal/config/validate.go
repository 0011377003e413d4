package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}
	if c.Workflow.QueuePollInterval < 0 {
		problems = append(problems, "workflow.queue_poll_interval must not be negative")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		problems = append(problems, "workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout > 0 && c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		problems = append(problems, "workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	if c.Workflow.WorkerCount <= 0 {
		problems = append(problems, "workflow.worker_count must be positive")
	}
	if c.Workflow.RetryCeiling < 0 {
		problems = append(problems, "workflow.retry_ceiling must not be negative")
	}
	if c.Workflow.RetryBackoffBase <= 0 {
		problems = append(problems, "workflow.retry_backoff_base must be positive")
	}
	if c.Workflow.RetryBackoffMax < c.Workflow.RetryBackoffBase {
		problems = append(problems, "workflow.retry_backoff_max must be at least workflow.retry_backoff_base")
	}
	if c.Workflow.ScrapeSessionLimit <= 0 {
		problems = append(problems, "workflow.scrape_session_limit must be positive")
	}
	if c.Analysis.TimeGapYears <= 0 {
		problems = append(problems, "analysis.time_gap_years must be positive")
	}
	if c.Analysis.PartialMinCheckpoint < 0 || c.Analysis.PartialMinCheckpoint > 100 {
		problems = append(problems, "analysis.partial_min_checkpoint_percent must be within 0-100")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
