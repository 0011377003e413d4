package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"abstractor/internal/errclass"
	"abstractor/internal/logging"
	"abstractor/internal/metrics"
	"abstractor/internal/queue"
	"abstractor/internal/services"
)

// handleStageFailure classifies a stage error, appends it to the search's
// error log, and decides whether the stage should be retried in place. When
// no retry is warranted the search is persisted as failed. The returned delay
// is the backoff to wait before re-entering the stage; attempt counts the
// consecutive failures of the current stage invocation, so a stage success
// resets the backoff while RetryCount keeps charging the ceiling.
func (m *Manager) handleStageFailure(ctx context.Context, stageName string, search *queue.Search, stageErr error, attempt int) (bool, time.Duration) {
	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := logging.WithContext(ctx, base).With(logging.String(logging.FieldComponent, "workflow-manager"))

	raw := rawFailure(stageName, stageErr)
	category := errclass.Categorize(raw)
	if streak, err := search.ConsecutiveSameCategory(category); err == nil {
		raw.ConsecutiveFailures = streak
	} else {
		raw.ConsecutiveFailures = 1
		logger.Warn("error log unreadable; streak reset", logging.Error(err))
	}
	record := errclass.Classify(raw, time.Now())

	if err := search.AppendErrorRecord(record); err != nil {
		logger.Error("failed to append error record", logging.Error(err))
	}
	search.RetryCount++
	metrics.StageFailures.WithLabelValues(stageName, string(record.Category)).Inc()

	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorCategory, string(record.Category)),
		logging.String("severity", string(record.Severity)),
		logging.Bool("is_transient", record.IsTransient),
		logging.Int("retry_count", search.RetryCount),
		logging.String(logging.FieldErrorHint, record.RecommendedAction),
		logging.Error(stageErr),
	)

	if record.IsTransient && search.RetryCount < m.cfg.Workflow.RetryCeiling {
		search.StatusMessage = fmt.Sprintf("Retrying after %s error", record.Category)
		if err := m.store.Update(ctx, search); err != nil {
			logger.Error("failed to persist retry state", logging.Error(err))
		}
		m.setLastSearch(search)
		return true, m.backoffDelay(attempt)
	}

	search.SetFailed(services.Message(stageErr))
	if err := m.store.Update(ctx, search); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}
	m.setLastSearch(search)
	metrics.SearchesCompleted.WithLabelValues(string(queue.StatusFailed), "false").Inc()
	m.notifyFailed(ctx, search)
	return false, 0
}

// rawFailure translates a stage error into classifier input. Sentinel markers
// take precedence over the classifier's message heuristics for transience.
func rawFailure(stageName string, stageErr error) errclass.RawFailure {
	raw := errclass.RawFailure{
		Stage:    stageName,
		Message:  services.Message(stageErr),
		Internal: services.IsInternal(stageErr),
	}
	switch {
	case raw.Internal:
	case services.IsTransient(stageErr):
		transient := true
		raw.Transient = &transient
	case errors.Is(stageErr, services.ErrPersistent),
		errors.Is(stageErr, services.ErrValidation),
		errors.Is(stageErr, services.ErrConfiguration):
		transient := false
		raw.Transient = &transient
	}
	return raw
}

// backoffDelay computes the exponential retry delay for the given in-stage
// attempt count, capped at the configured maximum.
func (m *Manager) backoffDelay(attempt int) time.Duration {
	base := time.Duration(m.cfg.Workflow.RetryBackoffBase) * time.Second
	if base <= 0 {
		base = time.Second
	}
	maxDelay := time.Duration(m.cfg.Workflow.RetryBackoffMax) * time.Second
	if maxDelay <= 0 {
		maxDelay = base
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (m *Manager) notifyFailed(ctx context.Context, search *queue.Search) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifySearchFailed(ctx, search.PropertyAddress, search.StatusMessage); err != nil {
		base := m.logger
		if base == nil {
			base = logging.NewNop()
		}
		base.Warn("failure notification failed", logging.Error(err))
	}
}
