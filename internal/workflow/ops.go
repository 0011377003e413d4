package workflow

import (
	"context"
	"fmt"

	"abstractor/internal/logging"
	"abstractor/internal/metrics"
	"abstractor/internal/queue"
	"abstractor/internal/services"
)

// Trigger moves a pending search into the queue for processing. Triggering a
// search that is already queued or in flight is a no-op.
func (m *Manager) Trigger(ctx context.Context, id int64) (*queue.Search, error) {
	search, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if search == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "trigger", fmt.Sprintf("search %d not found", id), nil)
	}
	if search.Status == queue.StatusQueued || search.IsProcessing() {
		return search, nil
	}
	if search.Status != queue.StatusPending {
		return nil, services.Wrap(services.ErrValidation, "", "trigger",
			fmt.Sprintf("search %d is %s; use retry to requeue failed searches", id, search.Status), nil)
	}
	if err := search.TransitionTo(queue.StatusQueued); err != nil {
		return nil, err
	}
	search.SetProgress(queue.ProgressCeiling(queue.StatusQueued), "Queued for processing")
	if err := m.store.Update(ctx, search); err != nil {
		return nil, err
	}
	return search, nil
}

// RequestRetry requeues a failed search. Processing resumes from the stage
// after the last checkpoint with a fresh automatic-retry budget.
func (m *Manager) RequestRetry(ctx context.Context, id int64) (*queue.Search, error) {
	search, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if search == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "retry", fmt.Sprintf("search %d not found", id), nil)
	}
	if err := search.TransitionTo(queue.StatusQueued); err != nil {
		return nil, err
	}
	search.ProgressPercent = queue.CheckpointProgress(search.Checkpoint)
	search.StatusMessage = "Retrying from last checkpoint"
	search.RetryCount = 0
	search.CancelRequested = false
	if err := m.store.Update(ctx, search); err != nil {
		return nil, err
	}
	if m.logger != nil {
		m.logger.Info("search requeued for retry",
			logging.Int64(logging.FieldSearchID, search.ID),
			logging.String("resume_stage", string(queue.ResumeStage(search.Checkpoint))),
		)
	}
	return search, nil
}

// RequestCancel cancels a search. Pending and queued searches cancel
// immediately; in-flight searches are flagged and stop at the next stage
// boundary. Terminal searches cannot be cancelled.
func (m *Manager) RequestCancel(ctx context.Context, id int64) (*queue.Search, error) {
	search, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if search == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "cancel", fmt.Sprintf("search %d not found", id), nil)
	}

	if search.IsProcessing() {
		search.CancelRequested = true
		search.StatusMessage = "Cancellation requested"
		if err := m.store.Update(ctx, search); err != nil {
			return nil, err
		}
		return search, nil
	}

	if err := search.TransitionTo(queue.StatusCancelled); err != nil {
		return nil, err
	}
	search.StatusMessage = queue.UserCancelReason
	search.CancelRequested = true
	search.LastHeartbeat = nil
	if err := m.store.Update(ctx, search); err != nil {
		return nil, err
	}
	metrics.SearchesCompleted.WithLabelValues(string(queue.StatusCancelled), "false").Inc()
	return search, nil
}

// MarkPartialComplete closes out a failed search with the results collected
// so far. It is only available once the search progressed past scraping.
func (m *Manager) MarkPartialComplete(ctx context.Context, id int64) (*queue.Search, error) {
	search, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if search == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "partial complete", fmt.Sprintf("search %d not found", id), nil)
	}
	if search.Status != queue.StatusFailed {
		return nil, services.Wrap(services.ErrValidation, "", "partial complete",
			fmt.Sprintf("search %d is %s; only failed searches can be partially completed", id, search.Status), nil)
	}
	if !search.ReachedAnalyzing() {
		return nil, services.Wrap(services.ErrValidation, "", "partial complete",
			"no analyzable data collected; retry or upload documents manually", nil)
	}
	if err := search.TransitionTo(queue.StatusCompleted); err != nil {
		return nil, err
	}
	search.Partial = true
	search.SetProgress(queue.ProgressCeiling(queue.StatusCompleted), "Completed with partial results")
	search.LastHeartbeat = nil
	if err := m.store.Update(ctx, search); err != nil {
		return nil, err
	}
	metrics.SearchesCompleted.WithLabelValues(string(queue.StatusCompleted), "true").Inc()

	if m.notifier != nil {
		if err := m.notifier.NotifyPartialComplete(ctx, search.PropertyAddress); err != nil && m.logger != nil {
			m.logger.Warn("partial completion notification failed", logging.Error(err))
		}
	}
	return search, nil
}
