package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"abstractor/internal/logging"
	"abstractor/internal/metrics"
	"abstractor/internal/queue"
	"abstractor/internal/reporting"
	"abstractor/internal/services"
	"abstractor/internal/stage"
)

// processSearch drives a claimed search through every remaining pipeline
// stage. Cancellation is honored only at stage boundaries.
func (m *Manager) processSearch(ctx context.Context, workerLogger *slog.Logger, search *queue.Search) error {
	if !m.tryClaim(search.ID) {
		m.waitForSearchOrShutdown(ctx)
		return nil
	}
	defer m.releaseClaim(search.ID)

	searchCtx := services.WithRequestID(services.WithSearchID(ctx, search.ID), uuid.NewString())

	for _, stg := range m.stagesFrom(queue.ResumeStage(search.Checkpoint)) {
		cancelled, err := m.cancelRequested(searchCtx, search)
		if err != nil {
			m.setLastError(err)
			return err
		}
		if cancelled {
			return m.finalizeCancelled(searchCtx, workerLogger, search)
		}
		if err := m.runStage(searchCtx, workerLogger, stg, search); err != nil {
			return err
		}
	}
	return m.finalizeCompleted(searchCtx, workerLogger, search)
}

// cancelRequested refreshes the cancellation flag from the store so requests
// made while a stage was running take effect at the next boundary.
func (m *Manager) cancelRequested(ctx context.Context, search *queue.Search) (bool, error) {
	fresh, err := m.store.GetByID(ctx, search.ID)
	if err != nil {
		return false, fmt.Errorf("refresh cancellation flag: %w", err)
	}
	if fresh == nil {
		return false, services.Wrap(services.ErrNotFound, "", "refresh search", fmt.Sprintf("search %d removed mid-flight", search.ID), nil)
	}
	search.CancelRequested = fresh.CancelRequested
	return search.CancelRequested, nil
}

func (m *Manager) runStage(ctx context.Context, workerLogger *slog.Logger, stg pipelineStage, search *queue.Search) error {
	stageCtx := services.WithStage(ctx, stg.name)
	stageLogger := logging.WithContext(stageCtx, workerLogger)

	if err := search.TransitionTo(stg.status); err != nil {
		wrapped := services.Wrap(services.ErrInternal, stg.name, "enter stage", "", err)
		m.handleStageFailure(stageCtx, stg.name, search, wrapped, 1)
		m.setLastError(wrapped)
		return wrapped
	}
	now := time.Now().UTC()
	search.LastHeartbeat = &now
	if err := m.store.Update(stageCtx, search); err != nil {
		wrapped := fmt.Errorf("persist processing transition: %w", err)
		stageLogger.Error("failed to transition search to processing", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	m.setLastSearch(search)

	// Backoff is keyed to failures of this stage invocation, not the
	// job-wide retry count: a stage success starts the next stage back at
	// the base delay.
	attempt := 0
	for {
		stageStart := time.Now()
		stageLogger.Info("stage started",
			logging.String(logging.FieldEventType, "stage_start"),
			logging.Float64("progress_percent", search.ProgressPercent),
			logging.Int("retry_count", search.RetryCount),
		)

		err := stg.handler.Prepare(stageCtx, search)
		if err == nil {
			if uerr := m.store.Update(stageCtx, search); uerr != nil {
				wrapped := fmt.Errorf("persist stage preparation: %w", uerr)
				stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
				m.setLastError(wrapped)
				return wrapped
			}
			err = m.executeWithHeartbeat(stageCtx, stg.handler, search)
		}
		metrics.StageDuration.WithLabelValues(stg.name).Observe(time.Since(stageStart).Seconds())

		if err == nil {
			metrics.StageExecutions.WithLabelValues(stg.name, "success").Inc()
			search.Checkpoint = stg.status
			if uerr := m.store.Update(stageCtx, search); uerr != nil {
				wrapped := fmt.Errorf("persist stage result: %w", uerr)
				stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
				m.setLastError(wrapped)
				return wrapped
			}
			stageLogger.Info("stage completed",
				logging.String(logging.FieldEventType, "stage_complete"),
				logging.Float64("progress_percent", search.ProgressPercent),
				logging.Duration("stage_duration", time.Since(stageStart)),
			)
			m.setLastSearch(search)
			return nil
		}

		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return err
		}

		metrics.StageExecutions.WithLabelValues(stg.name, "failure").Inc()
		attempt++
		retry, delay := m.handleStageFailure(stageCtx, stg.name, search, err, attempt)
		m.setLastError(err)
		if !retry {
			return err
		}
		metrics.StageRetries.WithLabelValues(stg.name).Inc()
		stageLogger.Info("retrying stage after transient failure",
			logging.String(logging.FieldEventType, "stage_retry"),
			logging.Int("retry_count", search.RetryCount),
			logging.Duration("backoff", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, search *queue.Search) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, search.ID)

	execErr := handler.Execute(ctx, search)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) finalizeCompleted(ctx context.Context, workerLogger *slog.Logger, search *queue.Search) error {
	logger := logging.WithContext(ctx, workerLogger)

	if err := search.TransitionTo(queue.StatusCompleted); err != nil {
		m.setLastError(err)
		return err
	}
	search.SetProgress(queue.ProgressCeiling(queue.StatusCompleted), "Title search complete")
	search.LastHeartbeat = nil
	if err := m.store.Update(ctx, search); err != nil {
		wrapped := fmt.Errorf("persist completion: %w", err)
		logger.Error("failed to persist completion", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	m.setLastSearch(search)
	metrics.SearchesCompleted.WithLabelValues(string(queue.StatusCompleted), fmt.Sprintf("%t", search.Partial)).Inc()

	logger.Info("search completed",
		logging.String(logging.FieldEventType, "search_complete"),
		logging.String("property_address", search.PropertyAddress),
	)
	m.notifyCompleted(ctx, logger, search)
	return nil
}

func (m *Manager) finalizeCancelled(ctx context.Context, workerLogger *slog.Logger, search *queue.Search) error {
	logger := logging.WithContext(ctx, workerLogger)

	if err := search.TransitionTo(queue.StatusCancelled); err != nil {
		m.setLastError(err)
		return err
	}
	search.StatusMessage = queue.UserCancelReason
	search.LastHeartbeat = nil
	if err := m.store.Update(ctx, search); err != nil {
		wrapped := fmt.Errorf("persist cancellation: %w", err)
		logger.Error("failed to persist cancellation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	m.setLastSearch(search)
	metrics.SearchesCompleted.WithLabelValues(string(queue.StatusCancelled), "false").Inc()

	logger.Info("search cancelled at stage boundary",
		logging.String(logging.FieldEventType, "search_cancelled"),
	)
	return nil
}

func (m *Manager) notifyCompleted(ctx context.Context, logger *slog.Logger, search *queue.Search) {
	if m.notifier == nil {
		return
	}
	riskBand := ""
	if report, err := reporting.DecodeReport(search.ResultJSON); err == nil && report != nil {
		riskBand = report.Risk.RiskBand
	}
	if err := m.notifier.NotifySearchCompleted(ctx, search.PropertyAddress, riskBand); err != nil {
		logger.Warn("completion notification failed", logging.Error(err))
	}
}
