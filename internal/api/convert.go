package api

import (
	"slices"

	"abstractor/internal/queue"
	"abstractor/internal/recovery"
	"abstractor/internal/workflow"
)

// FromSearch converts a queue record to its API representation.
func FromSearch(search *queue.Search) Search {
	if search == nil {
		return Search{}
	}
	dto := Search{
		ID:              search.ID,
		PropertyAddress: search.PropertyAddress,
		County:          search.County,
		ParcelNumber:    search.ParcelNumber,
		Status:          string(search.Status),
		StatusMessage:   search.StatusMessage,
		ProgressPercent: search.ProgressPercent,
		RetryCount:      search.RetryCount,
		Partial:         search.Partial,
	}
	if !search.CreatedAt.IsZero() {
		dto.CreatedAt = search.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !search.UpdatedAt.IsZero() {
		dto.UpdatedAt = search.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromSearches converts a slice of queue records into API DTOs.
func FromSearches(searches []*queue.Search) []Search {
	if len(searches) == 0 {
		return nil
	}
	out := make([]Search, 0, len(searches))
	for _, search := range searches {
		out = append(out, FromSearch(search))
	}
	return out
}

// BuildErrorReport assembles the error/recovery payload for a search. The
// recovery options are derived from the error log on every read; nothing is
// persisted besides the log itself.
func BuildErrorReport(search *queue.Search, retryCeiling int) (ErrorReport, error) {
	log, err := search.DecodeErrorLog()
	if err != nil {
		return ErrorReport{}, err
	}
	options := recovery.Advise(recovery.Input{
		Log:              log,
		RetryCount:       search.RetryCount,
		RetryCeiling:     retryCeiling,
		ProgressSaved:    int(queue.CheckpointProgress(search.Checkpoint)),
		ReachedAnalyzing: search.ReachedAnalyzing(),
		ResumeStage:      string(queue.ResumeStage(search.Checkpoint)),
	})
	return ErrorReport{
		StatusMessage: search.StatusMessage,
		RetryCount:    search.RetryCount,
		ErrorLog:      log,
		Recovery:      options,
	}, nil
}

// FromStatusSummary converts a workflow status summary to an API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	healthNames := make([]string, 0, len(summary.StageHealth))
	for name := range summary.StageHealth {
		healthNames = append(healthNames, name)
	}
	slices.Sort(healthNames)

	health := make([]StageHealth, 0, len(healthNames))
	for _, name := range healthNames {
		h := summary.StageHealth[name]
		health = append(health, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}

	stats := make(map[string]int, len(summary.QueueStats))
	for status, count := range summary.QueueStats {
		stats[string(status)] = count
	}

	wf := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  stats,
		StageHealth: health,
		LastError:   summary.LastError,
	}
	if summary.LastSearch != nil {
		last := FromSearch(summary.LastSearch)
		wf.LastSearch = &last
	}
	return wf
}
