package api_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"abstractor/internal/api"
	"abstractor/internal/errclass"
	"abstractor/internal/queue"
	"abstractor/internal/recovery"
)

func TestFromSearchMapsFields(t *testing.T) {
	created := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	search := &queue.Search{
		ID:              7,
		PropertyAddress: "123 Main St",
		County:          "Jefferson",
		Status:          queue.StatusScraping,
		StatusMessage:   "Collecting property records",
		ProgressPercent: 40,
		RetryCount:      1,
		CreatedAt:       created,
	}
	dto := api.FromSearch(search)
	if dto.ID != 7 || dto.Status != "scraping" || dto.ProgressPercent != 40 {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if !strings.HasPrefix(dto.CreatedAt, "2025-03-01T12:00:00") {
		t.Fatalf("created_at = %q", dto.CreatedAt)
	}
	if dto.UpdatedAt != "" {
		t.Fatalf("zero updated_at should be omitted, got %q", dto.UpdatedAt)
	}
}

func TestSearchPayloadFieldNames(t *testing.T) {
	data, err := json.Marshal(api.FromSearch(&queue.Search{ID: 1, PropertyAddress: "x", Status: queue.StatusPending}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"status"`, `"status_message"`, `"progress_percent"`, `"retry_count"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("payload missing %s: %s", key, data)
		}
	}
}

func TestBuildErrorReport(t *testing.T) {
	search := &queue.Search{
		ID:            9,
		Status:        queue.StatusFailed,
		StatusMessage: "scraping: fetch records: connection refused",
		RetryCount:    3,
		Checkpoint:    queue.StatusScraping,
	}
	for i := 0; i < 2; i++ {
		rec := errclass.Classify(errclass.RawFailure{
			Stage:   "scraping",
			Message: "connection refused",
		}, time.Now())
		if err := search.AppendErrorRecord(rec); err != nil {
			t.Fatalf("AppendErrorRecord: %v", err)
		}
	}

	report, err := api.BuildErrorReport(search, 3)
	if err != nil {
		t.Fatalf("BuildErrorReport: %v", err)
	}
	if report.Recovery.ErrorSummary.TotalErrors != 2 {
		t.Fatalf("total_errors = %d, want 2", report.Recovery.ErrorSummary.TotalErrors)
	}
	if report.Recovery.ErrorSummary.ProgressSaved != 60 {
		t.Fatalf("progress_saved = %d, want scraping ceiling 60", report.Recovery.ErrorSummary.ProgressSaved)
	}

	actions := make(map[string]bool, len(report.Recovery.Actions))
	for _, action := range report.Recovery.Actions {
		actions[action.Action] = true
	}
	if !actions[recovery.ActionRetry] || !actions[recovery.ActionCancel] {
		t.Fatalf("expected retry and cancel actions, got %+v", report.Recovery.Actions)
	}
	if !actions[recovery.ActionPartialComplete] {
		t.Fatal("expected partial_complete once scraping checkpoint exists")
	}

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"error_log"`, `"error_summary"`, `"total_errors"`, `"consecutive_failures"`, `"progress_saved"`, `"suggestions"`, `"recovery_actions"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("error payload missing %s: %s", key, data)
		}
	}
}
