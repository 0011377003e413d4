package ipc

import (
	"abstractor/internal/api"
	"abstractor/internal/risk"
)

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// Search mirrors the HTTP API search DTO for internal IPC callers.
type Search = api.Search

// StageHealth describes readiness of a workflow stage.
type StageHealth = api.StageHealth

// ErrorReport mirrors the HTTP API error report payload.
type ErrorReport = api.ErrorReport

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queue_stats"`
	LastError   string         `json:"last_error"`
	LastSearch  *Search        `json:"last_search"`
	LockPath    string         `json:"lock_path"`
	QueueDBPath string         `json:"queue_db_path"`
	StageHealth []StageHealth  `json:"stage_health"`
	PID         int            `json:"pid"`

	// SystemChecks is filled client-side from local configuration probes and
	// never travels over the wire from the daemon.
	SystemChecks []api.StatusLine `json:"system_checks,omitempty"`
}

// SearchListRequest filters search listing by status.
type SearchListRequest struct {
	Statuses []string `json:"statuses"`
}

// SearchListResponse contains search entries.
type SearchListResponse struct {
	Searches []Search `json:"searches"`
}

// SearchDescribeRequest fetches a single search by id.
type SearchDescribeRequest struct {
	ID int64 `json:"id"`
}

// SearchDescribeResponse contains a single search.
type SearchDescribeResponse struct {
	Search Search `json:"search"`
}

// SubmitRequest registers a new title search.
type SubmitRequest struct {
	PropertyAddress string `json:"property_address"`
	County          string `json:"county"`
	ParcelNumber    string `json:"parcel_number"`
	Trigger         bool   `json:"trigger"`
}

// SubmitResponse returns the created search.
type SubmitResponse struct {
	Search Search `json:"search"`
}

// SearchActionRequest addresses a lifecycle action at one search.
type SearchActionRequest struct {
	ID int64 `json:"id"`
}

// SearchActionResponse returns the search after the action applied.
type SearchActionResponse struct {
	Search Search `json:"search"`
}

// ErrorsRequest fetches the error report for a search.
type ErrorsRequest struct {
	ID int64 `json:"id"`
}

// ErrorsResponse carries the error log and recovery options.
type ErrorsResponse struct {
	Report ErrorReport `json:"report"`
}

// ChainAnalysisRequest fetches the chain of title analysis for a search.
type ChainAnalysisRequest struct {
	ID int64 `json:"id"`
}

// ChainAnalysisResponse carries the chain analysis payload.
type ChainAnalysisResponse struct {
	Analysis api.ChainAnalysisResponse `json:"analysis"`
}

// EncumbrancesRequest fetches encumbrances discovered for a search.
type EncumbrancesRequest struct {
	ID int64 `json:"id"`
}

// EncumbrancesResponse carries the encumbrance list.
type EncumbrancesResponse struct {
	Encumbrances []risk.Encumbrance `json:"encumbrances"`
}

// QueueClearRequest removes all searches.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearCompletedRequest removes completed searches.
type QueueClearCompletedRequest struct{}

// QueueClearCompletedResponse reports number of removed entries.
type QueueClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueResetRequest requeues searches stuck in processing stages.
type QueueResetRequest struct{}

// QueueResetResponse reports number of searches reset.
type QueueResetResponse struct {
	Updated int64 `json:"updated"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue health information.
type QueueHealthResponse struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	TableExists      bool   `json:"table_exists"`
	IntegrityCheck   bool   `json:"integrity_check"`
	TotalSearches    int    `json:"total_searches"`
	Error            string `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
