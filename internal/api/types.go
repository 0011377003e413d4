package api

import (
	"abstractor/internal/chain"
	"abstractor/internal/errclass"
	"abstractor/internal/recovery"
	"abstractor/internal/risk"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Search describes a title search in a transport-friendly format.
type Search struct {
	ID              int64   `json:"id"`
	PropertyAddress string  `json:"property_address"`
	County          string  `json:"county,omitempty"`
	ParcelNumber    string  `json:"parcel_number,omitempty"`
	Status          string  `json:"status"`
	StatusMessage   string  `json:"status_message"`
	ProgressPercent float64 `json:"progress_percent"`
	RetryCount      int     `json:"retry_count"`
	Partial         bool    `json:"partial"`
	CreatedAt       string  `json:"created_at,omitempty"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
}

// ErrorReport is the error/recovery payload for a failed search.
type ErrorReport struct {
	StatusMessage string            `json:"status_message"`
	RetryCount    int               `json:"retry_count"`
	ErrorLog      []errclass.Record `json:"error_log"`
	Recovery      recovery.Options  `json:"recovery"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queue_stats"`
	LastError   string         `json:"last_error,omitempty"`
	LastSearch  *Search        `json:"last_search,omitempty"`
	StageHealth []StageHealth  `json:"stage_health"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// StatusLine is a labeled status row rendered by CLI status output.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	QueueDBPath  string         `json:"queue_db_path"`
	LockFilePath string         `json:"lock_file_path"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// SearchListResponse wraps a collection of searches for API responses.
type SearchListResponse struct {
	Searches []Search `json:"searches"`
}

// SearchResponse wraps a single search.
type SearchResponse struct {
	Search Search `json:"search"`
}

// ChainAnalysisResponse is the chain analysis payload; the analysis struct
// already carries the contract field names.
type ChainAnalysisResponse = chain.Analysis

// EncumbranceListResponse wraps graded encumbrance records.
type EncumbranceListResponse struct {
	Encumbrances []risk.Encumbrance `json:"encumbrances"`
}

// SubmitRequest is the payload accepted when creating a search.
type SubmitRequest struct {
	PropertyAddress string `json:"property_address"`
	County          string `json:"county,omitempty"`
	ParcelNumber    string `json:"parcel_number,omitempty"`
	// Trigger queues the search for processing immediately on creation.
	Trigger bool `json:"trigger,omitempty"`
}
