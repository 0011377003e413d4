package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a title search.
type Status string

const (
	StatusPending    Status = "pending"
	StatusQueued     Status = "queued"
	StatusScraping   Status = "scraping"
	StatusAnalyzing  Status = "analyzing"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// UserCancelReason is the status message set when a user cancels a search.
const UserCancelReason = "Cancelled by user"

// DaemonStopReason is the status message set when searches are requeued due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusQueued,
	StatusScraping,
	StatusAnalyzing,
	StatusGenerating,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusScraping:   {},
	StatusAnalyzing:  {},
	StatusGenerating: {},
}

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// pipelineOrder is the forward path a search takes when nothing goes wrong.
var pipelineOrder = []Status{
	StatusPending,
	StatusQueued,
	StatusScraping,
	StatusAnalyzing,
	StatusGenerating,
	StatusCompleted,
}

// progressCeilings caps progress_percent per status. Terminal failure states
// freeze progress at its last value and are absent here.
var progressCeilings = map[Status]float64{
	StatusPending:    0,
	StatusQueued:     10,
	StatusScraping:   60,
	StatusAnalyzing:  85,
	StatusGenerating: 99,
	StatusCompleted:  100,
}

// progressFloors are where each processing stage resumes counting from.
var progressFloors = map[Status]float64{
	StatusScraping:   10,
	StatusAnalyzing:  60,
	StatusGenerating: 85,
}

// Search represents a title search persisted in SQLite.
type Search struct {
	ID              int64
	PropertyAddress string
	County          string
	ParcelNumber    string
	Status          Status
	ProgressPercent float64
	StatusMessage   string
	RetryCount      int
	// Checkpoint is the last fully completed stage; retries resume after it.
	Checkpoint       Status
	ErrorLogJSON     string
	ChainEntriesJSON string
	EncumbrancesJSON string
	ResultJSON       string
	Partial          bool
	CancelRequested  bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastHeartbeat    *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (s *Search) IsProcessing() bool {
	return IsProcessingStatus(s.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminalStatus reports whether a status ends the lifecycle.
func IsTerminalStatus(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// ProgressCeiling returns the maximum progress_percent reachable in a status.
// Failed and cancelled searches freeze progress, so their ceiling is 100.
func ProgressCeiling(status Status) float64 {
	if ceiling, ok := progressCeilings[status]; ok {
		return ceiling
	}
	return 100
}

// ProgressFloor returns where a processing stage starts counting from.
func ProgressFloor(status Status) float64 {
	return progressFloors[status]
}

// CheckpointProgress is the progress preserved by the last completed stage:
// what the recovery payload reports as progress_saved.
func CheckpointProgress(checkpoint Status) float64 {
	if checkpoint == "" {
		return 0
	}
	return ProgressCeiling(checkpoint)
}

// NextStage returns the stage that follows the given one on the forward path.
func NextStage(status Status) (Status, bool) {
	for i, s := range pipelineOrder {
		if s == status && i+1 < len(pipelineOrder) {
			return pipelineOrder[i+1], true
		}
	}
	return "", false
}

// ResumeStage returns the processing stage a retry resumes from given the
// checkpoint. An empty checkpoint resumes from the beginning of the pipeline.
func ResumeStage(checkpoint Status) Status {
	if checkpoint == "" || checkpoint == StatusQueued {
		return StatusScraping
	}
	if next, ok := NextStage(checkpoint); ok && IsProcessingStatus(next) {
		return next
	}
	return StatusScraping
}

// ReachedAnalyzing reports whether the search completed scraping, meaning
// analyzable data exists for partial completion.
func (s *Search) ReachedAnalyzing() bool {
	switch s.Checkpoint {
	case StatusScraping, StatusAnalyzing, StatusGenerating:
		return true
	}
	return false
}

// SetProgress sets progress within the current stage, clamped to the stage
// ceiling. Progress never decreases within an attempt.
func (s *Search) SetProgress(percent float64, message string) {
	ceiling := ProgressCeiling(s.Status)
	if percent > ceiling {
		percent = ceiling
	}
	if percent > s.ProgressPercent {
		s.ProgressPercent = percent
	}
	s.StatusMessage = message
}

// SetFailed marks the search as failed, freezing progress at its last value.
func (s *Search) SetFailed(message string) {
	s.Status = StatusFailed
	s.StatusMessage = message
	s.LastHeartbeat = nil
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
	Cancelled  int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalSearches    int
	Error            string
}
