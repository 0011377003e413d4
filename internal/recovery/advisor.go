package recovery

import (
	"fmt"

	"abstractor/internal/errclass"
)

// Action names the recovery operations the collaborator layer can invoke.
const (
	ActionRetry           = "retry"
	ActionPartialComplete = "partial_complete"
	ActionCancel          = "cancel"
	ActionManualUpload    = "manual_upload"
)

// Summary is the fold over the error log the UI renders as diagnostics.
type Summary struct {
	TotalErrors         int `json:"total_errors"`
	ConsecutiveFailures int `json:"consecutive_failures"`
	ProgressSaved       int `json:"progress_saved"`
}

// RecoveryAction is one actionable option with display copy.
type RecoveryAction struct {
	Action      string `json:"action"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Options is the full recovery payload for a failed search.
type Options struct {
	ErrorSummary Summary          `json:"error_summary"`
	Suggestions  []string         `json:"suggestions"`
	Actions      []RecoveryAction `json:"recovery_actions"`
}

// Input captures the job state the advisor reasons over. The error log is the
// single source of truth; everything else is positional context.
type Input struct {
	Log        []errclass.Record
	RetryCount int
	// RetryCeiling is the configured transient retry limit.
	RetryCeiling int
	// ProgressSaved is the progress ceiling of the last fully completed stage.
	ProgressSaved int
	// ReachedAnalyzing reports whether the search finished scraping before it
	// failed, meaning some analyzable data exists.
	ReachedAnalyzing bool
	// ResumeStage names the stage a retry would resume from, for display.
	ResumeStage string
}

// Advise computes the recovery payload for a failed search.
func Advise(in Input) Options {
	opts := Options{
		ErrorSummary: Summary{
			TotalErrors:         len(in.Log),
			ConsecutiveFailures: ConsecutiveFailures(in.Log),
			ProgressSaved:       in.ProgressSaved,
		},
	}

	dominant := DominantCategory(in.Log)
	opts.Suggestions = suggestionsFor(dominant, in.Log)

	if hasTransient(in.Log) || in.RetryCount < in.RetryCeiling {
		resume := in.ResumeStage
		if resume == "" {
			resume = "the beginning"
		}
		opts.Actions = append(opts.Actions, RecoveryAction{
			Action:      ActionRetry,
			Label:       "Retry Search",
			Description: fmt.Sprintf("Resume from %s", resume),
		})
	}
	if in.ReachedAnalyzing {
		opts.Actions = append(opts.Actions, RecoveryAction{
			Action:      ActionPartialComplete,
			Label:       "Save Partial Results",
			Description: "Mark as complete with available data",
		})
	}
	if dominant == errclass.CategoryScraping || dominant == errclass.CategoryAuth {
		opts.Actions = append(opts.Actions, RecoveryAction{
			Action:      ActionManualUpload,
			Label:       "Manual Document Upload",
			Description: "Upload documents manually instead of scraping",
		})
	}
	opts.Actions = append(opts.Actions, RecoveryAction{
		Action:      ActionCancel,
		Label:       "Cancel Search",
		Description: "Cancel this search and keep its diagnostics",
	})

	return opts
}

// ConsecutiveFailures returns the length of the current same-category streak
// at the tail of the log.
func ConsecutiveFailures(log []errclass.Record) int {
	if len(log) == 0 {
		return 0
	}
	last := log[len(log)-1].Category
	streak := 0
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Category != last {
			break
		}
		streak++
	}
	return streak
}

// DominantCategory returns the most common category in the log. Ties resolve
// to the category seen most recently so advice tracks the live failure mode.
func DominantCategory(log []errclass.Record) errclass.Category {
	if len(log) == 0 {
		return errclass.CategoryUnknown
	}
	counts := make(map[errclass.Category]int, len(log))
	lastSeen := make(map[errclass.Category]int, len(log))
	for i, rec := range log {
		counts[rec.Category]++
		lastSeen[rec.Category] = i
	}
	best := log[len(log)-1].Category
	for category, count := range counts {
		if count > counts[best] || (count == counts[best] && lastSeen[category] > lastSeen[best]) {
			best = category
		}
	}
	return best
}

func hasTransient(log []errclass.Record) bool {
	for _, rec := range log {
		if rec.IsTransient {
			return true
		}
	}
	return false
}

func suggestionsFor(dominant errclass.Category, log []errclass.Record) []string {
	var suggestions []string
	switch dominant {
	case errclass.CategoryNetwork:
		suggestions = []string{
			"Check network connectivity to the county record sources",
			"The record source may be temporarily down",
		}
	case errclass.CategoryTimeout:
		suggestions = []string{
			"The record source is responding slowly",
			"Try retrying during off-peak hours",
		}
	case errclass.CategoryRateLimit:
		suggestions = []string{
			"Wait a few minutes before retrying",
			"Consider running searches during off-peak hours",
		}
	case errclass.CategoryAuth:
		suggestions = []string{
			"Record-source credentials may need to be updated",
			"Contact an administrator to verify account access",
		}
	case errclass.CategoryScraping:
		suggestions = []string{
			"The record source structure may have changed",
			"Try manual document upload as an alternative",
		}
	default:
		suggestions = []string{
			"Review the error details for more information",
			"Contact support if the issue persists",
		}
	}
	if ConsecutiveFailures(log) >= 3 {
		suggestions = append([]string{"Multiple consecutive failures detected; manual review recommended"}, suggestions...)
	}
	return suggestions
}
