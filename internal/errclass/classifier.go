package errclass

import (
	"strings"
	"time"
)

// Category buckets a stage failure for retry policy and recovery advice.
type Category string

const (
	CategoryNetwork   Category = "network"
	CategoryTimeout   Category = "timeout"
	CategoryRateLimit Category = "rate_limit"
	CategoryAuth      Category = "auth"
	CategoryScraping  Category = "scraping"
	CategoryUnknown   Category = "unknown"
)

// Severity grades how serious a classified failure is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityOrder supports one-step escalation. Critical stays critical.
var severityOrder = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Escalate raises a severity by one level, saturating at critical.
func Escalate(s Severity) Severity {
	for i, level := range severityOrder {
		if level == s {
			if i+1 < len(severityOrder) {
				return severityOrder[i+1]
			}
			return s
		}
	}
	return s
}

// RawFailure is the classifier input: the failure signal a stage executor
// reported, plus the context the classifier needs to grade it.
type RawFailure struct {
	Stage   string
	Message string
	// Code is an HTTP-ish status code when the failure carried one, else 0.
	Code int
	// Transient overrides rule-derived transience when non-nil.
	Transient *bool
	// Internal flags a pipeline invariant violation. Internal failures are
	// never transient and never escalated differently: they classify as
	// unknown/critical immediately.
	Internal bool
	// ConsecutiveFailures is the current same-category streak length
	// including this failure, computed by the caller from the error log.
	ConsecutiveFailures int
}

// Record is the immutable error log entry produced for every stage failure.
type Record struct {
	Timestamp         time.Time `json:"timestamp"`
	StageName         string    `json:"stage_name"`
	RawMessage        string    `json:"raw_message"`
	Category          Category  `json:"category"`
	Severity          Severity  `json:"severity"`
	IsTransient       bool      `json:"is_transient"`
	RecommendedAction string    `json:"recommended_action"`
}

// Pattern tables are checked in order; first category with a hit wins.
var categoryPatterns = []struct {
	category Category
	patterns []string
}{
	{CategoryNetwork, []string{
		"connection refused", "connection reset", "network unreachable",
		"name resolution", "dns", "socket", "no such host", "broken pipe",
		"connection error",
	}},
	{CategoryTimeout, []string{
		"timeout", "timed out", "took too long", "deadline exceeded",
	}},
	{CategoryRateLimit, []string{
		"rate limit", "too many requests", "429", "throttl", "quota exceeded",
	}},
	{CategoryAuth, []string{
		"unauthorized", "401", "forbidden", "403", "login required",
		"session expired", "authentication failed", "access denied",
	}},
	{CategoryScraping, []string{
		"page not found", "404", "element not found", "no results",
		"website unavailable", "under maintenance", "captcha", "bot detection",
		"selector", "parse error", "malformed",
	}},
}

var severityDefaults = map[Category]Severity{
	CategoryNetwork:   SeverityLow,
	CategoryTimeout:   SeverityLow,
	CategoryRateLimit: SeverityMedium,
	CategoryAuth:      SeverityCritical,
	CategoryScraping:  SeverityHigh,
	CategoryUnknown:   SeverityMedium,
}

var transientCategories = map[Category]bool{
	CategoryNetwork:   true,
	CategoryTimeout:   true,
	CategoryRateLimit: true,
}

var recommendedActions = map[Category]string{
	CategoryNetwork:   "Automatic retry; check connectivity to the county record source if failures persist.",
	CategoryTimeout:   "Automatic retry with backoff; consider rerunning during off-peak hours.",
	CategoryRateLimit: "Automatic retry after a delay imposed by the record source.",
	CategoryAuth:      "Update record-source credentials, then retry the search.",
	CategoryScraping:  "The record source layout may have changed; upload documents manually or retry later.",
	CategoryUnknown:   "Review the error detail; contact support if the failure repeats.",
}

const internalAction = "Internal pipeline error; this search will not be retried automatically. Report the error detail."

// Categorize maps a raw failure onto a category without grading it.
func Categorize(f RawFailure) Category {
	if f.Internal {
		return CategoryUnknown
	}
	message := strings.ToLower(f.Message)

	switch f.Code {
	case 429:
		return CategoryRateLimit
	case 401, 403:
		return CategoryAuth
	}

	for _, entry := range categoryPatterns {
		for _, pattern := range entry.patterns {
			if strings.Contains(message, pattern) {
				return entry.category
			}
		}
	}
	if strings.EqualFold(strings.TrimSpace(f.Stage), "scraping") {
		return CategoryScraping
	}
	return CategoryUnknown
}

// Classify produces the structured error record for a raw stage failure.
// now is injected so the mapping stays deterministic under test.
func Classify(f RawFailure, now time.Time) Record {
	if f.Internal {
		return Record{
			Timestamp:         now.UTC(),
			StageName:         f.Stage,
			RawMessage:        f.Message,
			Category:          CategoryUnknown,
			Severity:          SeverityCritical,
			IsTransient:       false,
			RecommendedAction: internalAction,
		}
	}

	category := Categorize(f)

	severity := severityDefaults[category]
	if f.ConsecutiveFailures >= 3 {
		severity = Escalate(severity)
	}

	transient := transientCategories[category]
	if f.Transient != nil {
		transient = *f.Transient
	}

	return Record{
		Timestamp:         now.UTC(),
		StageName:         f.Stage,
		RawMessage:        f.Message,
		Category:          category,
		Severity:          severity,
		IsTransient:       transient,
		RecommendedAction: recommendedActions[category],
	}
}
