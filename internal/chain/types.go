package chain

import "time"

// Break classifications.
const (
	BreakMissingLink    = "missing_link"
	BreakUnknownGrantor = "unknown_grantor"
	BreakTimeGap        = "time_gap"
)

// Break severities. Exactly one applies per break.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Entry is one recorded transfer in the chain, produced by the document
// extraction collaborator and consumed read-only here.
type Entry struct {
	SequenceNumber  int        `json:"sequence_number"`
	TransactionType string     `json:"transaction_type"`
	TransactionDate *time.Time `json:"transaction_date"`
	GrantorNames    []string   `json:"grantor_names"`
	GranteeNames    []string   `json:"grantee_names"`
	Consideration   *float64   `json:"consideration"`
	RecordingRef    string     `json:"recording_reference"`
}

// Break is one detected defect in the chain.
type Break struct {
	BreakType      string     `json:"break_type"`
	Severity       string     `json:"severity"`
	Description    string     `json:"description"`
	FromEntry      *int       `json:"from_entry"`
	ToEntry        *int       `json:"to_entry"`
	FromParty      string     `json:"from_party,omitempty"`
	ToParty        string     `json:"to_party,omitempty"`
	FromDate       *time.Time `json:"from_date"`
	ToDate         *time.Time `json:"to_date"`
	Recommendation string     `json:"recommendation"`
}

// OwnershipPeriod is one owner's span in the timeline. Dates are nil when the
// span extends beyond the record set on that side.
type OwnershipPeriod struct {
	Name         string  `json:"name"`
	AcquiredDate *string `json:"acquired_date"`
	SoldDate     *string `json:"sold_date"`
	AcquiredFrom string  `json:"acquired_from,omitempty"`
	SoldTo       string  `json:"sold_to,omitempty"`
}

// Analysis is the full chain-of-title result for one search.
type Analysis struct {
	SearchID         int64             `json:"search_id"`
	IsClear          bool              `json:"is_clear"`
	TotalBreaks      int               `json:"total_breaks"`
	CriticalBreaks   int               `json:"critical_breaks"`
	WarningBreaks    int               `json:"warning_breaks"`
	Breaks           []Break           `json:"breaks"`
	OwnershipSummary []OwnershipPeriod `json:"ownership_summary"`
	AnalysisNotes    []string          `json:"analysis_notes"`
}

// HasCriticalBreak reports whether any critical break was found. The risk
// scorer uses this for its chain-break boost.
func (a *Analysis) HasCriticalBreak() bool {
	return a != nil && a.CriticalBreaks > 0
}
