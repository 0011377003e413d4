package chain

import (
	"fmt"
	"time"

	"abstractor/internal/services"
)

// DefaultTimeGapYears is the gap between recorded transfers that triggers a
// time_gap warning when no override is configured.
const DefaultTimeGapYears = 5

const dateLayout = "2006-01-02"

// Analyzer runs chain-of-title analysis. Safe for concurrent use.
type Analyzer struct {
	timeGapYears int
}

// NewAnalyzer builds an analyzer with the given time-gap threshold in years.
// Non-positive values fall back to DefaultTimeGapYears.
func NewAnalyzer(timeGapYears int) *Analyzer {
	if timeGapYears <= 0 {
		timeGapYears = DefaultTimeGapYears
	}
	return &Analyzer{timeGapYears: timeGapYears}
}

// Analyze inspects the ordered entry list and returns breaks, an ownership
// timeline, and summary notes. Entries must be pre-sorted ascending by
// transaction date with nulls last and carry 1-based gapless sequence
// numbers; a violated sequence is an internal error, never a degraded result.
func (a *Analyzer) Analyze(searchID int64, entries []Entry) (*Analysis, error) {
	for i, entry := range entries {
		if entry.SequenceNumber != i+1 {
			return nil, services.Wrap(services.ErrInternal, "analyzing", "chain",
				fmt.Sprintf("entry %d carries sequence number %d", i, entry.SequenceNumber), nil)
		}
	}

	analysis := &Analysis{
		SearchID:         searchID,
		Breaks:           []Break{},
		OwnershipSummary: []OwnershipPeriod{},
		AnalysisNotes:    []string{},
	}

	if len(entries) == 0 {
		analysis.IsClear = false
		analysis.AnalysisNotes = append(analysis.AnalysisNotes,
			"No ownership transfer records available; chain cannot be verified.")
		return analysis, nil
	}

	for i := 0; i+1 < len(entries); i++ {
		cur, next := entries[i], entries[i+1]

		if len(next.GrantorNames) == 0 {
			analysis.Breaks = append(analysis.Breaks, unknownGrantorBreak(next))
		} else if len(cur.GranteeNames) > 0 && !anyNameMatches(cur.GranteeNames, next.GrantorNames) {
			analysis.Breaks = append(analysis.Breaks, missingLinkBreak(cur, next))
		}

		if cur.TransactionDate != nil && next.TransactionDate != nil {
			gap := next.TransactionDate.Sub(*cur.TransactionDate)
			threshold := time.Duration(a.timeGapYears) * 365 * 24 * time.Hour
			if gap > threshold {
				analysis.Breaks = append(analysis.Breaks, timeGapBreak(cur, next, gap))
			}
		}
	}

	analysis.OwnershipSummary = buildOwnership(entries)

	for _, b := range analysis.Breaks {
		switch b.Severity {
		case SeverityCritical:
			analysis.CriticalBreaks++
		case SeverityWarning:
			analysis.WarningBreaks++
		}
	}
	analysis.TotalBreaks = len(analysis.Breaks)
	analysis.IsClear = analysis.CriticalBreaks == 0
	analysis.AnalysisNotes = buildNotes(analysis, entries)

	return analysis, nil
}

func unknownGrantorBreak(entry Entry) Break {
	seq := entry.SequenceNumber
	grantee := firstName(entry.GranteeNames)
	return Break{
		BreakType: BreakUnknownGrantor,
		Severity:  SeverityCritical,
		Description: fmt.Sprintf(
			"Entry %d conveys to '%s' without a recorded grantor", seq, grantee),
		FromEntry: &seq,
		ToEntry:   &seq,
		ToParty:   grantee,
		FromDate:  entry.TransactionDate,
		ToDate:    entry.TransactionDate,
		Recommendation: "Search for the deed by which the unnamed grantor acquired the property. " +
			"This is a critical chain break.",
	}
}

func missingLinkBreak(cur, next Entry) Break {
	fromSeq, toSeq := cur.SequenceNumber, next.SequenceNumber
	fromParty := firstName(cur.GranteeNames)
	toParty := firstName(next.GrantorNames)
	return Break{
		BreakType: BreakMissingLink,
		Severity:  SeverityCritical,
		Description: fmt.Sprintf(
			"Chain break: '%s' is conveying property, but the last recorded owner was '%s'",
			toParty, fromParty),
		FromEntry: &fromSeq,
		ToEntry:   &toSeq,
		FromParty: fromParty,
		ToParty:   toParty,
		FromDate:  cur.TransactionDate,
		ToDate:    next.TransactionDate,
		Recommendation: fmt.Sprintf(
			"Search for a deed transferring from '%s' to '%s'. A missing document is likely.",
			fromParty, toParty),
	}
}

func timeGapBreak(cur, next Entry, gap time.Duration) Break {
	fromSeq, toSeq := cur.SequenceNumber, next.SequenceNumber
	years := gap.Hours() / 24 / 365
	return Break{
		BreakType: BreakTimeGap,
		Severity:  SeverityWarning,
		Description: fmt.Sprintf(
			"Large time gap of %.1f years between recorded ownership transfers", years),
		FromEntry: &fromSeq,
		ToEntry:   &toSeq,
		FromDate:  cur.TransactionDate,
		ToDate:    next.TransactionDate,
		Recommendation: "Review for any unrecorded transfers, probate proceedings, " +
			"or other conveyances during this period.",
	}
}

// buildOwnership walks the chain once and produces one period per owner span.
// The first entry's grantor, if any, predates the record set and opens with a
// nil acquired date.
func buildOwnership(entries []Entry) []OwnershipPeriod {
	owners := []OwnershipPeriod{}
	currentOwner := ""

	first := entries[0]
	if len(first.GrantorNames) > 0 {
		owners = append(owners, OwnershipPeriod{
			Name:         first.GrantorNames[0],
			AcquiredDate: nil,
			SoldDate:     formatDate(first.TransactionDate),
			AcquiredFrom: "Unknown (prior to search period)",
			SoldTo:       firstName(first.GranteeNames),
		})
	}

	for i, entry := range entries {
		if len(entry.GranteeNames) == 0 {
			continue
		}
		if i > 0 && currentOwner != "" {
			closeOwnerSpan(owners, currentOwner, entry)
		}
		currentOwner = entry.GranteeNames[0]
		owners = append(owners, OwnershipPeriod{
			Name:         currentOwner,
			AcquiredDate: formatDate(entry.TransactionDate),
			AcquiredFrom: firstName(entry.GrantorNames),
		})
	}
	return owners
}

func closeOwnerSpan(owners []OwnershipPeriod, owner string, sale Entry) {
	for i := range owners {
		if owners[i].SoldDate == nil && NamesMatch(owners[i].Name, owner) {
			owners[i].SoldDate = formatDate(sale.TransactionDate)
			owners[i].SoldTo = firstName(sale.GranteeNames)
			return
		}
	}
}

func buildNotes(analysis *Analysis, entries []Entry) []string {
	notes := []string{}
	if analysis.IsClear && analysis.TotalBreaks == 0 {
		notes = append(notes, "Chain of title appears complete with no breaks detected.")
	} else {
		if analysis.CriticalBreaks > 0 {
			notes = append(notes, fmt.Sprintf(
				"%d critical chain break(s) detected that require immediate attention.",
				analysis.CriticalBreaks))
		}
		if analysis.WarningBreaks > 0 {
			notes = append(notes, fmt.Sprintf(
				"%d warning(s) found that should be reviewed.", analysis.WarningBreaks))
		}
		if analysis.TotalBreaks > 0 {
			notes = append(notes, "Review all breaks and obtain missing documents before closing.")
		}
	}
	notes = append(notes, fmt.Sprintf("Chain analyzed from %s to %s.",
		dateOrUnknown(entries[0].TransactionDate),
		dateOrUnknown(entries[len(entries)-1].TransactionDate)))
	notes = append(notes, fmt.Sprintf("Total ownership transfers analyzed: %d", len(entries)))
	notes = append(notes, fmt.Sprintf("Distinct owners of record: %d", len(analysis.OwnershipSummary)))
	return notes
}

func firstName(names []string) string {
	if len(names) == 0 {
		return "Unknown"
	}
	return names[0]
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func dateOrUnknown(t *time.Time) string {
	if t == nil {
		return "unknown date"
	}
	return t.Format(dateLayout)
}
