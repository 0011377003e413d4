package risk

import (
	"strings"
	"time"
)

// Encumbrance statuses.
const (
	StatusActive      = "active"
	StatusReleased    = "released"
	StatusSubordinate = "subordinate"
	StatusUnknown     = "unknown"
)

// Per-item risk levels.
const (
	LevelLow      = "low"
	LevelMedium   = "medium"
	LevelHigh     = "high"
	LevelCritical = "critical"
)

// Display bands for the aggregate score.
const (
	BandLow      = "Low"
	BandModerate = "Moderate"
	BandElevated = "Elevated"
	BandHigh     = "High"
	BandCritical = "Critical"
)

// Encumbrance is one claim against the property. Source fields come from the
// detection collaborator; RiskLevel and RequiresAction are derived here.
type Encumbrance struct {
	EncumbranceType string     `json:"encumbrance_type"`
	Status          string     `json:"status"`
	HolderName      string     `json:"holder_name"`
	OriginalAmount  *float64   `json:"original_amount"`
	CurrentAmount   *float64   `json:"current_amount"`
	RecordedDate    *time.Time `json:"recorded_date"`
	RiskLevel       string     `json:"risk_level"`
	RequiresAction  bool       `json:"requires_action"`
	ActionDesc      string     `json:"action_description,omitempty"`
}

// Assessment is the aggregate result over one search's encumbrances.
type Assessment struct {
	RiskScore    int    `json:"risk_score"`
	RiskBand     string `json:"risk_band"`
	ActiveSevere int    `json:"active_severe"`
}

// criticalTypes flag claims that cloud title outright while active.
var criticalTypes = []string{"lien", "judgment", "lis pendens", "lis_pendens", "bankruptcy"}

// highTypes are security instruments that must be satisfied at closing.
var highTypes = []string{"mortgage", "deed of trust", "deed_of_trust"}

// mediumTypes burden use without blocking transfer.
var mediumTypes = []string{"easement", "ucc"}

var baseScores = map[string]int{
	LevelCritical: 80,
	LevelHigh:     55,
	LevelMedium:   30,
	LevelLow:      5,
}

var actionDescriptions = map[string]string{
	LevelCritical: "Resolve before closing; obtain payoff or court clearance.",
	LevelHigh:     "Obtain payoff statement and arrange for satisfaction at closing.",
	LevelMedium:   "Review for impact on use of property.",
	LevelLow:      "Verify release is properly recorded.",
}

// Scorer applies the reference grading formula. Boosts are tunable; zero
// values select the defaults.
type Scorer struct {
	chainBreakBoost int
	additionalBoost int
}

// NewScorer builds a scorer with the given boost weights.
func NewScorer(chainBreakBoost, additionalBoost int) *Scorer {
	if chainBreakBoost <= 0 {
		chainBreakBoost = 10
	}
	if additionalBoost <= 0 {
		additionalBoost = 5
	}
	return &Scorer{chainBreakBoost: chainBreakBoost, additionalBoost: additionalBoost}
}

// Grade derives RiskLevel, RequiresAction, and an action description for one
// encumbrance. Source fields are left untouched.
func (s *Scorer) Grade(e Encumbrance) Encumbrance {
	e.RiskLevel = levelFor(e)
	e.RequiresAction = e.RiskLevel == LevelHigh || e.RiskLevel == LevelCritical
	e.ActionDesc = actionDescriptions[e.RiskLevel]
	return e
}

// GradeAll grades every record, preserving order.
func (s *Scorer) GradeAll(records []Encumbrance) []Encumbrance {
	graded := make([]Encumbrance, len(records))
	for i, e := range records {
		graded[i] = s.Grade(e)
	}
	return graded
}

// Score aggregates graded records into the report-level assessment. The score
// is the maximum per-item base, boosted per additional active critical/high
// item beyond the first and once more when the chain of title carries a
// critical break, capped at 100.
func (s *Scorer) Score(records []Encumbrance, criticalChainBreak bool) Assessment {
	score := 0
	severe := 0
	for _, e := range records {
		graded := s.Grade(e)
		if base := baseScores[graded.RiskLevel]; base > score {
			score = base
		}
		if graded.Status == StatusActive &&
			(graded.RiskLevel == LevelCritical || graded.RiskLevel == LevelHigh) {
			severe++
		}
	}
	if severe > 1 {
		score += (severe - 1) * s.additionalBoost
	}
	if criticalChainBreak {
		score += s.chainBreakBoost
	}
	if score > 100 {
		score = 100
	}
	return Assessment{RiskScore: score, RiskBand: Band(score), ActiveSevere: severe}
}

// Band maps a 0-100 score onto the display band the UI expects.
func Band(score int) string {
	switch {
	case score >= 80:
		return BandCritical
	case score >= 60:
		return BandHigh
	case score >= 40:
		return BandElevated
	case score >= 20:
		return BandModerate
	default:
		return BandLow
	}
}

func levelFor(e Encumbrance) string {
	if e.Status != StatusActive {
		return LevelLow
	}
	encType := strings.ToLower(e.EncumbranceType)
	if matchesAny(encType, criticalTypes) {
		return LevelCritical
	}
	if matchesAny(encType, highTypes) {
		return LevelHigh
	}
	if matchesAny(encType, mediumTypes) {
		return LevelMedium
	}
	return LevelMedium
}

func matchesAny(value string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(value, p) {
			return true
		}
	}
	return false
}
