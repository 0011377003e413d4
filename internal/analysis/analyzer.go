package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"abstractor/internal/chain"
	"abstractor/internal/config"
	"abstractor/internal/logging"
	"abstractor/internal/queue"
	"abstractor/internal/risk"
	"abstractor/internal/services"
	"abstractor/internal/stage"
)

// Result is the analysis product attached to a search before report assembly.
type Result struct {
	Chain        *chain.Analysis    `json:"chain_analysis"`
	Encumbrances []risk.Encumbrance `json:"encumbrances"`
	Risk         risk.Assessment    `json:"risk"`
}

// Analyzer is the analyzing stage handler.
type Analyzer struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	chain  *chain.Analyzer
	scorer *risk.Scorer
}

// NewAnalyzer constructs the analyzing stage handler.
func NewAnalyzer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Analyzer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "analyzer"))
	}
	return &Analyzer{
		cfg:    cfg,
		store:  store,
		logger: stageLogger,
		chain:  chain.NewAnalyzer(cfg.Analysis.TimeGapYears),
		scorer: risk.NewScorer(cfg.Analysis.ChainBreakBoost, cfg.Analysis.AdditionalItemBoost),
	}
}

func (a *Analyzer) Prepare(ctx context.Context, search *queue.Search) error {
	logger := logging.WithContext(ctx, a.logger)
	search.SetProgress(queue.ProgressFloor(queue.StatusAnalyzing), "Analyzing chain of title")
	logger.Info("starting analysis", logging.Int64(logging.FieldSearchID, search.ID))
	return nil
}

func (a *Analyzer) Execute(ctx context.Context, search *queue.Search) error {
	logger := logging.WithContext(ctx, a.logger)

	entries, err := decodeEntries(search.ChainEntriesJSON)
	if err != nil {
		return err
	}
	sequenceEntries(entries)

	chainAnalysis, err := a.chain.Analyze(search.ID, entries)
	if err != nil {
		return err
	}
	search.SetProgress(75, "Scoring encumbrances")

	encumbrances, err := decodeEncumbrances(search.EncumbrancesJSON)
	if err != nil {
		return err
	}
	graded := a.scorer.GradeAll(encumbrances)
	assessment := a.scorer.Score(graded, chainAnalysis.HasCriticalBreak())

	result := Result{Chain: chainAnalysis, Encumbrances: graded, Risk: assessment}
	encoded, err := json.Marshal(result)
	if err != nil {
		return services.Wrap(services.ErrInternal, "analyzing", "encode result", "", err)
	}
	search.ResultJSON = string(encoded)
	search.SetProgress(queue.ProgressCeiling(queue.StatusAnalyzing), "Analysis complete")

	logger.Info("analysis complete",
		logging.Bool("is_clear", chainAnalysis.IsClear),
		logging.Int("total_breaks", chainAnalysis.TotalBreaks),
		logging.Int("risk_score", assessment.RiskScore),
		logging.String("risk_band", assessment.RiskBand),
	)
	return nil
}

func (a *Analyzer) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("analyzer")
}

// DecodeResult reads the analysis product back off a search.
func DecodeResult(resultJSON string) (*Result, error) {
	if resultJSON == "" {
		return nil, nil
	}
	var result Result
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, services.Wrap(services.ErrInternal, "analyzing", "decode result", "", err)
	}
	return &result, nil
}

func decodeEntries(raw string) ([]chain.Entry, error) {
	if raw == "" {
		return nil, nil
	}
	var entries []chain.Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, services.Wrap(services.ErrPersistent, "analyzing", "decode chain entries",
			"collected chain entries are malformed", err)
	}
	return entries, nil
}

func decodeEncumbrances(raw string) ([]risk.Encumbrance, error) {
	if raw == "" {
		return nil, nil
	}
	var records []risk.Encumbrance
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, services.Wrap(services.ErrPersistent, "analyzing", "decode encumbrances",
			"collected encumbrances are malformed", err)
	}
	return records, nil
}

// sequenceEntries sorts entries ascending by transaction date with undated
// entries last, then tags 1-based sequence numbers in that order.
func sequenceEntries(entries []chain.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := entries[i].TransactionDate, entries[j].TransactionDate
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})
	for i := range entries {
		entries[i].SequenceNumber = i + 1
	}
}
