package reporting

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"abstractor/internal/analysis"
	"abstractor/internal/chain"
	"abstractor/internal/config"
	"abstractor/internal/logging"
	"abstractor/internal/queue"
	"abstractor/internal/risk"
	"abstractor/internal/services"
	"abstractor/internal/stage"
)

// Report is the final document attached to a completed search.
type Report struct {
	SearchID        int64              `json:"search_id"`
	PropertyAddress string             `json:"property_address"`
	County          string             `json:"county,omitempty"`
	ParcelNumber    string             `json:"parcel_number,omitempty"`
	GeneratedAt     time.Time          `json:"generated_at"`
	Partial         bool               `json:"partial"`
	ChainAnalysis   *chain.Analysis    `json:"chain_analysis"`
	Encumbrances    []risk.Encumbrance `json:"encumbrances"`
	Risk            risk.Assessment    `json:"risk"`
}

// Generator is the generating stage handler.
type Generator struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewGenerator constructs the generating stage handler.
func NewGenerator(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Generator {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "generator"))
	}
	return &Generator{cfg: cfg, store: store, logger: stageLogger, now: time.Now}
}

func (g *Generator) Prepare(ctx context.Context, search *queue.Search) error {
	logger := logging.WithContext(ctx, g.logger)
	search.SetProgress(queue.ProgressFloor(queue.StatusGenerating), "Assembling title report")
	logger.Info("starting report assembly", logging.Int64(logging.FieldSearchID, search.ID))
	return nil
}

func (g *Generator) Execute(ctx context.Context, search *queue.Search) error {
	logger := logging.WithContext(ctx, g.logger)

	result, err := analysis.DecodeResult(search.ResultJSON)
	if err != nil {
		return err
	}
	if result == nil || result.Chain == nil {
		return services.Wrap(services.ErrValidation, "generating", "validate inputs",
			"no analysis result present; run analysis before generating the report", nil)
	}

	report := Report{
		SearchID:        search.ID,
		PropertyAddress: search.PropertyAddress,
		County:          search.County,
		ParcelNumber:    search.ParcelNumber,
		GeneratedAt:     g.now().UTC(),
		Partial:         search.Partial,
		ChainAnalysis:   result.Chain,
		Encumbrances:    result.Encumbrances,
		Risk:            result.Risk,
	}
	encoded, err := json.Marshal(report)
	if err != nil {
		return services.Wrap(services.ErrInternal, "generating", "encode report", "", err)
	}
	search.ResultJSON = string(encoded)
	search.SetProgress(queue.ProgressCeiling(queue.StatusGenerating), "Report assembled")

	logger.Info("report assembled",
		logging.Int("risk_score", report.Risk.RiskScore),
		logging.Bool("is_clear", report.ChainAnalysis.IsClear),
	)
	return nil
}

func (g *Generator) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("generator")
}

// DecodeReport reads the final report back off a completed search.
func DecodeReport(resultJSON string) (*Report, error) {
	if resultJSON == "" {
		return nil, nil
	}
	var report Report
	if err := json.Unmarshal([]byte(resultJSON), &report); err != nil {
		return nil, services.Wrap(services.ErrInternal, "generating", "decode report", "", err)
	}
	return &report, nil
}
