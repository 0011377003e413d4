package discovery

import (
	"context"
	"encoding/json"
	"log/slog"

	"abstractor/internal/config"
	"abstractor/internal/logging"
	"abstractor/internal/queue"
	"abstractor/internal/services"
	"abstractor/internal/stage"
)

// Scraper is the scraping stage handler: it collects property records
// through the configured record source and attaches them to the search.
type Scraper struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	source   RecordSource
	sessions *SessionPool
}

// NewScraper constructs the scraping stage handler with the directory-drop
// record source.
func NewScraper(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Scraper {
	return NewScraperWithSource(cfg, store, logger, NewDirectorySource(cfg.Paths.IngestDir))
}

// NewScraperWithSource allows injecting the record source (used in tests and
// by real scraping adapters).
func NewScraperWithSource(cfg *config.Config, store *queue.Store, logger *slog.Logger, source RecordSource) *Scraper {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "scraper"))
	}
	return &Scraper{
		cfg:      cfg,
		store:    store,
		logger:   stageLogger,
		source:   source,
		sessions: NewSessionPool(cfg.Workflow.ScrapeSessionLimit),
	}
}

func (s *Scraper) Prepare(ctx context.Context, search *queue.Search) error {
	logger := logging.WithContext(ctx, s.logger)
	search.SetProgress(queue.ProgressFloor(queue.StatusScraping), "Collecting property records")
	logger.Info("starting record collection",
		logging.String("property_address", search.PropertyAddress),
		logging.String("county", search.County),
	)
	return nil
}

func (s *Scraper) Execute(ctx context.Context, search *queue.Search) error {
	logger := logging.WithContext(ctx, s.logger)

	if err := s.sessions.Acquire(ctx); err != nil {
		return services.Wrap(services.ErrTransient, "scraping", "acquire session",
			"scraping session pool unavailable", err)
	}
	defer s.sessions.Release()

	records, err := s.source.Fetch(ctx, Request{
		SearchID:        search.ID,
		PropertyAddress: search.PropertyAddress,
		County:          search.County,
		ParcelNumber:    search.ParcelNumber,
	})
	if err != nil {
		return err
	}

	search.SetProgress(40, "Organizing collected records")

	chainJSON, err := json.Marshal(records.ChainEntries)
	if err != nil {
		return services.Wrap(services.ErrInternal, "scraping", "encode chain entries", "", err)
	}
	encJSON, err := json.Marshal(records.Encumbrances)
	if err != nil {
		return services.Wrap(services.ErrInternal, "scraping", "encode encumbrances", "", err)
	}
	search.ChainEntriesJSON = string(chainJSON)
	search.EncumbrancesJSON = string(encJSON)
	search.SetProgress(queue.ProgressCeiling(queue.StatusScraping), "Record collection complete")

	logger.Info("record collection complete",
		logging.Int("chain_entries", len(records.ChainEntries)),
		logging.Int("encumbrances", len(records.Encumbrances)),
	)
	return nil
}

func (s *Scraper) HealthCheck(ctx context.Context) stage.Health {
	if s.source == nil {
		return stage.Unhealthy("scraper", "no record source configured")
	}
	return stage.Healthy("scraper")
}
