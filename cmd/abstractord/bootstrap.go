package main

import (
	"log/slog"

	"abstractor/internal/analysis"
	"abstractor/internal/config"
	"abstractor/internal/discovery"
	"abstractor/internal/queue"
	"abstractor/internal/reporting"
	"abstractor/internal/workflow"
)

type stageConfigurator interface {
	ConfigureStages(workflow.StageSet) error
}

func configureStages(c stageConfigurator, cfg *config.Config, store *queue.Store, logger *slog.Logger) error {
	return c.ConfigureStages(workflow.StageSet{
		Scraper:   discovery.NewScraper(cfg, store, logger),
		Analyzer:  analysis.NewAnalyzer(cfg, store, logger),
		Generator: reporting.NewGenerator(cfg, store, logger),
	})
}
