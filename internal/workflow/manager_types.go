package workflow

import (
	"errors"

	"abstractor/internal/queue"
	"abstractor/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Scraper   stage.Handler
	Analyzer  stage.Handler
	Generator stage.Handler
}

type pipelineStage struct {
	name    string
	handler stage.Handler
	status  queue.Status
}

// ConfigureStages registers the stage handlers in pipeline order. It must be
// called before Start.
func (m *Manager) ConfigureStages(set StageSet) error {
	if set.Scraper == nil || set.Analyzer == nil || set.Generator == nil {
		return errors.New("all pipeline stages must be configured")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = []pipelineStage{
		{name: "scraping", handler: set.Scraper, status: queue.StatusScraping},
		{name: "analyzing", handler: set.Analyzer, status: queue.StatusAnalyzing},
		{name: "generating", handler: set.Generator, status: queue.StatusGenerating},
	}
	m.stageByStatus = make(map[queue.Status]pipelineStage, len(m.stages))
	for _, stg := range m.stages {
		m.stageByStatus[stg.status] = stg
	}
	return nil
}

// stagesFrom returns the pipeline tail beginning at the given resume stage.
func (m *Manager) stagesFrom(resume queue.Status) []pipelineStage {
	for i, stg := range m.stages {
		if stg.status == resume {
			return m.stages[i:]
		}
	}
	return m.stages
}
