package main

import (
	"testing"

	"abstractor/internal/logging"
	"abstractor/internal/testsupport"
	"abstractor/internal/workflow"
)

type fakeConfigurator struct {
	set workflow.StageSet
}

func (f *fakeConfigurator) ConfigureStages(set workflow.StageSet) error {
	f.set = set
	return nil
}

func TestConfigureStagesWiresPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	configurator := &fakeConfigurator{}
	if err := configureStages(configurator, cfg, store, logging.NewNop()); err != nil {
		t.Fatalf("configureStages: %v", err)
	}

	if configurator.set.Scraper == nil {
		t.Fatal("scraper stage not wired")
	}
	if configurator.set.Analyzer == nil {
		t.Fatal("analyzer stage not wired")
	}
	if configurator.set.Generator == nil {
		t.Fatal("generator stage not wired")
	}
}
