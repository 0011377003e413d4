package api

import (
	"context"
	"fmt"
	"strings"

	"abstractor/internal/analysis"
	"abstractor/internal/chain"
	"abstractor/internal/config"
	"abstractor/internal/queue"
	"abstractor/internal/risk"
	"abstractor/internal/services"
	"abstractor/internal/workflow"
)

// SearchService exposes search queries and lifecycle actions as API DTOs.
type SearchService struct {
	cfg     *config.Config
	store   *queue.Store
	manager *workflow.Manager
}

// NewSearchService constructs a SearchService.
func NewSearchService(cfg *config.Config, store *queue.Store, manager *workflow.Manager) *SearchService {
	return &SearchService{cfg: cfg, store: store, manager: manager}
}

// List returns searches filtered by status.
func (s *SearchService) List(ctx context.Context, statuses ...queue.Status) ([]Search, error) {
	searches, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromSearches(searches), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *SearchService) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(stats))
	for status, count := range stats {
		counts[string(status)] = count
	}
	return counts, nil
}

// Describe fetches a single search.
func (s *SearchService) Describe(ctx context.Context, id int64) (*Search, error) {
	search, err := s.getSearch(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromSearch(search)
	return &dto, nil
}

// Errors returns the error/recovery payload for a search.
func (s *SearchService) Errors(ctx context.Context, id int64) (*ErrorReport, error) {
	search, err := s.getSearch(ctx, id)
	if err != nil {
		return nil, err
	}
	report, err := BuildErrorReport(search, s.cfg.Workflow.RetryCeiling)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ChainAnalysis returns the stored chain analysis for a search.
func (s *SearchService) ChainAnalysis(ctx context.Context, id int64) (*chain.Analysis, error) {
	result, err := s.getResult(ctx, id)
	if err != nil {
		return nil, err
	}
	if result == nil || result.Chain == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "chain analysis",
			fmt.Sprintf("no chain analysis available for search %d", id), nil)
	}
	return result.Chain, nil
}

// Encumbrances returns the graded encumbrance records for a search.
func (s *SearchService) Encumbrances(ctx context.Context, id int64) ([]risk.Encumbrance, error) {
	result, err := s.getResult(ctx, id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "encumbrances",
			fmt.Sprintf("no analysis results available for search %d", id), nil)
	}
	return result.Encumbrances, nil
}

// Submit creates a new search and optionally queues it immediately.
func (s *SearchService) Submit(ctx context.Context, req SubmitRequest) (*Search, error) {
	if strings.TrimSpace(req.PropertyAddress) == "" {
		return nil, services.Wrap(services.ErrValidation, "", "submit", "property_address is required", nil)
	}
	search, err := s.store.NewSearch(ctx, req.PropertyAddress, req.County, req.ParcelNumber)
	if err != nil {
		return nil, err
	}
	if req.Trigger && s.manager != nil {
		search, err = s.manager.Trigger(ctx, search.ID)
		if err != nil {
			return nil, err
		}
	}
	dto := FromSearch(search)
	return &dto, nil
}

// Trigger queues a pending search for processing.
func (s *SearchService) Trigger(ctx context.Context, id int64) (*Search, error) {
	return s.action(ctx, id, s.manager.Trigger)
}

// Retry requeues a failed search from its last checkpoint.
func (s *SearchService) Retry(ctx context.Context, id int64) (*Search, error) {
	return s.action(ctx, id, s.manager.RequestRetry)
}

// Cancel cancels a search, immediately or at the next stage boundary.
func (s *SearchService) Cancel(ctx context.Context, id int64) (*Search, error) {
	return s.action(ctx, id, s.manager.RequestCancel)
}

// PartialComplete closes out a failed search with its saved results.
func (s *SearchService) PartialComplete(ctx context.Context, id int64) (*Search, error) {
	return s.action(ctx, id, s.manager.MarkPartialComplete)
}

// Status reports workflow diagnostics.
func (s *SearchService) Status(ctx context.Context) WorkflowStatus {
	if s.manager == nil {
		return WorkflowStatus{}
	}
	return FromStatusSummary(s.manager.Status(ctx))
}

func (s *SearchService) action(ctx context.Context, id int64, op func(context.Context, int64) (*queue.Search, error)) (*Search, error) {
	if s.manager == nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "action", "workflow manager not available", nil)
	}
	search, err := op(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromSearch(search)
	return &dto, nil
}

func (s *SearchService) getSearch(ctx context.Context, id int64) (*queue.Search, error) {
	search, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if search == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "describe", fmt.Sprintf("search %d not found", id), nil)
	}
	return search, nil
}

// getResult decodes whatever analysis product the search carries. Both the
// mid-pipeline analysis result and the final report share the contract field
// names, so one decoder covers both.
func (s *SearchService) getResult(ctx context.Context, id int64) (*analysis.Result, error) {
	search, err := s.getSearch(ctx, id)
	if err != nil {
		return nil, err
	}
	return analysis.DecodeResult(search.ResultJSON)
}
