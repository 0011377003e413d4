package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"abstractor/internal/config"
	"abstractor/internal/notifications"
	"abstractor/internal/queue"
)

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     notifications.Service

	heartbeat *HeartbeatMonitor

	stages        []pipelineStage
	stageByStatus map[queue.Status]pipelineStage

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastErr    error
	lastSearch *queue.Search

	claimMu sync.Mutex
	claims  map[int64]struct{}
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		claims: make(map[int64]struct{}),
	}
}

// tryClaim records an in-process claim on a search. It returns false when
// another worker in this process already owns the search.
func (m *Manager) tryClaim(id int64) bool {
	m.claimMu.Lock()
	defer m.claimMu.Unlock()
	if _, held := m.claims[id]; held {
		return false
	}
	m.claims[id] = struct{}{}
	return true
}

func (m *Manager) releaseClaim(id int64) {
	m.claimMu.Lock()
	delete(m.claims, id)
	m.claimMu.Unlock()
}
