// Package metrics exposes Prometheus instrumentation for the search pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageExecutions tracks stage executions by stage and outcome.
	StageExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "abstractor_stage_executions_total",
			Help: "Total number of pipeline stage executions",
		},
		[]string{"stage", "outcome"},
	)

	// StageFailures tracks stage failures by stage and error category.
	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "abstractor_stage_failures_total",
			Help: "Total number of stage failures",
		},
		[]string{"stage", "category"},
	)

	// StageRetries tracks automatic retries scheduled after transient failures.
	StageRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "abstractor_stage_retries_total",
			Help: "Total number of automatic stage retries",
		},
		[]string{"stage"},
	)

	// StageDuration tracks stage execution latency.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "abstractor_stage_duration_seconds",
			Help:    "Stage execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// SearchesByStatus tracks the number of searches in each queue status.
	SearchesByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "abstractor_searches_by_status",
			Help: "Number of searches currently in each status",
		},
		[]string{"status"},
	)

	// SearchesCompleted tracks searches that reached a terminal status.
	SearchesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "abstractor_searches_completed_total",
			Help: "Total number of searches reaching a terminal status",
		},
		[]string{"status", "partial"},
	)

	// HeartbeatReclaims tracks stale processing rows reclaimed to queued.
	HeartbeatReclaims = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "abstractor_heartbeat_reclaims_total",
			Help: "Total number of stale searches reclaimed by the heartbeat monitor",
		},
	)
)

// ObserveStatuses replaces the per-status gauge values from a status count map.
func ObserveStatuses(counts map[string]int) {
	SearchesByStatus.Reset()
	for status, count := range counts {
		SearchesByStatus.WithLabelValues(status).Set(float64(count))
	}
}
