package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Access decisions
	AccessDecisions *prometheus.CounterVec
	AccessCacheHits *prometheus.CounterVec

	// Connection lifecycle
	ConnectionsCreated    *prometheus.CounterVec
	ConnectionTransitions *prometheus.CounterVec

	// Schedule engine
	ScheduleMutations *prometheus.CounterVec
	ScheduleConflicts *prometheus.CounterVec

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxEventsPurged      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxEventLag          *prometheus.HistogramVec
	OutboxRetries           *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates all application metrics and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AccessDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "decisions_total",
			Help:      "Authorization decisions by action, matched rule and outcome",
		}, []string{"action", "rule", "outcome"}),
		AccessCacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "cache_lookups_total",
			Help:      "Profile and role cache lookups by kind and result",
		}, []string{"kind", "result"}),

		ConnectionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "created_total",
			Help:      "Connection requests created by type",
		}, []string{"connection_type"}),
		ConnectionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "transitions_total",
			Help:      "Connection status transitions",
		}, []string{"from", "to"}),

		ScheduleMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schedules",
			Name:      "mutations_total",
			Help:      "Schedule mutations by domain and operation",
		}, []string{"domain", "operation"}),
		ScheduleConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schedules",
			Name:      "conflicts_total",
			Help:      "Rejected schedule writes by domain and source of the conflict",
		}, []string{"domain", "source"}),

		OutboxEventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxEventsPurged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_purged_total",
			Help:      "Processed outbox events removed by retention cleanup",
		}),
		OutboxProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "processing_duration_seconds",
			Help:      "Time spent processing one batch of outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxEventLag: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "event_lag_seconds",
			Help:      "Time between event creation and publication",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"event_type"}),
		OutboxRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

// NewTestMetrics returns metrics bound to a private registry.
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry(), "care")
}
