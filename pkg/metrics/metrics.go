// Package metrics provides Prometheus metrics for the iris service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal tracks decisions by kind and whether they were forced
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iris",
			Subsystem: "disambiguation",
			Name:      "decisions_total",
			Help:      "Total number of disambiguation decisions by kind",
		},
		[]string{"decision", "forced"},
	)

	// DecideDuration tracks end-to-end decide latency
	DecideDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "iris",
			Subsystem: "disambiguation",
			Name:      "decide_duration_seconds",
			Help:      "Duration of decide operations in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// SignalFailuresTotal tracks signals replaced by the neutral value
	SignalFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iris",
			Subsystem: "disambiguation",
			Name:      "signal_failures_total",
			Help:      "Total number of signals that were unavailable and substituted",
		},
		[]string{"signal"},
	)

	// AuditFailuresTotal tracks audit sink failures by target
	AuditFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iris",
			Subsystem: "audit",
			Name:      "failures_total",
			Help:      "Total number of decision records that could not be written",
		},
		[]string{"target"},
	)

	// IndexRebuildsTotal tracks index rebuilds by status
	IndexRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iris",
			Subsystem: "index",
			Name:      "rebuilds_total",
			Help:      "Total number of index rebuilds by status",
		},
		[]string{"status"},
	)

	// IndexSize tracks the number of entities in the live snapshot
	IndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "iris",
			Subsystem: "index",
			Name:      "entities",
			Help:      "Number of entities in the live index snapshot",
		},
	)

	// IndexUnavailableTotal tracks reads rejected by the index guard
	IndexUnavailableTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "iris",
			Subsystem: "index",
			Name:      "unavailable_total",
			Help:      "Total number of index reads that could not obtain a permit",
		},
	)

	// EmbeddingCacheTotal tracks embedding cache lookups by tier and result
	EmbeddingCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iris",
			Subsystem: "embedding",
			Name:      "cache_lookups_total",
			Help:      "Total number of embedding cache lookups",
		},
		[]string{"tier", "result"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iris",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// DatabaseQueryDuration tracks database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "iris",
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// RecordDecision records a decision metric
func RecordDecision(kind string, forced bool, durationSeconds float64) {
	f := "false"
	if forced {
		f = "true"
	}
	DecisionsTotal.WithLabelValues(kind, f).Inc()
	DecideDuration.Observe(durationSeconds)
}

// RecordSignalFailure records a substituted signal
func RecordSignalFailure(signal string) {
	SignalFailuresTotal.WithLabelValues(signal).Inc()
}

// RecordAuditFailure records a failed audit write
func RecordAuditFailure(target string) {
	AuditFailuresTotal.WithLabelValues(target).Inc()
}

// RecordIndexRebuild records an index rebuild and the resulting size
func RecordIndexRebuild(status string, size int) {
	IndexRebuildsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		IndexSize.Set(float64(size))
	}
}

// RecordCacheLookup records an embedding cache hit or miss
func RecordCacheLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	EmbeddingCacheTotal.WithLabelValues(tier, result).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
