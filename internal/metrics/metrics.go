// Package metrics provides Prometheus metrics for the banyan service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MergeExecutionsTotal tracks merge executions by outcome
	MergeExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "banyan",
			Subsystem: "merge",
			Name:      "executions_total",
			Help:      "Total number of merge executions by outcome",
		},
		[]string{"outcome"},
	)

	// MergeExecutionDuration tracks merge execution duration in seconds
	MergeExecutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "banyan",
			Subsystem: "merge",
			Name:      "execution_duration_seconds",
			Help:      "Duration of merge executions in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// MergeAnalyzesTotal tracks merge analysis runs
	MergeAnalyzesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "banyan",
			Subsystem: "merge",
			Name:      "analyzes_total",
			Help:      "Total number of merge analysis runs",
		},
	)

	// LinkRequestsTotal tracks tree link requests by lifecycle event
	LinkRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "banyan",
			Subsystem: "link",
			Name:      "requests_total",
			Help:      "Total number of tree link lifecycle events",
		},
		[]string{"event"},
	)

	// RepairDefectsTotal tracks integrity defects found during repair
	RepairDefectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "banyan",
			Subsystem: "repair",
			Name:      "defects_total",
			Help:      "Total number of integrity defects found during repair",
		},
		[]string{"defect_type"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "banyan",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"event_type", "status"},
	)

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "banyan",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	// GraphMirrorSyncsTotal tracks graph mirror sync attempts
	GraphMirrorSyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "banyan",
			Subsystem: "graph",
			Name:      "mirror_syncs_total",
			Help:      "Total number of graph mirror sync attempts",
		},
		[]string{"status"},
	)
)

// RecordMergeExecution records a merge execution metric
func RecordMergeExecution(outcome string, durationSeconds float64) {
	MergeExecutionsTotal.WithLabelValues(outcome).Inc()
	MergeExecutionDuration.Observe(durationSeconds)
}

// RecordLinkRequest records a tree link lifecycle event
func RecordLinkRequest(event string) {
	LinkRequestsTotal.WithLabelValues(event).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(eventType, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(eventType, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}

// RecordMirrorSync records a graph mirror sync attempt
func RecordMirrorSync(status string) {
	GraphMirrorSyncsTotal.WithLabelValues(status).Inc()
}
