// Package metrics provides Prometheus metrics for the custodia service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AlertScansTotal tracks alert engine scans
	AlertScansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "custodia",
			Subsystem: "alerts",
			Name:      "scans_total",
			Help:      "Total number of alert engine scans",
		},
	)

	// AlertsCreatedTotal tracks alerts created by scans
	AlertsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "custodia",
			Subsystem: "alerts",
			Name:      "created_total",
			Help:      "Total number of alerts created by scans",
		},
	)

	// AlertScanFailuresTotal tracks failed passes and creations within scans
	AlertScanFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "custodia",
			Subsystem: "alerts",
			Name:      "scan_failures_total",
			Help:      "Total number of failures during alert scans",
		},
	)

	// AlertScanDuration tracks alert scan duration in seconds
	AlertScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "custodia",
			Subsystem: "alerts",
			Name:      "scan_duration_seconds",
			Help:      "Duration of alert engine scans in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "custodia",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "custodia",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	// ScanLockContention tracks scan cycles skipped because another
	// instance held the lock
	ScanLockContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "custodia",
			Subsystem: "scheduler",
			Name:      "lock_contention_total",
			Help:      "Total number of scan cycles skipped due to lock contention",
		},
	)
)

// RecordAlertScan records the outcome of one alert engine scan
func RecordAlertScan(created, failures int, durationSeconds float64) {
	AlertScansTotal.Inc()
	AlertsCreatedTotal.Add(float64(created))
	AlertScanFailuresTotal.Add(float64(failures))
	AlertScanDuration.Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}

// RecordScanLockContention records a scan cycle skipped because another
// instance was scanning
func RecordScanLockContention() {
	ScanLockContention.Inc()
}
