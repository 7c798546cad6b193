// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_processed_total",
			Help: "Total number of updated records processed per pass",
		},
		[]string{"record_kind"},
	)

	SyncRecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_skipped_total",
			Help: "Total number of records skipped by business rules",
		},
		[]string{"record_kind", "reason"},
	)

	SyncRecordsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_failed_total",
			Help: "Total number of records that failed to sync",
		},
		[]string{"record_kind", "error_code"},
	)

	SyncPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "sync_pass_duration_seconds",
			Help: "Duration of a full sync pass in seconds",
		},
		[]string{"record_kind"},
	)

	SyncPassesActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_passes_active",
			Help: "Number of sync passes currently running",
		},
		[]string{"record_kind"},
	)

	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Total number of inbound webhook requests",
		},
		[]string{"endpoint", "status"},
	)
)
