package offload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UploadsTotal counts primary uploads by outcome and failure reason.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offloader_uploads_total",
			Help: "Total number of attachment upload runs",
		},
		[]string{"status", "reason"},
	)

	// VariantUploadsTotal counts variant uploads by outcome.
	VariantUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offloader_variant_uploads_total",
			Help: "Total number of attachment variant uploads",
		},
		[]string{"status"},
	)

	// UploadDuration observes the wall time of a full upload run.
	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "offloader_upload_duration_seconds",
			Help:    "Duration of attachment upload runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SyncRunsTotal counts batch sync invocations.
	SyncRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offloader_sync_runs_total",
			Help: "Total number of batch sync runs",
		},
	)
)
