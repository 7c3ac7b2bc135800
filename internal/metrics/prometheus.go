// Package metrics exports the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRuns counts finished sync runs by result ("success" or an error kind).
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "health_sync_runs_total",
			Help: "Total number of sync runs by result",
		},
		[]string{"result"},
	)

	// SyncDuration is the wall time of a sync run.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "health_sync_duration_seconds",
			Help:    "Sync run duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// UploadedRows counts rows committed to the remote store per table.
	UploadedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "health_uploaded_rows_total",
			Help: "Rows committed to the remote store",
		},
		[]string{"table"},
	)

	// Notifications counts dispatch outcomes per alert id.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "health_notifications_total",
			Help: "Notification dispatch outcomes",
		},
		[]string{"alert_id", "outcome"},
	)

	// ImportedReadings counts importer results.
	ImportedReadings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "health_import_readings_total",
			Help: "Blood pressure readings parsed by the importer",
		},
		[]string{"result"},
	)

	// InsightsBySeverity is the latest evaluation's insight count per severity.
	InsightsBySeverity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "health_insights",
			Help: "Insights produced by the latest evaluation",
		},
		[]string{"severity"},
	)
)
