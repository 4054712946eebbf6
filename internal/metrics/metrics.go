// Package metrics holds the client's Prometheus collectors. A CLI run is short
// lived, so collectors live in their own Registry and are pushed to a
// Pushgateway at exit instead of being scraped.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every collector in this package.
var Registry = prometheus.NewRegistry()

var (
	// Backend metrics
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aoi_backend_requests_total",
			Help: "Total number of backend requests by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aoi_backend_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Alert metrics
	AlertFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aoi_alert_fetches_total",
			Help: "Total number of alert fetches by outcome",
		},
		[]string{"outcome"},
	)

	AlertFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aoi_alert_fetch_duration_seconds",
			Help:    "Time taken to fetch and resolve the alerts of one AOI",
			Buckets: prometheus.DefBuckets,
		},
	)

	AOIs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aoi_aois",
			Help: "Number of AOIs by status at the last dashboard refresh",
		},
		[]string{"status"},
	)

	// Archive metrics
	ThumbnailsArchivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aoi_thumbnails_archived_total",
			Help: "Total number of thumbnails written to the archive",
		},
	)

	ArchiveBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aoi_archive_bytes_total",
			Help: "Total bytes written to the archive",
		},
	)
)

func init() {
	Registry.MustRegister(BackendRequestsTotal)
	Registry.MustRegister(BackendRequestDuration)
	Registry.MustRegister(AlertFetchesTotal)
	Registry.MustRegister(AlertFetchDuration)
	Registry.MustRegister(AOIs)
	Registry.MustRegister(ThumbnailsArchivedTotal)
	Registry.MustRegister(ArchiveBytesTotal)
}
