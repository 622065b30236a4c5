// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripsnap_image_resolutions_total",
			Help: "Image references resolved, by reference kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripsnap_image_cache_hits_total",
		Help: "Resolutions served from the resolution cache.",
	})

	SharedResolutionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripsnap_image_shared_resolutions_total",
		Help: "Resolutions that joined an in-flight computation for the same reference.",
	})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tripsnap_image_batch_duration_seconds",
		Help:    "Latency of batch resolutions.",
		Buckets: prometheus.DefBuckets,
	})

	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripsnap_files_api_requests_total",
			Help: "Requests sent to the files API, by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tripsnap_files_api_request_duration_seconds",
			Help:    "Latency of files API requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
