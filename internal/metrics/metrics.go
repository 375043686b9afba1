// Package metrics registers the Prometheus collectors shared by the HTTP
// middleware and the processing service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rowforge_http_requests_total",
			Help: "Total HTTP requests served",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rowforge_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// JobsTotal counts jobs reaching each status.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rowforge_jobs_total",
			Help: "Processing jobs by status reached",
		},
		[]string{"status"},
	)

	// AccessChecksTotal counts gate outcomes.
	AccessChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rowforge_access_checks_total",
			Help: "Trial access gate checks by outcome",
		},
		[]string{"outcome"},
	)
)
