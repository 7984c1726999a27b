// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SceneBuckets counts served reports per resolved scene bucket.
	SceneBuckets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atmoscheck_scene_buckets_total",
			Help: "Reports served per scene bucket",
		},
		[]string{"bucket"},
	)

	// UpstreamRequests counts OpenWeatherMap calls by upstream and outcome
	// (ok, error, open).
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atmoscheck_upstream_requests_total",
			Help: "Upstream API requests by outcome",
		},
		[]string{"upstream", "outcome"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atmoscheck_cache_lookups_total",
			Help: "Report cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)
