// README: Prometheus collectors for ride requests, matches, lifecycle transitions, routing and HTTP.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "carpool"

var (
	RideRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ride_requests_total", Help: "Ride requests by outcome"},
		[]string{"outcome"},
	)
	MatchClaimConflicts = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "match_claim_conflicts_total", Help: "Candidate rides claimed by a concurrent request"})
	MatchLatency        = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "match_latency_seconds", Help: "Ride request latency including route estimation"})

	GroupTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "group_transitions_total", Help: "Group lifecycle transitions"},
		[]string{"to"},
	)

	RouteEstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "route_estimates_total", Help: "Route estimates by source"},
		[]string{"source"},
	)
	RouteProviderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "route_provider_latency_seconds",
		Help:      "Routing provider call latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_evictions_total", Help: "Expired cache entries removed by the sweeper"},
		[]string{"cache"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
