package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GroupsBuilt counts groups emitted by the group builders, by table shape.
	GroupsBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvgroups_groups_built_total",
			Help: "Total number of groups built from relation tables",
		},
		[]string{"table"},
	)

	// ComparisonRecords counts comparison rows by category name.
	ComparisonRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvgroups_comparison_records_total",
			Help: "Total number of comparison rows by category",
		},
		[]string{"category"},
	)

	// GeometryFetches counts geometry lookups by outcome (ok, failed).
	GeometryFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvgroups_geometry_fetches_total",
			Help: "Total number of object geometry lookups",
		},
		[]string{"outcome"},
	)

	// ReviewResults counts validation judgements recorded by the review API.
	ReviewResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvgroups_review_results_total",
			Help: "Total number of group validations recorded",
		},
		[]string{"valid"},
	)

	// HTTPRequestsTotal counts review API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvgroups_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration measures review API response time.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pvgroups_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
