// Package metrics defines the prometheus metrics for the ask311 server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ask311_build_info",
			Help: "Build information of the ask311 server",
		},
		[]string{"version", "commit", "date"},
	)

	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ask311_chat_requests_total",
			Help: "Chat requests by outcome (ok, degraded, invalid)",
		},
		[]string{"outcome"},
	)

	ChatRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ask311_chat_request_duration_seconds",
			Help:    "End-to-end duration of chat requests",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	SQLRepairsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ask311_sql_repairs_total",
			Help: "SQL repair attempts consumed across all requests",
		},
	)

	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ask311_queries_total",
			Help: "SQL queries executed against DuckDB by status",
		},
		[]string{"status"},
	)
)
