// Package metrics declares the prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthDecisionsTotal counts every accept/reject of the admin gateway.
	AuthDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pitchfork",
			Subsystem: "account_admin",
			Name:      "auth_decisions_total",
			Help:      "Admin authentication decisions by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// AccountOperationsTotal counts account service calls by result code.
	AccountOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pitchfork",
			Subsystem: "account_admin",
			Name:      "account_operations_total",
			Help:      "Account service operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pitchfork",
			Subsystem: "account_admin",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pitchfork",
			Subsystem: "account_admin",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
