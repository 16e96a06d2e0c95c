// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package uipath

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the Orchestrator client
var (
	promClientRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uipath_client_requests_total",
			Help: "Total number of Orchestrator API requests",
		},
		[]string{"method", "status"},
	)
	promClientDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uipath_client_request_duration_milliseconds",
			Help:    "Orchestrator API request duration in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"method"},
	)
	promClientRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "uipath_client_retries_total",
			Help: "Total number of retried Orchestrator API attempts",
		},
	)
	promTokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uipath_token_refreshes_total",
			Help: "Total number of bearer token acquisitions",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		promClientRequests,
		promClientDuration,
		promClientRetries,
		promTokenRefreshes,
	)
}
