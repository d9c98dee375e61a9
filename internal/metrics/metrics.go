// Package metrics exposes the Prometheus instrumentation for the token
// endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokenRequests counts token endpoint requests by grant type and
	// outcome. The outcome is "success" or the OAuth2 error code.
	TokenRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_requests_total",
		Help: "Token endpoint requests by grant type and outcome.",
	}, []string{"grant_type", "outcome"})

	// TokenRequestDuration observes end-to-end token request latency.
	TokenRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "token_request_duration_seconds",
		Help:    "Token endpoint request latency.",
		Buckets: prometheus.DefBuckets,
	})
)
