package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decisions counts approval decisions by platform and outcome.
var Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "signup_decisions_total",
	Help: "Approval decisions processed, by platform and outcome.",
}, []string{"platform", "outcome"})

// PlatformRequestDuration observes outbound partner API call latency.
var PlatformRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "platform_request_duration_seconds",
	Help:    "Duration of outbound partner platform API calls.",
	Buckets: prometheus.DefBuckets,
}, []string{"platform", "operation"})

// PlatformRequestErrors counts failed outbound partner API calls.
var PlatformRequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "platform_request_errors_total",
	Help: "Failed outbound partner platform API calls.",
}, []string{"platform", "operation"})

// SignupsSubmitted counts public signup submissions.
var SignupsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "signups_submitted_total",
	Help: "Public signup applications received.",
})
