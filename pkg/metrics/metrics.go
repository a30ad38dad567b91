package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Assistant (LLM) call latency in milliseconds.
	AssistantCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_call_latency_ms",
			Help:    "Assistant chat completion call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"status"},
	)

	// HTTP request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// Snapshot persistence latency in seconds.
	SnapshotSaveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_save_duration_seconds",
			Help:    "Snapshot save duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"backend"},
	)

	// Actions applied from assistant replies.
	ActionAppliedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "action_applied_count",
			Help: "Total number of assistant action elements applied",
		},
		[]string{"kind", "outcome"}, // outcome: success, failed
	)

	// Chat sends by outcome.
	ChatRequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_request_count",
			Help: "Total number of chat sends",
		},
		[]string{"outcome"}, // outcome: ok, transport_error, rejected
	)
)

// RecordAssistantCallLatency records one assistant call.
func RecordAssistantCallLatency(status string, duration time.Duration) {
	AssistantCallLatency.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration records one handled HTTP request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordSnapshotSaveDuration records one snapshot write.
func RecordSnapshotSaveDuration(backend string, duration time.Duration) {
	SnapshotSaveDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// IncrementActionApplied counts one applied or failed action element.
func IncrementActionApplied(kind, outcome string) {
	ActionAppliedCount.WithLabelValues(kind, outcome).Inc()
}

// IncrementChatRequest counts one chat send.
func IncrementChatRequest(outcome string) {
	ChatRequestCount.WithLabelValues(outcome).Inc()
}
