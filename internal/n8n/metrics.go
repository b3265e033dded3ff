package n8n

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copydesk",
			Name:      "webhook_requests_total",
			Help:      "Webhook calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	webhookDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copydesk",
			Name:      "webhook_request_duration_seconds",
			Help:      "Latency of webhook calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op"},
	)
)
