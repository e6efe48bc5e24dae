package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mybizz_webhooks_received_total",
			Help: "Paddle webhooks received by event type and processing outcome",
		},
		[]string{"event_type", "outcome"},
	)

	SignatureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mybizz_signature_failures_total",
			Help: "Rejected webhook signatures by reason",
		},
		[]string{"reason"},
	)

	HubForwards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mybizz_hub_forwards_total",
			Help: "Hub forward attempts by outcome",
		},
		[]string{"outcome"},
	)

	Reprocessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mybizz_webhook_reprocess_total",
			Help: "Webhook reprocess attempts by trigger and resulting status",
		},
		[]string{"trigger", "outcome"},
	)

	RetryScheduleSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mybizz_retry_schedule_size",
			Help: "Webhook log rows currently waiting in the retry schedule",
		},
	)
)
