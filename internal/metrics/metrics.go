// Package metrics holds the Prometheus collectors shared by the api and
// ledger packages. Everything registers on the default registry and is served
// by promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookNotifications counts processed webhook deliveries by terminal
	// outcome: credited, duplicate, unresolved, ignored, failed.
	WebhookNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deposits_webhook_notifications_total",
		Help: "Webhook notifications processed, labeled by terminal outcome",
	}, []string{"outcome"})

	// SignatureRejects counts deliveries dropped for a bad or missing
	// signature — each one is a potential tampering attempt.
	SignatureRejects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deposits_webhook_signature_rejects_total",
		Help: "Webhook deliveries rejected for an invalid signature",
	})

	// FallbackBalanceWrites counts credits applied through the non-atomic
	// read-then-write path. Any non-zero value means the store is running
	// without its atomic increment primitive — alert on this.
	FallbackBalanceWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deposits_fallback_balance_writes_total",
		Help: "Balance updates applied via the non-atomic fallback path",
	})
)
