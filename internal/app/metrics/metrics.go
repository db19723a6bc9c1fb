// Package metrics exposes Prometheus collectors for the pack opening flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	mintSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packmint",
			Subsystem: "flow",
			Name:      "mint_submissions_total",
			Help:      "Total number of mint submissions by outcome.",
		},
		[]string{"status"},
	)

	approvals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packmint",
			Subsystem: "flow",
			Name:      "approvals_total",
			Help:      "Total number of spending authorizations by outcome.",
		},
		[]string{"status"},
	)

	connectorAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "packmint",
			Subsystem: "wallet",
			Name:      "connector_attempts_total",
			Help:      "Total number of wallet connection attempts.",
		},
	)

	gatewayFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "packmint",
			Subsystem: "gateway",
			Name:      "fallbacks_total",
			Help:      "Total number of content fetches that fell through to another mirror.",
		},
	)

	feedBackfills = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "packmint",
			Subsystem: "feed",
			Name:      "backfilled_items_total",
			Help:      "Total number of community feed entries synthesized from supply.",
		},
	)
)

func init() {
	Registry.MustRegister(
		mintSubmissions,
		approvals,
		connectorAttempts,
		gatewayFallbacks,
		feedBackfills,
	)
}

// MintSubmission records the outcome of a mint submission.
func MintSubmission(status string) {
	mintSubmissions.WithLabelValues(status).Inc()
}

// Approval records the outcome of a spending authorization.
func Approval(status string) {
	approvals.WithLabelValues(status).Inc()
}

// ConnectorAttempt records one wallet connection attempt.
func ConnectorAttempt() {
	connectorAttempts.Inc()
}

// GatewayFallback records one fall-through to the next content mirror.
func GatewayFallback() {
	gatewayFallbacks.Inc()
}

// FeedBackfill records synthesized community feed entries.
func FeedBackfill(n int) {
	feedBackfills.Add(float64(n))
}

// Handler exposes the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
