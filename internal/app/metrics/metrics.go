package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	ListsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bulk_payment",
			Subsystem: "registry",
			Name:      "lists_submitted_total",
			Help:      "Total number of payment lists admitted.",
		},
	)

	ListsApproved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulk_payment",
			Subsystem: "approval",
			Name:      "lists_approved_total",
			Help:      "Total number of payment lists approved, by funding path.",
		},
		[]string{"path"},
	)

	StoragePurchases = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bulk_payment",
			Subsystem: "credits",
			Name:      "storage_purchases_total",
			Help:      "Total number of storage credit purchases.",
		},
	)

	// CreditBalance tracks per-account storage credit. Values above 2^53
	// lose precision; the gauge is for dashboards, the ledger stays exact.
	CreditBalance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "bulk_payment",
			Subsystem: "credits",
			Name:      "balance",
			Help:      "Current storage credit balance per account.",
		},
		[]string{"account"},
	)

	PayoutsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulk_payment",
			Subsystem: "payout",
			Name:      "payments_processed_total",
			Help:      "Total number of payments settled, by outcome.",
		},
		[]string{"outcome"},
	)

	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bulk_payment",
			Subsystem: "payout",
			Name:      "batch_duration_seconds",
			Help:      "Duration of payout batch executions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulk_payment",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	Registry.MustRegister(
		ListsSubmitted,
		ListsApproved,
		StoragePurchases,
		CreditBalance,
		PayoutsProcessed,
		BatchDuration,
		httpRequests,
	)
}

// Handler serves the Prometheus scrape endpoint for the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one handled HTTP request.
func RecordHTTPRequest(method, path, status string) {
	httpRequests.WithLabelValues(method, path, status).Inc()
}
