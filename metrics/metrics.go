// Package metrics holds the Prometheus collectors for the booking
// engine. Register is safe to call more than once.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking_engine",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status class.",
		},
		[]string{"endpoint", "status"},
	)

	paymentsRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "booking_engine",
			Name:      "payments_registered_total",
			Help:      "Ledger entries appended.",
		},
	)

	documentsRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking_engine",
			Name:      "documents_rendered_total",
			Help:      "Documents rendered by kind.",
		},
		[]string{"kind"},
	)

	notificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "booking_engine",
			Name:      "notification_failures_total",
			Help:      "Email deliveries that exhausted their retries.",
		},
	)
)

// Register registers all collectors with the default registry.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, paymentsRegistered, documentsRendered, notificationFailures)
	})
}

// IncHTTP counts one request for an endpoint label and status class.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

// IncPayment counts one appended ledger entry.
func IncPayment() {
	paymentsRegistered.Inc()
}

// IncDocument counts one rendered document ("invoice" or "monthly_summary").
func IncDocument(kind string) {
	documentsRendered.WithLabelValues(kind).Inc()
}

// IncNotificationFailure counts one delivery that gave up.
func IncNotificationFailure() {
	notificationFailures.Inc()
}
