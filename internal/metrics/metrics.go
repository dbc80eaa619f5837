package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the storefront.
type Metrics struct {
	CartAdds           *prometheus.CounterVec
	Checkouts          *prometheus.CounterVec
	OrdersPlaced       *prometheus.CounterVec
	StorageErrors      *prometheus.CounterVec
	SearchesRecorded   prometheus.Counter
	Visits             *prometheus.CounterVec
	NarrationRequests  *prometheus.CounterVec
	NarrationLatency   *prometheus.HistogramVec
	HTTPRequests       *prometheus.CounterVec
	WAOutgoingMessages *prometheus.CounterVec
	Errors             *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
// The namespace of the first call wins.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			CartAdds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cart_adds_total",
				Help:      "Products added to the cart, by country.",
			}, []string{"country"}),
			Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkouts_total",
				Help:      "Checkout submissions by outcome.",
			}, []string{"outcome"}),
			OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_placed_total",
				Help:      "Orders recorded, by payment method and currency.",
			}, []string{"method", "currency"}),
			StorageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Persisted store failures by table and operation.",
			}, []string{"table", "op"}),
			SearchesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_terms_recorded_total",
				Help:      "Debounced search terms committed to search stats.",
			}),
			Visits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "visits_total",
				Help:      "Storefront visits by referral source.",
			}, []string{"source"}),
			NarrationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "narration_requests_total",
				Help:      "Text-to-speech requests by outcome.",
			}, []string{"status"}),
			NarrationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "narration_request_duration_seconds",
				Help:      "Latency distribution for text-to-speech calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"status"}),
			HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route pattern and status code.",
			}, []string{"route", "status"}),
			WAOutgoingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wa_outgoing_messages_total",
				Help:      "Total WhatsApp order alerts sent to the operator.",
			}, []string{"type"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.CartAdds,
			metricsInstance.Checkouts,
			metricsInstance.OrdersPlaced,
			metricsInstance.StorageErrors,
			metricsInstance.SearchesRecorded,
			metricsInstance.Visits,
			metricsInstance.NarrationRequests,
			metricsInstance.NarrationLatency,
			metricsInstance.HTTPRequests,
			metricsInstance.WAOutgoingMessages,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
