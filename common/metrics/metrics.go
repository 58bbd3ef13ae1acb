package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics contains HTTP-related Prometheus metrics
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// CartMetrics contains cart/reservation business metrics
type CartMetrics struct {
	ReservationsTotal    prometheus.Counter
	ReservationsRejected prometheus.Counter
	UnitsReleased        prometheus.Counter
	CartsCommitted       prometheus.Counter
	CartsAbandoned       prometheus.Counter
	DriftDetected        prometheus.Counter
	DriftRepaired        prometheus.Counter
}

// NewHTTPMetrics creates HTTP metrics for a service
func NewHTTPMetrics(serviceName string) *HTTPMetrics {
	return &HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    serviceName + "_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// NewCartMetrics creates the reservation business metrics
func NewCartMetrics(serviceName string) *CartMetrics {
	return &CartMetrics{
		ReservationsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_reservations_total",
				Help: "Total number of successful stock reservations",
			},
		),
		ReservationsRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_reservations_rejected_total",
				Help: "Total number of reservations rejected for insufficient stock",
			},
		),
		UnitsReleased: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_units_released_total",
				Help: "Total units of stock returned by quantity decreases",
			},
		),
		CartsCommitted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_carts_committed_total",
				Help: "Total number of carts committed by checkout",
			},
		),
		CartsAbandoned: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_carts_abandoned_total",
				Help: "Total number of carts released by expiry/abandon",
			},
		),
		DriftDetected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_stock_drift_detected_total",
				Help: "Total number of ledger/cart discrepancies detected",
			},
		),
		DriftRepaired: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_stock_drift_repaired_total",
				Help: "Total number of discrepancies repaired",
			},
		),
	}
}

// RecordHTTPRequest records an HTTP request metric
func (m *HTTPMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
