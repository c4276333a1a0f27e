package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	Checkouts         *prometheus.CounterVec
	CheckoutDuration  prometheus.Histogram
	StockMovements    *prometheus.CounterVec
	ExternalCalls     *prometheus.CounterVec
	ActiveConnections prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		Checkouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "benfarm_checkouts_total",
				Help: "Checkout attempts by result",
			},
			[]string{"result"},
		),
		CheckoutDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "benfarm_checkout_duration_seconds",
				Help:    "Duration of the checkout transaction",
				Buckets: prometheus.DefBuckets,
			},
		),
		StockMovements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "benfarm_stock_movements_total",
				Help: "Units moved in or out of stock by reason",
			},
			[]string{"reason"},
		),
		ExternalCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "benfarm_external_calls_total",
				Help: "Calls to third-party APIs by service and result",
			},
			[]string{"service", "result"},
		),
		ActiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "benfarm_websocket_connections",
				Help: "Open chat websocket connections",
			},
		),
	}
	m.registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.Checkouts,
		m.CheckoutDuration,
		m.StockMovements,
		m.ExternalCalls,
		m.ActiveConnections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveExternal counts one third-party call. A nil receiver is a no-op.
func (m *Metrics) ObserveExternal(service string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ExternalCalls.WithLabelValues(service, result).Inc()
}
