package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics tracks request volume/latency/errors plus store shape
// gauges refreshed on every /stats call.
type serverMetrics struct {
	RequestsTotal     prometheus.Counter
	RequestDuration   prometheus.Histogram
	ActiveConnections prometheus.Gauge
	ErrorsTotal       prometheus.Counter
	StoreOperations   *prometheus.CounterVec
	RecordCount       prometheus.Gauge
	IndexedAttrs      prometheus.Gauge
}

func newServerMetrics() *serverMetrics {
	return &serverMetrics{
		RequestsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storecli_http_requests_total",
			Help: "Total HTTP requests handled by the storecli facade.",
		}),
		RequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "storecli_http_request_duration_seconds",
			Help: "HTTP request latency of the storecli facade.",
		}),
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "storecli_http_active_connections",
			Help: "In-flight HTTP requests.",
		}),
		ErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storecli_http_errors_total",
			Help: "Total 4xx/5xx responses sent by the storecli facade's handlers and middleware.",
		}),
		StoreOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "storecli_store_operations_total",
			Help: "Record store operations by kind and outcome.",
		}, []string{"operation", "status"}),
		RecordCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "storecli_store_records",
			Help: "Current record count.",
		}),
		IndexedAttrs: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "storecli_store_indexed_attrs",
			Help: "Current number of distinct indexed attributes.",
		}),
	}
}

func (m *serverMetrics) observeOp(op string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreOperations.WithLabelValues(op, status).Inc()
}
