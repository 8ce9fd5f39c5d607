package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения label result.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// GatewayMetrics измеряет вызовы внешних шлюзов (оплата, доставка).
type GatewayMetrics struct {
	callDuration *prometheus.HistogramVec
	retries      *prometheus.CounterVec
}

// NewGatewayMetrics создаёт метрики шлюзов в DefaultRegisterer.
func NewGatewayMetrics() *GatewayMetrics {
	return NewGatewayMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewGatewayMetricsWithRegisterer создаёт метрики в переданном registerer.
func NewGatewayMetricsWithRegisterer(registerer prometheus.Registerer) *GatewayMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &GatewayMetrics{
		callDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderflow_gateway_call_duration_seconds",
			Help:    "Duration of gateway calls in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"gateway", "operation", "result"}),
		retries: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderflow_gateway_retries_total",
			Help: "Total number of repeated gateway calls",
		}, []string{"gateway", "operation"}),
	}
}

// ObserveCall записывает длительность вызова шлюза.
func (m *GatewayMetrics) ObserveCall(gateway, operation string, duration time.Duration, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.callDuration.WithLabelValues(gateway, operation, result).Observe(duration.Seconds())
}

// RecordRetry увеличивает счётчик повторных вызовов.
func (m *GatewayMetrics) RecordRetry(gateway, operation string) {
	m.retries.WithLabelValues(gateway, operation).Inc()
}
