package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики жизненного цикла заказов.
type OrderMetrics struct {
	// Счётчики переходов
	ordersCreated   prometheus.Counter
	ordersPaid      prometheus.Counter
	ordersShipped   prometheus.Counter
	ordersCancelled prometheus.Counter
	paymentFailures prometheus.Counter

	checkoutDuration prometheus.Histogram

	// Счётчики событий timeline/outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	checkoutsInFlight prometheus.Gauge
}

// NewOrderMetrics создаёт метрики заказов в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики в переданном registerer (для изолированных тестов).
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersPaid: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_orders_paid_total",
			Help: "Total number of orders paid",
		}),
		ordersShipped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_orders_shipped_total",
			Help: "Total number of orders shipped",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		paymentFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_payment_failures_total",
			Help: "Total number of checkouts that ended without a successful payment",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orderflow_checkout_duration_seconds",
			Help:    "Duration of checkout operations in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		checkoutsInFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderflow_checkouts_in_flight",
			Help: "Number of checkouts currently waiting for the payment gateway",
		}),
	}
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderPaid увеличивает счётчик оплаченных заказов.
func (m *OrderMetrics) RecordOrderPaid() {
	m.ordersPaid.Inc()
}

// RecordOrderShipped увеличивает счётчик отгруженных заказов.
func (m *OrderMetrics) RecordOrderShipped() {
	m.ordersShipped.Inc()
}

// RecordOrderCancelled увеличивает счётчик отменённых заказов.
func (m *OrderMetrics) RecordOrderCancelled() {
	m.ordersCancelled.Inc()
}

// RecordPaymentFailed увеличивает счётчик неудачных оплат.
func (m *OrderMetrics) RecordPaymentFailed() {
	m.paymentFailures.Inc()
}

// CheckoutStarted отмечает начало оплаты и возвращает функцию завершения.
func (m *OrderMetrics) CheckoutStarted() func() {
	start := time.Now()
	m.checkoutsInFlight.Inc()
	return func() {
		m.checkoutsInFlight.Dec()
		m.checkoutDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
