package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommerceMetrics — метрики движка заказов. Все методы допускают nil-получатель.
type CommerceMetrics struct {
	ordersCreated   prometheus.Counter
	ordersConfirmed prometheus.Counter
	confirmFailures *prometheus.CounterVec

	stateTransitions *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	paymentEvents    *prometheus.CounterVec

	stockRejections  prometheus.Counter
	couponRejections prometheus.Counter

	operationDuration *prometheus.HistogramVec
}

// NewCommerceMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewCommerceMetrics() *CommerceMetrics {
	return NewCommerceMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCommerceMetricsWithRegisterer регистрирует метрики в переданном реестре (тесты).
func NewCommerceMetricsWithRegisterer(registerer prometheus.Registerer) *CommerceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CommerceMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Total number of orders created from carts",
		}),
		ordersConfirmed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_confirmed_total",
			Help: "Total number of orders confirmed with an invoice number",
		}),
		confirmFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_order_confirm_failures_total",
			Help: "Total number of failed order confirmations by reason",
		}, []string{"reason"}),
		stateTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_order_state_transitions_total",
			Help: "Total number of recorded order state changes",
		}, []string{"from", "to"}),
		notifications: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_notifications_total",
			Help: "Total number of state change notifications by kind and result",
		}, []string{"kind", "result"}),
		paymentEvents: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_payment_events_total",
			Help: "Total number of consumed payment events by source and result",
		}, []string{"source", "result"}),
		stockRejections: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_stock_rejections_total",
			Help: "Total number of requests rejected for insufficient stock",
		}),
		couponRejections: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_coupon_rejections_total",
			Help: "Total number of rejected coupon codes",
		}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shop_operation_duration_seconds",
			Help:    "Duration of order workflow operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
	}
}

func (m *CommerceMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *CommerceMetrics) RecordOrderConfirmed() {
	if m == nil {
		return
	}
	m.ordersConfirmed.Inc()
}

// RecordConfirmFailure считает отказ подтверждения: stock, discount, already_confirmed, storage.
func (m *CommerceMetrics) RecordConfirmFailure(reason string) {
	if m == nil {
		return
	}
	m.confirmFailures.WithLabelValues(reason).Inc()
}

func (m *CommerceMetrics) RecordStateTransition(from, to string) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(from, to).Inc()
}

func (m *CommerceMetrics) RecordNotification(kind string, err error) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, resultLabel(err)).Inc()
}

// RecordPaymentEvent: result - applied, duplicate, ignored или error.
func (m *CommerceMetrics) RecordPaymentEvent(source, result string) {
	if m == nil {
		return
	}
	m.paymentEvents.WithLabelValues(source, result).Inc()
}

func (m *CommerceMetrics) RecordStockRejection() {
	if m == nil {
		return
	}
	m.stockRejections.Inc()
}

func (m *CommerceMetrics) RecordCouponRejection() {
	if m == nil {
		return
	}
	m.couponRejections.Inc()
}

// ObserveOperation записывает длительность операции с момента started.
func (m *CommerceMetrics) ObserveOperation(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
