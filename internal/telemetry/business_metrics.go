package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for checkout and payment
// observability.
type BusinessMetrics struct {
	// Checkout
	CheckoutStarted   *prometheus.CounterVec
	CheckoutCompleted *prometheus.CounterVec
	CheckoutFailed    *prometheus.CounterVec
	StockConflicts    prometheus.Counter

	// Orders
	OrdersCreated   *prometheus.CounterVec
	OrderValue      *prometheus.HistogramVec
	OrderItemCount  *prometheus.HistogramVec
	OrdersCancelled prometheus.Counter
	OrdersConfirmed prometheus.Counter

	// Provider callbacks
	CallbackReceived  *prometheus.CounterVec
	CallbackProcessed *prometheus.CounterVec
	CallbackFailed    *prometheus.CounterVec
	CallbackLatency   *prometheus.HistogramVec

	// Payment gateways
	GatewayLatency      *prometheus.HistogramVec
	GatewayBreakerState *prometheus.GaugeVec

	// Order events
	EventsPublished *prometheus.CounterVec
}

// NewBusinessMetrics creates business metrics and registers them with reg.
// A nil reg uses the default registry.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "mercato"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	subsystem := "business"

	return &BusinessMetrics{
		// =======================================================================
		// Checkout
		// =======================================================================
		CheckoutStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_started_total",
				Help:      "Total checkout requests",
			},
			[]string{"payment_method"},
		),
		CheckoutCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_completed_total",
				Help:      "Checkouts that created a COD order or a provider payment request",
			},
			[]string{"payment_method"},
		),
		CheckoutFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_failed_total",
				Help:      "Checkouts rejected or failed, by error code",
			},
			[]string{"payment_method", "code"},
		),
		StockConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stock_conflicts_total",
				Help:      "Checkouts or callbacks refused for insufficient stock",
			},
		),

		// =======================================================================
		// Orders
		// =======================================================================
		OrdersCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_created_total",
				Help:      "Total orders created",
			},
			[]string{"payment_method"},
		),
		OrderValue: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value_vnd",
				Help:      "Order total in VND",
				Buckets:   []float64{50_000, 100_000, 250_000, 500_000, 1_000_000, 2_500_000, 5_000_000, 10_000_000},
			},
			[]string{"payment_method"},
		),
		OrderItemCount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_item_count",
				Help:      "Units per order",
				Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
			},
			[]string{"payment_method"},
		),
		OrdersCancelled: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_cancelled_total",
				Help:      "Orders cancelled by their owner",
			},
		),
		OrdersConfirmed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_confirmed_total",
				Help:      "Orders confirmed as delivered by their owner",
			},
		),

		// =======================================================================
		// Provider callbacks
		// =======================================================================
		CallbackReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_callback_received_total",
				Help:      "Provider callbacks received",
			},
			[]string{"provider"},
		),
		CallbackProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_callback_processed_total",
				Help:      "Provider callbacks handled, by outcome",
			},
			[]string{"provider", "outcome"}, // outcome: created, duplicate, rejected, declined
		),
		CallbackFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_callback_failed_total",
				Help:      "Verified callbacks that could not be reconciled into an order",
			},
			[]string{"provider", "code"},
		),
		CallbackLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_callback_duration_seconds",
				Help:      "Callback handling duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),

		// =======================================================================
		// Payment gateways
		// =======================================================================
		GatewayLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_gateway_duration_seconds",
				Help:      "Payment provider create-request duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider", "outcome"}, // outcome: success, failure, breaker_open
		),
		GatewayBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_gateway_breaker_state",
				Help:      "Circuit breaker state per provider (0=closed, 1=open, 2=half-open)",
			},
			[]string{"provider"},
		),

		// =======================================================================
		// Order events
		// =======================================================================
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_events_published_total",
				Help:      "Order events published to the message bus",
			},
			[]string{"subject", "result"},
		),
	}
}

// Global instance for easy access from handlers and services.
// Nil until InitBusinessMetrics runs; callers check before recording.
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance on
// the default registry.
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace, nil)
	return Business
}

// The recorders below are safe on a nil receiver so services can record
// unconditionally through telemetry.Business.

// RecordOrderCreated counts a new order and observes its value and size.
func (m *BusinessMetrics) RecordOrderCreated(method string, totalPrice int64, units int) {
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(method).Inc()
	m.OrderValue.WithLabelValues(method).Observe(float64(totalPrice))
	m.OrderItemCount.WithLabelValues(method).Observe(float64(units))
}

// RecordCheckout counts a checkout attempt and its result. code is empty on
// success.
func (m *BusinessMetrics) RecordCheckout(method, code string) {
	if m == nil {
		return
	}
	m.CheckoutStarted.WithLabelValues(method).Inc()
	if code == "" {
		m.CheckoutCompleted.WithLabelValues(method).Inc()
		return
	}
	m.CheckoutFailed.WithLabelValues(method, code).Inc()
}

// RecordStockConflict counts a refused debit.
func (m *BusinessMetrics) RecordStockConflict() {
	if m == nil {
		return
	}
	m.StockConflicts.Inc()
}

// RecordCancelled counts an owner cancellation.
func (m *BusinessMetrics) RecordCancelled() {
	if m == nil {
		return
	}
	m.OrdersCancelled.Inc()
}

// RecordConfirmed counts an owner delivery confirmation.
func (m *BusinessMetrics) RecordConfirmed() {
	if m == nil {
		return
	}
	m.OrdersConfirmed.Inc()
}

// RecordCallback counts a callback outcome for provider.
func (m *BusinessMetrics) RecordCallback(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.CallbackReceived.WithLabelValues(provider).Inc()
	m.CallbackProcessed.WithLabelValues(provider, outcome).Inc()
	m.CallbackLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordCallbackFailure counts a verified callback that produced no order.
func (m *BusinessMetrics) RecordCallbackFailure(provider, code string) {
	if m == nil {
		return
	}
	m.CallbackFailed.WithLabelValues(provider, code).Inc()
}

// RecordGatewayCall observes a provider create-request.
func (m *BusinessMetrics) RecordGatewayCall(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.GatewayLatency.WithLabelValues(provider, outcome).Observe(seconds)
}

// SetBreakerState records the breaker state for provider.
func (m *BusinessMetrics) SetBreakerState(provider string, state float64) {
	if m == nil {
		return
	}
	m.GatewayBreakerState.WithLabelValues(provider).Set(state)
}

// RecordEvent counts an event publish attempt.
func (m *BusinessMetrics) RecordEvent(subject, result string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(subject, result).Inc()
}
