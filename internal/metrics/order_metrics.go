package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Шаги оформления заказа для гистограммы длительности.
const (
	StepResolve  = "resolve"
	StepAssemble = "assemble"
	StepReserve  = "reserve"
	StepPersist  = "persist"
	StepMail     = "mail"
	StepNotify   = "notify"
)

// Побочные эффекты, ошибки которых не прерывают оформление.
const (
	SideEffectMail     = "mail"
	SideEffectNotify   = "notify"
	SideEffectTimeline = "timeline"
	SideEffectOutbox   = "outbox"
)

// OrderMetrics содержит метрики жизненного цикла заказа.
// Все методы безопасны для nil-получателя: сервис без метрик просто ничего не пишет.
type OrderMetrics struct {
	ordersCreated      prometheus.Counter
	createFailures     *prometheus.CounterVec
	createDuration     prometheus.Histogram
	stepDuration       *prometheus.HistogramVec
	inFlight           prometheus.Gauge
	statusTransitions  *prometheus.CounterVec
	stockReleases      prometheus.Counter
	sideEffectFailures *prometheus.CounterVec
	notificationsSent  *prometheus.CounterVec
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "encontrar_orders_created_total",
			Help: "Total number of orders created and numbered",
		})),
		createFailures: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "encontrar_order_create_failures_total",
			Help: "Order creation failures by error class",
		}, []string{"reason"})),
		createDuration: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "encontrar_order_create_duration_seconds",
			Help:    "End-to-end order creation latency",
			Buckets: prometheus.DefBuckets,
		})),
		stepDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "encontrar_order_step_duration_seconds",
			Help:    "Duration of individual order creation steps",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"})),
		inFlight: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "encontrar_order_creates_in_flight",
			Help: "Number of order creations currently running",
		})),
		statusTransitions: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "encontrar_order_status_transitions_total",
			Help: "Order status transitions by target status",
		}, []string{"from", "to"})),
		stockReleases: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "encontrar_stock_releases_total",
			Help: "Stock reservations returned to the warehouse",
		})),
		sideEffectFailures: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "encontrar_order_side_effect_failures_total",
			Help: "Best-effort side effects that failed after an order was created",
		}, []string{"kind"})),
		notificationsSent: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "encontrar_notifications_sent_total",
			Help: "Notifications produced by the order fan-out",
		}, []string{"audience"})),
	}
}

// register регистрирует коллектор или возвращает уже зарегистрированный под тем же именем.
func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	err := registerer.Register(collector)
	if err == nil {
		return collector
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			panic(fmt.Sprintf("collector already registered with unexpected type %T", already.ExistingCollector))
		}
		return existing
	}
	panic(fmt.Sprintf("register collector: %v", err))
}

// CreateStarted отмечает начало оформления и возвращает функцию завершения.
func (m *OrderMetrics) CreateStarted() func(err error, reason string) {
	if m == nil {
		return func(error, string) {}
	}
	start := time.Now()
	m.inFlight.Inc()
	return func(err error, reason string) {
		m.inFlight.Dec()
		m.createDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			m.createFailures.WithLabelValues(reason).Inc()
			return
		}
		m.ordersCreated.Inc()
	}
}

// ObserveStep записывает длительность шага оформления.
func (m *OrderMetrics) ObserveStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// RecordStatusTransition учитывает смену статуса заказа.
func (m *OrderMetrics) RecordStatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

// RecordStockRelease учитывает возврат резерва.
func (m *OrderMetrics) RecordStockRelease() {
	if m == nil {
		return
	}
	m.stockReleases.Inc()
}

// RecordSideEffectFailure учитывает неудачный побочный эффект.
func (m *OrderMetrics) RecordSideEffectFailure(kind string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(kind).Inc()
}

// RecordNotification учитывает отправленное уведомление (audience: role или shop_owner).
func (m *OrderMetrics) RecordNotification(audience string) {
	if m == nil {
		return
	}
	m.notificationsSent.WithLabelValues(audience).Inc()
}
