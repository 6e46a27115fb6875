package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, registry *prometheus.Registry, name string) []*dto.Metric {
	t.Helper()

	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()
		}
	}
	return nil
}

func TestCreateStarted_SuccessAndFailure(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(registry)

	m.CreateStarted()(nil, "")
	m.CreateStarted()(errors.New("boom"), "conflict")
	m.CreateStarted()(errors.New("boom"), "conflict")

	created := gather(t, registry, "encontrar_orders_created_total")
	require.Len(t, created, 1)
	assert.Equal(t, 1.0, created[0].GetCounter().GetValue())

	failures := gather(t, registry, "encontrar_order_create_failures_total")
	require.Len(t, failures, 1)
	assert.Equal(t, 2.0, failures[0].GetCounter().GetValue())
	assert.Equal(t, "conflict", failures[0].GetLabel()[0].GetValue())

	inFlight := gather(t, registry, "encontrar_order_creates_in_flight")
	require.Len(t, inFlight, 1)
	assert.Zero(t, inFlight[0].GetGauge().GetValue())

	duration := gather(t, registry, "encontrar_order_create_duration_seconds")
	require.Len(t, duration, 1)
	assert.Equal(t, uint64(3), duration[0].GetHistogram().GetSampleCount())
}

func TestOrderMetrics_Labels(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(registry)

	m.ObserveStep(StepReserve, 10*time.Millisecond)
	m.RecordStatusTransition("open", "cancelled")
	m.RecordStockRelease()
	m.RecordSideEffectFailure(SideEffectMail)
	m.RecordNotification("shop_owner")
	m.RecordNotification("shop_owner")

	steps := gather(t, registry, "encontrar_order_step_duration_seconds")
	require.Len(t, steps, 1)
	assert.Equal(t, uint64(1), steps[0].GetHistogram().GetSampleCount())

	transitions := gather(t, registry, "encontrar_order_status_transitions_total")
	require.Len(t, transitions, 1)
	assert.Equal(t, 1.0, transitions[0].GetCounter().GetValue())

	notifications := gather(t, registry, "encontrar_notifications_sent_total")
	require.Len(t, notifications, 1)
	assert.Equal(t, 2.0, notifications[0].GetCounter().GetValue())

	assert.Len(t, gather(t, registry, "encontrar_stock_releases_total"), 1)
	assert.Len(t, gather(t, registry, "encontrar_order_side_effect_failures_total"), 1)
}

func TestNewOrderMetrics_ReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewOrderMetricsWithRegisterer(registry)
	second := NewOrderMetricsWithRegisterer(registry)

	first.RecordStockRelease()
	second.RecordStockRelease()

	releases := gather(t, registry, "encontrar_stock_releases_total")
	require.Len(t, releases, 1)
	assert.Equal(t, 2.0, releases[0].GetCounter().GetValue())
}

func TestOrderMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *OrderMetrics

	assert.NotPanics(t, func() {
		m.CreateStarted()(nil, "")
		m.ObserveStep(StepMail, time.Second)
		m.RecordStatusTransition("open", "confirmed")
		m.RecordStockRelease()
		m.RecordSideEffectFailure(SideEffectNotify)
		m.RecordNotification("admin")
	})
}
