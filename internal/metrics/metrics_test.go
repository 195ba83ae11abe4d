package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegisterAndCount(t *testing.T) {
	m := New()

	m.BarsProcessed.Inc()
	m.BarsProcessed.Inc()
	m.SignalsEmitted.WithLabelValues("ENTER_SHORT").Inc()
	m.BreakerTrips.WithLabelValues("daily loss limit").Inc()
	m.Equity.Set(-125.5)
	m.OpenPosition.Set(-1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BarsProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignalsEmitted.WithLabelValues("ENTER_SHORT")))
	assert.Equal(t, -125.5, testutil.ToFloat64(m.Equity))
}

func TestMetricsIndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.BarsProcessed.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.BarsProcessed))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.BarsProcessed))
}

func TestMetricsSnapshot(t *testing.T) {
	m := New()

	m.BarsProcessed.Inc()
	m.SignalsEmitted.WithLabelValues("ENTER_LONG").Inc()
	m.SignalsEmitted.WithLabelValues("EXIT").Inc()
	m.OrderLatency.Observe(0.02)
	m.LastZScore.Set(-2.1)

	snap, err := m.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, 1.0, snap["meanrev_bars_processed_total"])
	assert.Equal(t, 2.0, snap["meanrev_signals_emitted_total"])
	assert.Equal(t, 1.0, snap["meanrev_order_latency_seconds"])
	assert.Equal(t, -2.1, snap["meanrev_last_zscore"])
}
