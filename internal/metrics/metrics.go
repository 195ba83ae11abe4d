// Package metrics exposes Prometheus instrumentation for the trading
// engine. Collectors live on a private registry so tests and multiple
// engine instances never collide on the default registerer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	registry *prometheus.Registry

	BarsProcessed  prometheus.Counter
	BarsRejected   prometheus.Counter
	SignalsEmitted *prometheus.CounterVec
	BreakerTrips   *prometheus.CounterVec
	OrderLatency   prometheus.Histogram
	Equity         prometheus.Gauge
	OpenPosition   prometheus.Gauge
	LastZScore     prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.BarsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "meanrev",
		Name:      "bars_processed_total",
		Help:      "Bars accepted into the rolling window.",
	})
	m.BarsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "meanrev",
		Name:      "bars_rejected_total",
		Help:      "Bars dropped by validation or non-finite closes.",
	})
	m.SignalsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meanrev",
		Name:      "signals_emitted_total",
		Help:      "Trading signals by kind.",
	}, []string{"kind"})
	m.BreakerTrips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meanrev",
		Name:      "breaker_trips_total",
		Help:      "Circuit breaker triggers by reason.",
	}, []string{"reason"})
	m.OrderLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "meanrev",
		Name:      "order_latency_seconds",
		Help:      "Latency of order routing calls.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	m.Equity = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "meanrev",
		Name:      "equity",
		Help:      "Current account equity.",
	})
	m.OpenPosition = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "meanrev",
		Name:      "open_position",
		Help:      "Signed open position quantity.",
	})
	m.LastZScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "meanrev",
		Name:      "last_zscore",
		Help:      "Z-Score of the most recent bar.",
	})

	m.registry.MustRegister(
		m.BarsProcessed,
		m.BarsRejected,
		m.SignalsEmitted,
		m.BreakerTrips,
		m.OrderLatency,
		m.Equity,
		m.OpenPosition,
		m.LastZScore,
	)
	return m
}

// Registry returns the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Snapshot gathers the registry into a name-to-value map of the scalar
// collectors, used by the status endpoint.
func (m *Metrics) Snapshot() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(families))
	for _, mf := range families {
		var total float64
		for _, metric := range mf.GetMetric() {
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				total += metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				total += metric.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				total += float64(metric.GetHistogram().GetSampleCount())
			default:
				continue
			}
		}
		out[mf.GetName()] = total
	}
	return out, nil
}
