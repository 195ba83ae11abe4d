package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revertlabs/meanrev/internal/execution"
	"github.com/revertlabs/meanrev/internal/market"
	"github.com/revertlabs/meanrev/internal/risk"
	"github.com/revertlabs/meanrev/internal/signal"
)

func testConfig() Config {
	return Config{
		Symbol:     "MES",
		Lookback:   20,
		EntryZ:     2.0,
		ExitZ:      0.5,
		Multiplier: 5.0,
		Slippage:   0.25,
	}
}

func testLimits() risk.Limits {
	return risk.Limits{
		MaxDailyLoss:         500,
		MaxConsecutiveLosses: 3,
		MaxDrawdown:          1000,
		MaxPositionDuration:  2 * time.Hour,
		MaxTradesPerDay:      10,
		MaxPositionSize:      2,
		Cooldown:             30 * time.Minute,
	}
}

func barsAt(start time.Time, closes ...float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      c, High: c, Low: c, Close: c,
			Volume: 100,
		}
	}
	return bars
}

// warmupCloses returns 20 constant closes plus any extra values.
func warmupCloses(extra ...float64) []float64 {
	closes := make([]float64, 0, 20+len(extra))
	for i := 0; i < 20; i++ {
		closes = append(closes, 5000)
	}
	return append(closes, extra...)
}

func newTestEngine(t *testing.T, cal Calendar) (*Engine, *execution.PaperRouter) {
	t.Helper()
	router := execution.NewPaperRouter()
	eng, err := New(testConfig(), testLimits(), router, cal, nil, nil, nil)
	require.NoError(t, err)
	return eng, router
}

func TestEngineWarmupProducesNoOrders(t *testing.T) {
	eng, router := newTestEngine(t, AlwaysOpen{})
	start := time.Date(2025, 1, 6, 14, 30, 0, 0, time.UTC)

	for _, bar := range barsAt(start, warmupCloses()...) {
		eng.ProcessBar(context.Background(), bar)
	}

	assert.Empty(t, router.Orders())
	assert.Nil(t, eng.Status().Position)
}

func TestEngineEntersOneContractOnThresholdCross(t *testing.T) {
	eng, router := newTestEngine(t, AlwaysOpen{})
	start := time.Date(2025, 1, 6, 14, 30, 0, 0, time.UTC)

	// The drop to 4980 reads z = -19/sqrt(20), well past the entry
	// threshold, so exactly one long entry of one contract follows.
	for _, bar := range barsAt(start, warmupCloses(4980)...) {
		eng.ProcessBar(context.Background(), bar)
	}

	orders := router.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, execution.Buy, orders[0].Action)
	assert.Equal(t, 1, orders[0].Quantity)
	assert.InDelta(t, 4980.25, orders[0].Price, 1e-9)

	st := eng.Status()
	require.NotNil(t, st.Position)
	assert.Equal(t, 1, st.Position.Quantity)
	assert.GreaterOrEqual(t, -st.Position.EntryZScore, 2.0)
}

func TestEngineRoundTripUpdatesDailyStats(t *testing.T) {
	eng, router := newTestEngine(t, AlwaysOpen{})
	start := time.Date(2025, 1, 6, 14, 30, 0, 0, time.UTC)

	for _, bar := range barsAt(start, warmupCloses(4980, 4999)...) {
		eng.ProcessBar(context.Background(), bar)
	}

	orders := router.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, execution.Buy, orders[0].Action)
	assert.Equal(t, execution.Sell, orders[1].Action)

	st := eng.Status()
	assert.Nil(t, st.Position)
	assert.Equal(t, 1, st.Daily.TradesCount)
	assert.Equal(t, 1, st.Daily.WinningTrades)
	assert.InDelta(t, 95.0, st.Equity, 1e-9)
	assert.InDelta(t, 95.0, st.Daily.RealizedPnL, 1e-9)
}

func TestEngineDayRolloverResetsDailyStats(t *testing.T) {
	eng, _ := newTestEngine(t, AlwaysOpen{})
	start := time.Date(2025, 1, 6, 14, 30, 0, 0, time.UTC)

	for _, bar := range barsAt(start, warmupCloses(4980, 4999)...) {
		eng.ProcessBar(context.Background(), bar)
	}
	require.Equal(t, 1, eng.Status().Daily.TradesCount)

	nextDay := market.Bar{
		Timestamp: start.Add(24 * time.Hour),
		Open:      5000, High: 5000, Low: 5000, Close: 5000,
		Volume: 100,
	}
	eng.ProcessBar(context.Background(), nextDay)

	st := eng.Status()
	assert.Equal(t, 0, st.Daily.TradesCount)
	assert.Zero(t, st.Daily.RealizedPnL)
	// Equity itself carries across days.
	assert.InDelta(t, 95.0, st.Equity, 1e-9)
}

type closedCalendar struct{}

func (closedCalendar) CanTradeAt(time.Time) bool { return false }

func TestEngineIgnoresBarsOutsideSession(t *testing.T) {
	eng, router := newTestEngine(t, closedCalendar{})
	start := time.Date(2025, 1, 6, 14, 30, 0, 0, time.UTC)

	for _, bar := range barsAt(start, warmupCloses(4980)...) {
		eng.ProcessBar(context.Background(), bar)
	}

	assert.Empty(t, router.Orders())
	assert.False(t, eng.Status().Reading.Ready)
}

func TestEngineSuppressesSignalsWhileBreakerOpen(t *testing.T) {
	eng, router := newTestEngine(t, AlwaysOpen{})
	start := time.Date(2025, 1, 6, 14, 30, 0, 0, time.UTC)

	// Trip the breaker before the entry bar arrives.
	require.True(t, eng.Breaker().CheckTradeCount(100))

	for _, bar := range barsAt(start, warmupCloses(4980)...) {
		eng.ProcessBar(context.Background(), bar)
	}

	assert.Empty(t, router.Orders())
	assert.Nil(t, eng.Status().Position)
	assert.True(t, eng.Status().Breaker.Triggered)
}

func TestEngineEntryRouterGatedByBreaker(t *testing.T) {
	eng, router := newTestEngine(t, AlwaysOpen{})
	start := time.Date(2025, 1, 6, 14, 30, 0, 0, time.UTC)

	require.False(t, eng.Breaker().CheckDrawdown(0))
	require.True(t, eng.Breaker().CheckDrawdown(-1500))

	// Even when a signal reaches the entry path with the breaker open, the
	// gated router refuses the order before it hits the venue.
	bar := market.Bar{
		Timestamp: start,
		Open:      4980, High: 4980, Low: 4980, Close: 4980,
		Volume: 100,
	}
	sig := &signal.Signal{Kind: signal.EnterLong, ZScore: -2.5, Reason: "zscore below entry", Timestamp: start}
	eng.mu.Lock()
	eng.openPosition(context.Background(), bar, sig, 1)
	eng.mu.Unlock()

	assert.Empty(t, router.Orders())
	assert.Nil(t, eng.Status().Position)
}

func TestEngineForceClosesStalePosition(t *testing.T) {
	eng, router := newTestEngine(t, AlwaysOpen{})
	start := time.Date(2025, 1, 6, 14, 30, 0, 0, time.UTC)

	for _, bar := range barsAt(start, warmupCloses(4980)...) {
		eng.ProcessBar(context.Background(), bar)
	}
	require.NotNil(t, eng.Status().Position)

	// Next bar arrives past the two hour duration limit and still far from
	// the exit band.
	stale := market.Bar{
		Timestamp: start.Add(27 * time.Hour),
		Open:      4980, High: 4980, Low: 4980, Close: 4980,
		Volume: 100,
	}
	eng.ProcessBar(context.Background(), stale)

	st := eng.Status()
	assert.Nil(t, st.Position)
	assert.Len(t, router.Orders(), 2)
	assert.True(t, st.Breaker.Triggered)
	assert.Contains(t, st.Breaker.TriggerReason, "position held too long")
}

type failRouter struct{}

func (failRouter) Place(context.Context, string, int, execution.Action, float64) (execution.Order, error) {
	return execution.Order{}, errors.New("gateway down")
}

func TestEngineKeepsFlatWhenEntryOrderFails(t *testing.T) {
	eng, err := New(testConfig(), testLimits(), failRouter{}, AlwaysOpen{}, nil, nil, nil)
	require.NoError(t, err)
	start := time.Date(2025, 1, 6, 14, 30, 0, 0, time.UTC)

	for _, bar := range barsAt(start, warmupCloses(4980)...) {
		eng.ProcessBar(context.Background(), bar)
	}

	st := eng.Status()
	assert.Nil(t, st.Position)
	assert.Equal(t, 0, st.Daily.TradesCount)
}

func TestEngineRunFlattensOnFeedClose(t *testing.T) {
	eng, router := newTestEngine(t, AlwaysOpen{})
	start := time.Date(2025, 1, 6, 14, 30, 0, 0, time.UTC)

	// Feed ends with the position still open; shutdown must flatten it.
	feed := market.NewSliceFeed(barsAt(start, warmupCloses(4980, 4985)...))
	require.NoError(t, eng.Run(context.Background(), feed))

	st := eng.Status()
	assert.Nil(t, st.Position)
	require.Len(t, router.Orders(), 2)
	assert.Equal(t, execution.Sell, router.Orders()[1].Action)
	assert.Equal(t, 1, st.Daily.TradesCount)
}

func TestEngineRejectsBadConfig(t *testing.T) {
	router := execution.NewPaperRouter()

	cfg := testConfig()
	cfg.Symbol = ""
	_, err := New(cfg, testLimits(), router, AlwaysOpen{}, nil, nil, nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Lookback = 1
	_, err = New(cfg, testLimits(), router, AlwaysOpen{}, nil, nil, nil)
	assert.Error(t, err)

	limits := testLimits()
	limits.Cooldown = 0
	_, err = New(testConfig(), limits, router, AlwaysOpen{}, nil, nil, nil)
	assert.Error(t, err)

	_, err = New(testConfig(), testLimits(), nil, AlwaysOpen{}, nil, nil, nil)
	assert.Error(t, err)
}
