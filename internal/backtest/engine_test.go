package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revertlabs/meanrev/internal/market"
)

// makeBars builds 5-minute bars from a close series. Open/high/low collapse
// onto the close; the engine only reads closes.
func makeBars(closes []float64) []market.Bar {
	start := time.Date(2025, 1, 6, 14, 30, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    100,
		}
	}
	return bars
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"lookback too small", func(c *Config) { c.Lookback = 1 }},
		{"entry below exit", func(c *Config) { c.EntryZ = 0.4; c.ExitZ = 0.5 }},
		{"zero exit", func(c *Config) { c.ExitZ = 0 }},
		{"zero multiplier", func(c *Config) { c.Multiplier = 0 }},
		{"negative slippage", func(c *Config) { c.Slippage = -0.25 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			_, err := NewEngine(cfg)
			assert.Error(t, err)
		})
	}

	_, err := NewEngine(DefaultConfig())
	assert.NoError(t, err)
}

func TestEngineEmptyInput(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	require.NoError(t, err)

	res, err := engine.Run(nil)
	require.NoError(t, err)

	assert.Equal(t, 0, res.TotalTrades)
	assert.Zero(t, res.TotalPnL)
	assert.Zero(t, res.WinRate)
	assert.Zero(t, res.ProfitFactor)
	assert.Zero(t, res.SharpeRatio)
	assert.Empty(t, res.Trades)
}

func TestEngineShortRoundTrip(t *testing.T) {
	cfg := Config{Lookback: 10, EntryZ: 2.0, ExitZ: 0.5, Multiplier: 5.0, Slippage: 0.25}
	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	// Alternating 100/101 keeps the window tight; the 120 spike pushes the
	// Z-Score near 2.84 for a short entry, and 102 lands back inside the
	// exit band once the spike inflates the window's deviation.
	closes := []float64{100, 101, 100, 101, 100, 101, 100, 101, 100, 120, 102}
	res, err := engine.Run(makeBars(closes))
	require.NoError(t, err)

	require.Equal(t, 1, res.TotalTrades)
	trade := res.Trades[0]
	assert.Equal(t, -1, trade.Quantity)
	assert.InDelta(t, 120.25, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 102.25, trade.ExitPrice, 1e-9)
	assert.InDelta(t, 90.0, trade.PnL, 1e-9)
	assert.Equal(t, 5*time.Minute, trade.Duration)
	assert.Greater(t, trade.EntryZScore, 2.0)
	assert.LessOrEqual(t, absF(trade.ExitZScore), 0.5)

	assert.Equal(t, 1, res.WinningTrades)
	assert.InDelta(t, 100.0, res.WinRate, 1e-9)
	assert.InDelta(t, 90.0, res.TotalPnL, 1e-9)
	assert.Zero(t, res.MaxDrawdown)
	// Single trade: Sharpe is undefined and reported as 0. No losing
	// trades: profit factor is reported as 0, a known source asymmetry
	// rather than +Inf.
	assert.Zero(t, res.SharpeRatio)
	assert.Zero(t, res.ProfitFactor)
}

func TestEngineLongRoundTrip(t *testing.T) {
	cfg := Config{Lookback: 10, EntryZ: 2.0, ExitZ: 0.5, Multiplier: 5.0, Slippage: 0.25}
	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	closes := []float64{100, 101, 100, 101, 100, 101, 100, 101, 100, 81, 99}
	res, err := engine.Run(makeBars(closes))
	require.NoError(t, err)

	require.Equal(t, 1, res.TotalTrades)
	trade := res.Trades[0]
	assert.Equal(t, 1, trade.Quantity)
	assert.InDelta(t, 81.25, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 99.25, trade.ExitPrice, 1e-9)
	assert.InDelta(t, 90.0, trade.PnL, 1e-9)
	assert.Less(t, trade.EntryZScore, -2.0)
}

func TestEngineWarmupThenEntry(t *testing.T) {
	cfg := Config{Lookback: 20, EntryZ: 2.0, ExitZ: 0.5, Multiplier: 5.0, Slippage: 0.25}
	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	// 20 constant closes warm the window with zero variance, so no signal
	// fires. The drop to 4980 then reads z = -19/sqrt(20) ~ -4.25 and the
	// recovery to 4999 reads back inside the exit band.
	closes := make([]float64, 0, 22)
	for i := 0; i < 20; i++ {
		closes = append(closes, 5000)
	}
	res, err := engine.Run(makeBars(closes))
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalTrades)

	closes = append(closes, 4980, 4999)
	res, err = engine.Run(makeBars(closes))
	require.NoError(t, err)

	require.Equal(t, 1, res.TotalTrades)
	trade := res.Trades[0]
	assert.Equal(t, 1, trade.Quantity)
	assert.GreaterOrEqual(t, absF(trade.EntryZScore), 2.0)
	assert.InDelta(t, 4980.25, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 4999.25, trade.ExitPrice, 1e-9)
	assert.InDelta(t, 95.0, trade.PnL, 1e-9)
}

func TestEngineOpenPositionDiscarded(t *testing.T) {
	cfg := Config{Lookback: 10, EntryZ: 2.0, ExitZ: 0.5, Multiplier: 5.0, Slippage: 0.25}
	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	// Series ends immediately after the entry bar.
	closes := []float64{100, 101, 100, 101, 100, 101, 100, 101, 100, 120}
	res, err := engine.Run(makeBars(closes))
	require.NoError(t, err)

	assert.Equal(t, 0, res.TotalTrades)
	assert.Zero(t, res.TotalPnL)
}

func TestSummarizeScratchTrade(t *testing.T) {
	// A trade closed at exactly zero PnL counts toward the win rate but
	// must not dilute the average win.
	res := summarize([]Trade{{PnL: 0}, {PnL: 10}, {PnL: -5}})

	assert.Equal(t, 3, res.TotalTrades)
	assert.Equal(t, 2, res.WinningTrades)
	assert.Equal(t, 1, res.LosingTrades)
	assert.InDelta(t, 200.0/3.0, res.WinRate, 1e-9)
	assert.InDelta(t, 10.0, res.AvgWin, 1e-9)
	assert.InDelta(t, -5.0, res.AvgLoss, 1e-9)
	assert.InDelta(t, 2.0, res.ProfitFactor, 1e-9)
}

func TestEngineIdempotent(t *testing.T) {
	bars := market.GenerateBars(market.DefaultSimulatorConfig())
	engine, err := NewEngine(DefaultConfig())
	require.NoError(t, err)

	first, err := engine.Run(bars)
	require.NoError(t, err)
	second, err := engine.Run(bars)
	require.NoError(t, err)

	assert.Equal(t, first.TotalTrades, second.TotalTrades)
	assert.Equal(t, first.TotalPnL, second.TotalPnL)
	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first, second)
}

func TestEngineMetricConsistency(t *testing.T) {
	bars := market.GenerateBars(market.DefaultSimulatorConfig())
	engine, err := NewEngine(Config{Lookback: 20, EntryZ: 1.5, ExitZ: 0.5, Multiplier: 5.0, Slippage: 0.25})
	require.NoError(t, err)

	res, err := engine.Run(bars)
	require.NoError(t, err)
	require.NotZero(t, res.TotalTrades, "simulated series should produce trades")

	assert.Equal(t, res.TotalTrades, res.WinningTrades+res.LosingTrades)
	assert.Equal(t, res.TotalTrades, len(res.Trades))

	var sum float64
	for _, tr := range res.Trades {
		sum += tr.PnL
		assert.False(t, tr.Timestamp.IsZero())
		assert.NotZero(t, tr.Quantity)
	}
	assert.InDelta(t, res.TotalPnL, sum, 1e-6)
	assert.GreaterOrEqual(t, res.MaxDrawdown, 0.0)
	assert.InDelta(t, float64(res.WinningTrades)/float64(res.TotalTrades)*100, res.WinRate, 1e-9)
}

func TestEngineSkipsInvalidBars(t *testing.T) {
	cfg := Config{Lookback: 10, EntryZ: 2.0, ExitZ: 0.5, Multiplier: 5.0, Slippage: 0.25}
	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	bars := makeBars([]float64{100, 101, 100, 101, 100, 101, 100, 101, 100, 120, 102})
	// A zero-timestamp bar mid-series must not disturb the window.
	corrupt := market.Bar{Close: 9999}
	withJunk := append(append([]market.Bar{}, bars[:5]...), corrupt)
	withJunk = append(withJunk, bars[5:]...)

	clean, err := engine.Run(bars)
	require.NoError(t, err)
	dirty, err := engine.Run(withJunk)
	require.NoError(t, err)

	assert.Equal(t, clean.TotalTrades, dirty.TotalTrades)
	assert.Equal(t, clean.TotalPnL, dirty.TotalPnL)
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
