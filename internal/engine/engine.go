// Package engine wires the live trading loop: bars in, orders and alerts
// out. One engine instance trades one instrument; the loop is the single
// writer for all strategy and risk state.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/revertlabs/meanrev/internal/alerts"
	"github.com/revertlabs/meanrev/internal/execution"
	"github.com/revertlabs/meanrev/internal/market"
	"github.com/revertlabs/meanrev/internal/metrics"
	"github.com/revertlabs/meanrev/internal/persistence"
	"github.com/revertlabs/meanrev/internal/risk"
	"github.com/revertlabs/meanrev/internal/signal"
	"github.com/revertlabs/meanrev/internal/stats"
)

// Config parameterizes a live engine.
type Config struct {
	Symbol     string
	Lookback   int
	EntryZ     float64
	ExitZ      float64
	Multiplier float64
	Slippage   float64
}

// Position is the engine's open position. Quantity is signed.
type Position struct {
	EntryPrice  float64   `json:"entry_price"`
	EntryTime   time.Time `json:"entry_time"`
	Quantity    int       `json:"quantity"`
	EntryZScore float64   `json:"entry_zscore"`
}

// Status is the snapshot served by the status API.
type Status struct {
	Symbol    string          `json:"symbol"`
	Equity    float64         `json:"equity"`
	Position  *Position       `json:"position,omitempty"`
	Breaker   risk.Status     `json:"breaker"`
	Daily     risk.DailyStats `json:"daily"`
	Reading   stats.Reading   `json:"reading"`
	LastBarAt time.Time       `json:"last_bar_at,omitempty"`
}

// Engine runs the live decision loop for one instrument.
type Engine struct {
	cfg     Config
	gen     *signal.Generator
	breaker *risk.CircuitBreaker

	// router places exits and is never gated, so force-closes and the
	// shutdown flatten work while the breaker is open. entryRouter wraps it
	// with the breaker gate as the final check before a new position.
	router      execution.OrderRouter
	entryRouter execution.OrderRouter

	repo     *persistence.Repository
	notifier alerts.Notifier
	calendar Calendar
	metrics  *metrics.Metrics

	mu        sync.Mutex
	daily     risk.DailyStats
	position  *Position
	equity    float64
	day       time.Time
	lastBarAt time.Time
}

// New builds an engine. Router and calendar are required; repo may be nil
// for log-only operation and notifier nil to disable alerting.
func New(cfg Config, limits risk.Limits, router execution.OrderRouter, calendar Calendar,
	repo *persistence.Repository, notifier alerts.Notifier, m *metrics.Metrics) (*Engine, error) {

	if cfg.Symbol == "" {
		return nil, fmt.Errorf("engine requires a symbol")
	}
	if router == nil {
		return nil, fmt.Errorf("engine requires an order router")
	}
	if calendar == nil {
		calendar = AlwaysOpen{}
	}
	if notifier == nil {
		notifier = alerts.Noop{}
	}
	if m == nil {
		m = metrics.New()
	}

	gen, err := signal.NewGenerator(cfg.Lookback, cfg.EntryZ, cfg.ExitZ)
	if err != nil {
		return nil, err
	}
	breaker, err := risk.NewCircuitBreaker(limits)
	if err != nil {
		return nil, err
	}
	entryRouter, err := execution.NewGatedRouter(router, breaker.CanTrade)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		gen:         gen,
		breaker:     breaker,
		router:      router,
		entryRouter: entryRouter,
		repo:        repo,
		notifier:    notifier,
		calendar:    calendar,
		metrics:     m,
	}

	breaker.OnTrip(func(reason string) {
		m.BreakerTrips.WithLabelValues(reason).Inc()
		alerts.LogErr(context.Background(), e.notifier,
			fmt.Sprintf("CIRCUIT BREAKER: %s. Trading halted for cooldown.", reason))
	})

	return e, nil
}

// Breaker exposes the circuit breaker for status reporting and manual
// resets.
func (e *Engine) Breaker() *risk.CircuitBreaker { return e.breaker }

// Run consumes the feed until it closes or the context is cancelled. An
// open position is flattened on shutdown using the last seen close.
func (e *Engine) Run(ctx context.Context, feed market.Feed) error {
	log.Info().
		Str("symbol", e.cfg.Symbol).
		Int("lookback", e.cfg.Lookback).
		Float64("entry_z", e.cfg.EntryZ).
		Float64("exit_z", e.cfg.ExitZ).
		Msg("trading engine started")

	var lastBar *market.Bar
	for {
		bar, err := feed.Next(ctx)
		if err != nil {
			if err == market.ErrFeedClosed {
				break
			}
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("feed error: %w", err)
		}
		e.ProcessBar(ctx, bar)
		b := bar
		lastBar = &b
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.position != nil && lastBar != nil {
		// Flatten even when the context that stopped the loop is done.
		e.closePosition(context.WithoutCancel(ctx), *lastBar, 0, "engine shutdown")
	}
	log.Info().Str("symbol", e.cfg.Symbol).Float64("equity", e.equity).
		Msg("trading engine stopped")
	return nil
}

// ProcessBar advances the strategy by one bar. All errors inside the bar
// path degrade to skips and logs; the loop never dies on a bad tick.
func (e *Engine) ProcessBar(ctx context.Context, bar market.Bar) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rolloverDay(bar.Timestamp)

	if !e.calendar.CanTradeAt(bar.Timestamp) {
		return
	}

	if err := bar.Validate(); err != nil {
		e.metrics.BarsRejected.Inc()
		log.Warn().Err(err).Msg("dropping invalid bar")
		return
	}

	reading, err := e.gen.Update(bar.Close)
	if err != nil {
		e.metrics.BarsRejected.Inc()
		log.Warn().Err(err).Float64("close", bar.Close).Msg("dropping bad close")
		return
	}
	e.metrics.BarsProcessed.Inc()
	e.metrics.LastZScore.Set(reading.Value)
	e.lastBarAt = bar.Timestamp

	// A position held past the duration limit is force-closed even while
	// the breaker blocks new entries.
	if e.position != nil && e.breaker.CheckPositionDuration(e.position.EntryTime, bar.Timestamp) {
		e.closePosition(ctx, bar, reading.Value, "position duration limit")
		return
	}

	sig := e.gen.Signal(bar.Timestamp)
	if sig == nil {
		return
	}
	e.metrics.SignalsEmitted.WithLabelValues(string(sig.Kind)).Inc()

	if !e.breaker.CanTrade() {
		log.Warn().Str("kind", string(sig.Kind)).Msg("signal suppressed, breaker open")
		return
	}

	switch sig.Kind {
	case signal.EnterLong:
		e.openPosition(ctx, bar, sig, 1)
	case signal.EnterShort:
		e.openPosition(ctx, bar, sig, -1)
	case signal.Exit:
		if e.position != nil {
			e.closePosition(ctx, bar, sig.ZScore, sig.Reason)
		}
	}
}

// rolloverDay resets daily statistics and re-bases the breaker's equity
// tracking at the first bar of each UTC day.
func (e *Engine) rolloverDay(ts time.Time) {
	day := ts.UTC().Truncate(24 * time.Hour)
	if e.day.IsZero() {
		e.day = day
		return
	}
	if day.After(e.day) {
		log.Info().Time("day", day).Msg("new trading day, resetting daily state")
		e.daily.Reset()
		e.breaker.ResetDay()
		e.day = day
	}
}

func (e *Engine) openPosition(ctx context.Context, bar market.Bar, sig *signal.Signal, qty int) {
	if e.position != nil {
		return
	}
	if e.breaker.CheckTradeCount(e.daily.TradesCount + 1) {
		return
	}
	if e.breaker.CheckPositionSize(qty) {
		return
	}

	action := execution.Buy
	if qty < 0 {
		action = execution.Sell
	}
	fill := bar.Close + e.cfg.Slippage

	start := time.Now()
	order, err := e.entryRouter.Place(ctx, e.cfg.Symbol, abs(qty), action, fill)
	e.metrics.OrderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Msg("entry order failed")
		return
	}

	e.position = &Position{
		EntryPrice:  fill,
		EntryTime:   bar.Timestamp,
		Quantity:    qty,
		EntryZScore: sig.ZScore,
	}
	e.metrics.OpenPosition.Set(float64(qty))

	log.Info().
		Str("order_id", order.ID).
		Str("kind", string(sig.Kind)).
		Float64("price", fill).
		Float64("zscore", sig.ZScore).
		Msg("position opened")

	alerts.LogErr(ctx, e.notifier, fmt.Sprintf("%s %s @ %.2f (%s)",
		sig.Kind, e.cfg.Symbol, fill, sig.Reason))
}

// closePosition flattens, records the trade, and runs the post-trade risk
// checks. Caller holds the lock.
func (e *Engine) closePosition(ctx context.Context, bar market.Bar, exitZ float64, reason string) {
	pos := e.position
	if pos == nil {
		return
	}

	action := execution.Sell
	if pos.Quantity < 0 {
		action = execution.Buy
	}
	fill := bar.Close + e.cfg.Slippage

	start := time.Now()
	order, err := e.router.Place(ctx, e.cfg.Symbol, abs(pos.Quantity), action, fill)
	e.metrics.OrderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		// The position stays open; the next bar retries the exit.
		log.Error().Err(err).Msg("exit order failed")
		return
	}

	pnl := (fill - pos.EntryPrice) * float64(pos.Quantity) * e.cfg.Multiplier
	e.position = nil
	e.equity += pnl
	e.daily.RecordTrade(pnl)
	e.metrics.OpenPosition.Set(0)
	e.metrics.Equity.Set(e.equity)

	log.Info().
		Str("order_id", order.ID).
		Float64("pnl", pnl).
		Float64("equity", e.equity).
		Str("reason", reason).
		Msg("position closed")

	e.persistTrade(ctx, bar, pos, fill, pnl, exitZ, reason, order.ID)
	alerts.LogErr(ctx, e.notifier, fmt.Sprintf("EXIT %s @ %.2f, PnL %.2f (%s)",
		e.cfg.Symbol, fill, pnl, reason))

	// Post-trade risk checks run in limit order; the first breach latches.
	e.breaker.CheckDailyLoss(e.daily)
	e.breaker.CheckConsecutiveLosses(e.daily)
	e.breaker.CheckDrawdown(e.equity)
}

func (e *Engine) persistTrade(ctx context.Context, bar market.Bar, pos *Position,
	exitPrice, pnl, exitZ float64, reason, orderID string) {

	if e.repo == nil || e.repo.Trades == nil {
		return
	}

	side := "LONG"
	if pos.Quantity < 0 {
		side = "SHORT"
	}
	trade := &persistence.Trade{
		Timestamp:   bar.Timestamp,
		Symbol:      e.cfg.Symbol,
		Side:        side,
		Quantity:    pos.Quantity,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		PnL:         pnl,
		EntryZScore: pos.EntryZScore,
		ExitZScore:  exitZ,
		Reason:      reason,
		OrderID:     orderID,
	}
	if err := e.repo.Trades.Insert(ctx, trade); err != nil {
		log.Error().Err(err).Msg("failed to persist trade")
	}
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		Symbol:    e.cfg.Symbol,
		Equity:    e.equity,
		Breaker:   e.breaker.Status(),
		Daily:     e.daily,
		Reading:   e.gen.Reading(),
		LastBarAt: e.lastBarAt,
	}
	if e.position != nil {
		pos := *e.position
		st.Position = &pos
	}
	return st
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
