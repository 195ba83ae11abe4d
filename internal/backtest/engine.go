// Package backtest replays historical bars through the Z-Score strategy and
// produces aggregate performance metrics. Runs are deterministic: the same
// bars and config always yield the same result, and nothing in a run touches
// shared state, so parameter sweeps fan out one engine per combination.
package backtest

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/revertlabs/meanrev/internal/market"
	"github.com/revertlabs/meanrev/internal/signal"
)

// tradingDaysPerYear annualizes the per-trade Sharpe ratio.
const tradingDaysPerYear = 252

// Engine replays bars against one strategy parameterization.
type Engine struct {
	cfg Config
}

// NewEngine validates the config and returns an engine ready to run.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's parameterization.
func (e *Engine) Config() Config { return e.cfg }

// Run replays the bars in order and returns the aggregated result. A fresh
// signal generator is built per run. Bars that fail validation are skipped
// and counted, not fatal. An open position at the end of the series is
// discarded without being marked to market, matching live flattening where
// the final exit never got a signal.
func (e *Engine) Run(bars []market.Bar) (*Result, error) {
	gen, err := signal.NewGenerator(e.cfg.Lookback, e.cfg.EntryZ, e.cfg.ExitZ)
	if err != nil {
		return nil, err
	}

	var (
		position *Position
		trades   []Trade
		skipped  int
	)

	for _, bar := range bars {
		if err := bar.Validate(); err != nil {
			skipped++
			continue
		}
		if _, err := gen.Update(bar.Close); err != nil {
			skipped++
			continue
		}

		sig := gen.Signal(bar.Timestamp)
		if sig == nil {
			continue
		}

		switch sig.Kind {
		case signal.EnterLong:
			if position == nil {
				position = &Position{
					EntryPrice:  bar.Close + e.cfg.Slippage,
					EntryTime:   bar.Timestamp,
					Quantity:    1,
					EntryZScore: sig.ZScore,
				}
			}
		case signal.EnterShort:
			if position == nil {
				position = &Position{
					EntryPrice:  bar.Close + e.cfg.Slippage,
					EntryTime:   bar.Timestamp,
					Quantity:    -1,
					EntryZScore: sig.ZScore,
				}
			}
		case signal.Exit:
			if position != nil {
				exitPrice := bar.Close + e.cfg.Slippage
				pnl := (exitPrice - position.EntryPrice) * float64(position.Quantity) * e.cfg.Multiplier
				trades = append(trades, Trade{
					Timestamp:   bar.Timestamp,
					EntryPrice:  position.EntryPrice,
					ExitPrice:   exitPrice,
					Quantity:    position.Quantity,
					PnL:         pnl,
					EntryZScore: position.EntryZScore,
					ExitZScore:  sig.ZScore,
					Duration:    bar.Timestamp.Sub(position.EntryTime),
				})
				position = nil
			}
		}
	}

	if skipped > 0 {
		log.Debug().Int("skipped", skipped).Int("bars", len(bars)).
			Msg("backtest skipped invalid bars")
	}

	return summarize(trades), nil
}

// summarize folds the trade list into a Result. An empty list yields the
// zero-trade result rather than NaNs.
func summarize(trades []Trade) *Result {
	res := &Result{Trades: trades, TotalTrades: len(trades)}
	if len(trades) == 0 {
		return res
	}

	var (
		equity      float64
		peak        float64
		grossWins   float64
		grossLosses float64
		strictWins  int
	)
	returns := make([]float64, 0, len(trades))

	for _, t := range trades {
		equity += t.PnL
		returns = append(returns, t.PnL)

		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > res.MaxDrawdown {
			res.MaxDrawdown = dd
		}
		if equity > res.MaxProfit {
			res.MaxProfit = equity
		}

		// A scratch trade (exactly zero PnL) counts toward the win rate
		// but stays out of the average-win denominator.
		if t.PnL >= 0 {
			res.WinningTrades++
			grossWins += t.PnL
			if t.PnL > 0 {
				strictWins++
			}
		} else {
			res.LosingTrades++
			grossLosses += t.PnL
		}
	}

	res.TotalPnL = equity
	res.WinRate = float64(res.WinningTrades) / float64(res.TotalTrades) * 100

	if strictWins > 0 {
		res.AvgWin = grossWins / float64(strictWins)
	}
	if res.LosingTrades > 0 {
		res.AvgLoss = grossLosses / float64(res.LosingTrades)
		res.ProfitFactor = grossWins / math.Abs(grossLosses)
	}

	res.SharpeRatio = annualizedSharpe(returns)
	return res
}

// annualizedSharpe computes mean/stddev of per-trade PnL scaled by the
// square root of the trading days in a year. Fewer than two trades, or a
// flat return series, yields 0.
func annualizedSharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sqDiff float64
	for _, r := range returns {
		d := r - mean
		sqDiff += d * d
	}
	variance := sqDiff / float64(len(returns)-1)
	if variance <= 0 {
		return 0
	}

	return mean / math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}
