package backtest

import (
	"fmt"
	"time"

	"github.com/revertlabs/meanrev/internal/signal"
)

// Config holds one backtest run's parameters. A fresh signal generator is
// constructed per run from the strategy fields, so concurrent runs with
// different parameter combinations share nothing.
type Config struct {
	Lookback   int     `yaml:"lookback" json:"lookback"`
	EntryZ     float64 `yaml:"entry_z" json:"entry_z"`
	ExitZ      float64 `yaml:"exit_z" json:"exit_z"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
	Slippage   float64 `yaml:"slippage" json:"slippage"`
}

// DefaultConfig matches one MES contract with one tick of slippage.
func DefaultConfig() Config {
	return Config{
		Lookback:   20,
		EntryZ:     2.0,
		ExitZ:      0.5,
		Multiplier: 5.0,
		Slippage:   0.25,
	}
}

// Validate rejects unusable parameters before a run starts.
func (c Config) Validate() error {
	if c.Lookback < 2 {
		return fmt.Errorf("lookback must be >= 2, got %d", c.Lookback)
	}
	if _, err := signal.NewThresholds(c.EntryZ, c.ExitZ); err != nil {
		return err
	}
	if c.Multiplier <= 0 {
		return fmt.Errorf("multiplier must be > 0, got %v", c.Multiplier)
	}
	if c.Slippage < 0 {
		return fmt.Errorf("slippage must be >= 0, got %v", c.Slippage)
	}
	return nil
}

// Position is the single open simulated position. Quantity is signed:
// +1 long, -1 short.
type Position struct {
	EntryPrice  float64   `json:"entry_price"`
	EntryTime   time.Time `json:"entry_time"`
	Quantity    int       `json:"quantity"`
	EntryZScore float64   `json:"entry_zscore"`
}

// Trade is one completed round trip. Append-only once recorded.
type Trade struct {
	Timestamp   time.Time     `json:"timestamp"`
	EntryPrice  float64       `json:"entry_price"`
	ExitPrice   float64       `json:"exit_price"`
	Quantity    int           `json:"quantity"`
	PnL         float64       `json:"pnl"`
	EntryZScore float64       `json:"entry_zscore"`
	ExitZScore  float64       `json:"exit_zscore"`
	Duration    time.Duration `json:"duration"`
}

// Result aggregates a completed run. Never mutated after Run returns.
type Result struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	MaxProfit     float64 `json:"max_profit"`
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"`
	ProfitFactor  float64 `json:"profit_factor"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	Trades        []Trade `json:"trades"`
}
