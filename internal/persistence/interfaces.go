// Package persistence defines the durable storage contracts for trade
// records and analysis runs. Implementations live in subpackages; callers
// depend only on these interfaces so tests can substitute mocks.
package persistence

import (
	"context"
	"time"
)

// Trade is one completed round trip, live or simulated.
type Trade struct {
	ID          int64     `db:"id" json:"id"`
	Timestamp   time.Time `db:"ts" json:"timestamp"`
	Symbol      string    `db:"symbol" json:"symbol"`
	Side        string    `db:"side" json:"side"`
	Quantity    int       `db:"quantity" json:"quantity"`
	EntryPrice  float64   `db:"entry_price" json:"entry_price"`
	ExitPrice   float64   `db:"exit_price" json:"exit_price"`
	PnL         float64   `db:"pnl" json:"pnl"`
	EntryZScore float64   `db:"entry_zscore" json:"entry_zscore"`
	ExitZScore  float64   `db:"exit_zscore" json:"exit_zscore"`
	Reason      string    `db:"reason" json:"reason"`
	OrderID     string    `db:"order_id" json:"order_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// BacktestRun is the summary row for one completed backtest.
type BacktestRun struct {
	ID           string    `db:"id" json:"id"`
	Symbol       string    `db:"symbol" json:"symbol"`
	Lookback     int       `db:"lookback" json:"lookback"`
	EntryZ       float64   `db:"entry_z" json:"entry_z"`
	ExitZ        float64   `db:"exit_z" json:"exit_z"`
	Slippage     float64   `db:"slippage" json:"slippage"`
	Multiplier   float64   `db:"multiplier" json:"multiplier"`
	TotalTrades  int       `db:"total_trades" json:"total_trades"`
	WinRate      float64   `db:"win_rate" json:"win_rate"`
	TotalPnL     float64   `db:"total_pnl" json:"total_pnl"`
	MaxDrawdown  float64   `db:"max_drawdown" json:"max_drawdown"`
	ProfitFactor float64   `db:"profit_factor" json:"profit_factor"`
	SharpeRatio  float64   `db:"sharpe_ratio" json:"sharpe_ratio"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// WalkForwardRun is the summary row for one walk-forward analysis.
type WalkForwardRun struct {
	ID              string    `db:"id" json:"id"`
	Symbol          string    `db:"symbol" json:"symbol"`
	Folds           int       `db:"folds" json:"folds"`
	TrainRatio      float64   `db:"train_ratio" json:"train_ratio"`
	TotalTrades     int       `db:"total_trades" json:"total_trades"`
	TotalPnL        float64   `db:"total_pnl" json:"total_pnl"`
	ProfitableFolds int       `db:"profitable_folds" json:"profitable_folds"`
	AggregateSharpe float64   `db:"aggregate_sharpe" json:"aggregate_sharpe"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// TimeRange bounds a query window, inclusive on both ends.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// TradeStore persists completed trades.
type TradeStore interface {
	Insert(ctx context.Context, trade *Trade) error
	InsertBatch(ctx context.Context, trades []Trade) error
	ListBySymbol(ctx context.Context, symbol string, tr TimeRange, limit int) ([]Trade, error)
	DailyPnL(ctx context.Context, symbol string, day time.Time) (float64, error)
}

// RunStore persists backtest and walk-forward summaries.
type RunStore interface {
	InsertBacktest(ctx context.Context, run *BacktestRun) error
	InsertWalkForward(ctx context.Context, run *WalkForwardRun) error
	ListRecentBacktests(ctx context.Context, limit int) ([]BacktestRun, error)
}

// Repository bundles the stores the trading paths need.
type Repository struct {
	Trades TradeStore
	Runs   RunStore
}
