package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/revertlabs/meanrev/internal/persistence"
)

// runsRepo implements persistence.RunStore.
type runsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRunsRepo creates a PostgreSQL run store.
func NewRunsRepo(db *sqlx.DB, timeout time.Duration) persistence.RunStore {
	return &runsRepo{db: db, timeout: timeout}
}

// InsertBacktest writes a backtest summary. A missing ID is assigned here so
// callers can correlate the run with its batch of trades.
func (r *runsRepo) InsertBacktest(ctx context.Context, run *persistence.BacktestRun) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	query := `
		INSERT INTO backtest_runs (id, symbol, lookback, entry_z, exit_z, slippage,
		                           multiplier, total_trades, win_rate, total_pnl,
		                           max_drawdown, profit_factor, sharpe_ratio)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query,
		run.ID, run.Symbol, run.Lookback, run.EntryZ, run.ExitZ, run.Slippage,
		run.Multiplier, run.TotalTrades, run.WinRate, run.TotalPnL,
		run.MaxDrawdown, run.ProfitFactor, run.SharpeRatio).
		Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert backtest run: %w", err)
	}
	return nil
}

// InsertWalkForward writes a walk-forward summary.
func (r *runsRepo) InsertWalkForward(ctx context.Context, run *persistence.WalkForwardRun) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	query := `
		INSERT INTO walkforward_runs (id, symbol, folds, train_ratio, total_trades,
		                              total_pnl, profitable_folds, aggregate_sharpe)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query,
		run.ID, run.Symbol, run.Folds, run.TrainRatio, run.TotalTrades,
		run.TotalPnL, run.ProfitableFolds, run.AggregateSharpe).
		Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert walk-forward run: %w", err)
	}
	return nil
}

// ListRecentBacktests returns the newest backtest summaries.
func (r *runsRepo) ListRecentBacktests(ctx context.Context, limit int) ([]persistence.BacktestRun, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, symbol, lookback, entry_z, exit_z, slippage, multiplier,
		       total_trades, win_rate, total_pnl, max_drawdown, profit_factor,
		       sharpe_ratio, created_at
		FROM backtest_runs
		ORDER BY created_at DESC
		LIMIT $1`

	var runs []persistence.BacktestRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list backtest runs: %w", err)
	}
	return runs, nil
}
