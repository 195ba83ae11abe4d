// Package postgres implements the persistence stores on PostgreSQL via
// sqlx. Every query runs under a per-call timeout derived from the repo's
// configured query timeout.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/revertlabs/meanrev/internal/persistence"
)

// tradesRepo implements persistence.TradeStore.
type tradesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTradesRepo creates a PostgreSQL trade store.
func NewTradesRepo(db *sqlx.DB, timeout time.Duration) persistence.TradeStore {
	return &tradesRepo{db: db, timeout: timeout}
}

// Insert adds one completed trade and fills in its generated ID.
func (r *tradesRepo) Insert(ctx context.Context, trade *persistence.Trade) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO trades (ts, symbol, side, quantity, entry_price, exit_price,
		                    pnl, entry_zscore, exit_zscore, reason, order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		trade.Timestamp, trade.Symbol, trade.Side, trade.Quantity,
		trade.EntryPrice, trade.ExitPrice, trade.PnL,
		trade.EntryZScore, trade.ExitZScore, trade.Reason, trade.OrderID).
		Scan(&trade.ID, &trade.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate trade: %w", err)
		}
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// InsertBatch writes a trade list atomically. Used after backtests to flush
// the full trade log in one transaction.
func (r *tradesRepo) InsertBatch(ctx context.Context, trades []persistence.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(trades)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (ts, symbol, side, quantity, entry_price, exit_price,
		                    pnl, entry_zscore, exit_zscore, reason, order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, trade := range trades {
		_, err = stmt.ExecContext(ctx,
			trade.Timestamp, trade.Symbol, trade.Side, trade.Quantity,
			trade.EntryPrice, trade.ExitPrice, trade.PnL,
			trade.EntryZScore, trade.ExitZScore, trade.Reason, trade.OrderID)
		if err != nil {
			return fmt.Errorf("failed to insert trade in batch: %w", err)
		}
	}

	return tx.Commit()
}

// ListBySymbol retrieves trades for a symbol within the time range, newest
// first.
func (r *tradesRepo) ListBySymbol(ctx context.Context, symbol string, tr persistence.TimeRange, limit int) ([]persistence.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, ts, symbol, side, quantity, entry_price, exit_price,
		       pnl, entry_zscore, exit_zscore, reason, order_id, created_at
		FROM trades
		WHERE symbol = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts DESC
		LIMIT $4`

	var trades []persistence.Trade
	if err := r.db.SelectContext(ctx, &trades, query, symbol, tr.From, tr.To, limit); err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// DailyPnL sums realized PnL for the UTC day containing the given time.
// A day with no trades reads as zero.
func (r *tradesRepo) DailyPnL(ctx context.Context, symbol string, day time.Time) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	query := `
		SELECT COALESCE(SUM(pnl), 0)
		FROM trades
		WHERE symbol = $1 AND ts >= $2 AND ts < $3`

	var pnl float64
	err := r.db.QueryRowxContext(ctx, query, symbol, start, end).Scan(&pnl)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to sum daily pnl: %w", err)
	}
	return pnl, nil
}
