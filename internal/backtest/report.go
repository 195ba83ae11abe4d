package backtest

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// WriteReport renders the result as an aligned summary table followed by the
// most recent trades.
func WriteReport(w io.Writer, cfg Config, res *Result) {
	fmt.Fprintf(w, "Backtest  lookback=%d entry=%.2f exit=%.2f slippage=%.2f\n\n",
		cfg.Lookback, cfg.EntryZ, cfg.ExitZ, cfg.Slippage)

	summary := tablewriter.NewWriter(w)
	summary.Header("Metric", "Value")
	summary.Append("Total Trades", fmt.Sprintf("%d", res.TotalTrades))
	summary.Append("Win Rate", fmt.Sprintf("%.1f%%", res.WinRate))
	summary.Append("Total PnL", fmt.Sprintf("%.2f", res.TotalPnL))
	summary.Append("Max Drawdown", fmt.Sprintf("%.2f", res.MaxDrawdown))
	summary.Append("Avg Win", fmt.Sprintf("%.2f", res.AvgWin))
	summary.Append("Avg Loss", fmt.Sprintf("%.2f", res.AvgLoss))
	summary.Append("Profit Factor", fmt.Sprintf("%.2f", res.ProfitFactor))
	summary.Append("Sharpe Ratio", fmt.Sprintf("%.2f", res.SharpeRatio))
	summary.Render()

	if len(res.Trades) == 0 {
		return
	}

	// Tail of the trade log; full logs go to persistence, not the console.
	const maxRows = 20
	trades := res.Trades
	if len(trades) > maxRows {
		trades = trades[len(trades)-maxRows:]
	}

	fmt.Fprintf(w, "\nLast %d trades:\n", len(trades))
	tt := tablewriter.NewWriter(w)
	tt.Header("Exit Time", "Side", "Entry", "Exit", "PnL", "Entry Z", "Exit Z")
	for _, t := range trades {
		side := "LONG"
		if t.Quantity < 0 {
			side = "SHORT"
		}
		tt.Append(
			t.Timestamp.Format("2006-01-02 15:04"),
			side,
			fmt.Sprintf("%.2f", t.EntryPrice),
			fmt.Sprintf("%.2f", t.ExitPrice),
			fmt.Sprintf("%.2f", t.PnL),
			fmt.Sprintf("%.2f", t.EntryZScore),
			fmt.Sprintf("%.2f", t.ExitZScore),
		)
	}
	tt.Render()
}

// WriteWalkForwardReport renders per-fold validation results and the
// cross-fold aggregates.
func WriteWalkForwardReport(w io.Writer, cfg WalkForwardConfig, res *WalkForwardResult) {
	fmt.Fprintf(w, "Walk-forward  folds=%d train_ratio=%.2f lookback=%d entry=%.2f exit=%.2f\n\n",
		cfg.Folds, cfg.TrainRatio, cfg.Strategy.Lookback, cfg.Strategy.EntryZ, cfg.Strategy.ExitZ)

	ft := tablewriter.NewWriter(w)
	ft.Header("Fold", "Valid Bars", "Trades", "PnL", "Win Rate", "Sharpe", "Max DD")
	for _, f := range res.Folds {
		ft.Append(
			fmt.Sprintf("%d", f.Fold),
			fmt.Sprintf("%d", f.ValidationBars),
			fmt.Sprintf("%d", f.Trades),
			fmt.Sprintf("%.2f", f.ValidationPnL),
			fmt.Sprintf("%.1f%%", f.WinRate),
			fmt.Sprintf("%.2f", f.SharpeRatio),
			fmt.Sprintf("%.2f", f.MaxDrawdown),
		)
	}
	ft.Render()

	fmt.Fprintf(w, "\nTotal PnL: %.2f   Trades: %d   Win rate: %.1f%%   Profitable folds: %d/%d   Profit factor: %.2f   Aggregate Sharpe: %.2f\n",
		res.TotalPnL, res.TotalTrades, res.WinRate, res.ProfitableFolds, len(res.Folds), res.ProfitFactor, res.AggregateSharpe)
}
