package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/revertlabs/meanrev/internal/persistence"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show stored trades and run summaries",
		Long: `Reads the configured database and prints the day's realized PnL,
recent trades for the configured instrument, and the most recent backtest
run summaries. Requires database.dsn in the config.`,
		RunE: runReport,
	}
	cmd.Flags().Int("runs", 10, "Number of recent backtest runs to list")
	cmd.Flags().Int("trades", 20, "Number of recent trades to list")
	cmd.Flags().String("day", "", "Day for the PnL summary (YYYY-MM-DD, default today)")
	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	manager, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer manager.Close()
	if !manager.IsEnabled() {
		return fmt.Errorf("report requires database.dsn in the config")
	}
	repo := manager.Repository()

	day := time.Now().UTC()
	if dayStr, _ := cmd.Flags().GetString("day"); dayStr != "" {
		if day, err = time.Parse("2006-01-02", dayStr); err != nil {
			return fmt.Errorf("invalid --day: %w", err)
		}
	}

	pnl, err := repo.Trades.DailyPnL(ctx, cfg.Instrument.Symbol, day)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Realized PnL for %s on %s: %.2f\n\n",
		cfg.Instrument.Symbol, day.Format("2006-01-02"), pnl)

	tradeLimit, _ := cmd.Flags().GetInt("trades")
	trades, err := repo.Trades.ListBySymbol(ctx, cfg.Instrument.Symbol, persistence.TimeRange{
		From: day.AddDate(0, 0, -30),
		To:   day.AddDate(0, 0, 1),
	}, tradeLimit)
	if err != nil {
		return err
	}
	writeTradeTable(trades)

	runLimit, _ := cmd.Flags().GetInt("runs")
	runs, err := repo.Runs.ListRecentBacktests(ctx, runLimit)
	if err != nil {
		return err
	}
	writeRunTable(runs)

	return nil
}

func writeTradeTable(trades []persistence.Trade) {
	fmt.Fprintf(os.Stdout, "Recent trades (%d):\n", len(trades))
	if len(trades) == 0 {
		fmt.Fprintln(os.Stdout, "  none recorded")
		return
	}

	tt := tablewriter.NewWriter(os.Stdout)
	tt.Header("Time", "Side", "Qty", "Entry", "Exit", "PnL", "Reason")
	for _, t := range trades {
		tt.Append(
			t.Timestamp.Format("2006-01-02 15:04"),
			t.Side,
			fmt.Sprintf("%d", t.Quantity),
			fmt.Sprintf("%.2f", t.EntryPrice),
			fmt.Sprintf("%.2f", t.ExitPrice),
			fmt.Sprintf("%.2f", t.PnL),
			t.Reason,
		)
	}
	tt.Render()
}

func writeRunTable(runs []persistence.BacktestRun) {
	fmt.Fprintf(os.Stdout, "\nRecent backtest runs (%d):\n", len(runs))
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "  none recorded")
		return
	}

	rt := tablewriter.NewWriter(os.Stdout)
	rt.Header("Created", "Lookback", "Entry Z", "Exit Z", "Trades", "Win Rate", "PnL", "Sharpe")
	for _, r := range runs {
		rt.Append(
			r.CreatedAt.Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", r.Lookback),
			fmt.Sprintf("%.2f", r.EntryZ),
			fmt.Sprintf("%.2f", r.ExitZ),
			fmt.Sprintf("%d", r.TotalTrades),
			fmt.Sprintf("%.1f%%", r.WinRate),
			fmt.Sprintf("%.2f", r.TotalPnL),
			fmt.Sprintf("%.2f", r.SharpeRatio),
		)
	}
	rt.Render()
}
