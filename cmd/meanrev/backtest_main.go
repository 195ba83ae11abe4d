package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/revertlabs/meanrev/internal/backtest"
	"github.com/revertlabs/meanrev/internal/config"
	"github.com/revertlabs/meanrev/internal/persistence"
)

func newBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay historical or simulated bars through the strategy",
		Long: `Runs one backtest over a bar series. Without --from the series is
generated by the deterministic market simulator; with --from bars are
fetched from the configured history provider (cached in Redis when
available). The run summary is stored when a database is configured.`,
		RunE: runBacktest,
	}
	addReplayFlags(cmd)
	cmd.Flags().Bool("no-save", false, "Skip persisting the run summary")
	return cmd
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	bars, err := loadBars(ctx, cmd, cfg)
	if err != nil {
		return err
	}

	btCfg := strategyFromFlags(cmd, cfg)
	engine, err := backtest.NewEngine(btCfg)
	if err != nil {
		return err
	}

	result, err := engine.Run(bars)
	if err != nil {
		return err
	}

	backtest.WriteReport(os.Stdout, btCfg, result)

	if noSave, _ := cmd.Flags().GetBool("no-save"); noSave {
		return nil
	}
	return saveBacktestRun(ctx, cfg, btCfg, result)
}

// saveBacktestRun stores the summary and the full trade log. A disabled
// database makes this a no-op.
func saveBacktestRun(ctx context.Context, cfg *config.Config, btCfg backtest.Config, result *backtest.Result) error {
	manager, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	if !manager.IsEnabled() {
		return nil
	}
	repo := manager.Repository()

	run := &persistence.BacktestRun{
		Symbol:       cfg.Instrument.Symbol,
		Lookback:     btCfg.Lookback,
		EntryZ:       btCfg.EntryZ,
		ExitZ:        btCfg.ExitZ,
		Slippage:     btCfg.Slippage,
		Multiplier:   btCfg.Multiplier,
		TotalTrades:  result.TotalTrades,
		WinRate:      result.WinRate,
		TotalPnL:     result.TotalPnL,
		MaxDrawdown:  result.MaxDrawdown,
		ProfitFactor: result.ProfitFactor,
		SharpeRatio:  result.SharpeRatio,
	}
	if err := repo.Runs.InsertBacktest(ctx, run); err != nil {
		return err
	}

	trades := make([]persistence.Trade, 0, len(result.Trades))
	for _, t := range result.Trades {
		side := "LONG"
		if t.Quantity < 0 {
			side = "SHORT"
		}
		trades = append(trades, persistence.Trade{
			Timestamp:   t.Timestamp,
			Symbol:      cfg.Instrument.Symbol,
			Side:        side,
			Quantity:    t.Quantity,
			EntryPrice:  t.EntryPrice,
			ExitPrice:   t.ExitPrice,
			PnL:         t.PnL,
			EntryZScore: t.EntryZScore,
			ExitZScore:  t.ExitZScore,
			OrderID:     run.ID,
		})
	}
	if err := repo.Trades.InsertBatch(ctx, trades); err != nil {
		return err
	}

	log.Info().Str("run_id", run.ID).Int("trades", len(trades)).Msg("backtest run saved")
	return nil
}
