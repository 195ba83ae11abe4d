package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/revertlabs/meanrev/internal/backtest"
	"github.com/revertlabs/meanrev/internal/persistence"
)

func newWalkForwardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "walkforward",
		Short: "Run out-of-sample walk-forward analysis",
		Long: `Partitions the bar series into sequential folds and backtests each
fold's validation slice, reporting per-fold and aggregate metrics. Folds
run concurrently; results are deterministic for a given series.`,
		RunE: runWalkForward,
	}
	addReplayFlags(cmd)
	cmd.Flags().Int("folds", 5, "Number of folds")
	cmd.Flags().Float64("train-ratio", 0.7, "Training fraction of each fold")
	cmd.Flags().Bool("no-save", false, "Skip persisting the run summary")
	return cmd
}

func runWalkForward(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	bars, err := loadBars(ctx, cmd, cfg)
	if err != nil {
		return err
	}

	folds, _ := cmd.Flags().GetInt("folds")
	trainRatio, _ := cmd.Flags().GetFloat64("train-ratio")
	wfCfg := backtest.WalkForwardConfig{
		Strategy:   strategyFromFlags(cmd, cfg),
		Folds:      folds,
		TrainRatio: trainRatio,
	}

	analyzer, err := backtest.NewAnalyzer(wfCfg)
	if err != nil {
		return err
	}
	result, err := analyzer.Run(bars)
	if err != nil {
		return err
	}

	backtest.WriteWalkForwardReport(os.Stdout, wfCfg, result)

	if noSave, _ := cmd.Flags().GetBool("no-save"); noSave {
		return nil
	}

	manager, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer manager.Close()
	if !manager.IsEnabled() {
		return nil
	}

	run := &persistence.WalkForwardRun{
		Symbol:          cfg.Instrument.Symbol,
		Folds:           wfCfg.Folds,
		TrainRatio:      wfCfg.TrainRatio,
		TotalTrades:     result.TotalTrades,
		TotalPnL:        result.TotalPnL,
		ProfitableFolds: result.ProfitableFolds,
		AggregateSharpe: result.AggregateSharpe,
	}
	if err := manager.Repository().Runs.InsertWalkForward(ctx, run); err != nil {
		return err
	}
	log.Info().Str("run_id", run.ID).Msg("walk-forward run saved")
	return nil
}
