package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/revertlabs/meanrev/internal/engine"
	"github.com/revertlabs/meanrev/internal/execution"
	"github.com/revertlabs/meanrev/internal/market"
	"github.com/revertlabs/meanrev/internal/metrics"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive the live engine with simulated bars and paper fills",
		Long: `Runs the full live trading loop (signals, circuit breaker, order
routing, daily rollover) against deterministic simulated market data.
Unlike backtest, this path exercises the exact code the live command
runs, so it doubles as an integration rehearsal.`,
		RunE: runSimulate,
	}
	cmd.Flags().Int("days", 30, "Simulated trading days")
	cmd.Flags().Int64("seed", 1, "Simulator random seed")
	cmd.Flags().Float64("volatility", 0.5, "Per-bar volatility of the simulated series")
	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	days, _ := cmd.Flags().GetInt("days")
	seed, _ := cmd.Flags().GetInt64("seed")
	vol, _ := cmd.Flags().GetFloat64("volatility")

	simCfg := market.DefaultSimulatorConfig()
	simCfg.Days = days
	simCfg.Seed = seed
	simCfg.Volatility = vol
	feed := market.NewSliceFeed(market.GenerateBars(simCfg))

	router := execution.NewPaperRouter()
	m := metrics.New()

	eng, err := engine.New(engine.Config{
		Symbol:     cfg.Instrument.Symbol,
		Lookback:   cfg.Strategy.Lookback,
		EntryZ:     cfg.Strategy.EntryZ,
		ExitZ:      cfg.Strategy.ExitZ,
		Multiplier: cfg.Instrument.Multiplier,
		Slippage:   cfg.Instrument.Slippage,
	}, riskLimits(cfg), router, engine.AlwaysOpen{}, nil, nil, m)
	if err != nil {
		return err
	}

	if err := eng.Run(cmd.Context(), feed); err != nil {
		return err
	}

	st := eng.Status()
	fmt.Fprintf(cmd.OutOrStdout(),
		"Simulation finished: orders=%d equity=%.2f daily_trades=%d breaker_triggered=%v\n",
		len(router.Orders()), st.Equity, st.Daily.TradesCount, st.Breaker.Triggered)
	return nil
}
