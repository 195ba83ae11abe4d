package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "meanrev"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Mean-reversion trading engine for index futures",
		Version: version,
		Long: `meanrev trades a rolling Z-Score mean-reversion strategy on index
futures. It replays history (backtest, walkforward), stress-tests the live
loop against simulated data (simulate), and trades a live bar feed (live).`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString("log-level")
			if parsed, err := zerolog.ParseLevel(level); err == nil {
				zerolog.SetGlobalLevel(parsed)
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace|debug|info|warn|error)")

	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(newWalkForwardCmd())
	rootCmd.AddCommand(newSimulateCmd())
	rootCmd.AddCommand(newLiveCmd())
	rootCmd.AddCommand(newReportCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
