package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/revertlabs/meanrev/internal/alerts"
	"github.com/revertlabs/meanrev/internal/engine"
	"github.com/revertlabs/meanrev/internal/execution"
	"github.com/revertlabs/meanrev/internal/httpapi"
	"github.com/revertlabs/meanrev/internal/market"
	"github.com/revertlabs/meanrev/internal/metrics"
)

func newLiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Trade a live websocket bar feed",
		Long: `Connects to the configured websocket feed and runs the trading loop
until interrupted. Orders route to the paper router; completed trades are
persisted when a database is configured and alerts go to Telegram when
enabled. A status API serves /health, /status and /metrics.`,
		RunE: runLive,
	}
	return cmd
}

func runLive(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Market.WSURL == "" {
		return fmt.Errorf("live trading requires market.ws_url in the config")
	}

	manager, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	var notifier alerts.Notifier = alerts.Noop{}
	if cfg.Alerts.Telegram.Enabled {
		notifier, err = alerts.NewTelegram(cfg.Alerts.Telegram.Token, cfg.Alerts.Telegram.ChatID)
		if err != nil {
			return err
		}
	}

	calendar, err := engine.NewSessionCalendar(cfg.Hours.Timezone, cfg.Hours.Open, cfg.Hours.Close)
	if err != nil {
		return err
	}

	m := metrics.New()
	eng, err := engine.New(engine.Config{
		Symbol:     cfg.Instrument.Symbol,
		Lookback:   cfg.Strategy.Lookback,
		EntryZ:     cfg.Strategy.EntryZ,
		ExitZ:      cfg.Strategy.ExitZ,
		Multiplier: cfg.Instrument.Multiplier,
		Slippage:   cfg.Instrument.Slippage,
	}, riskLimits(cfg), execution.NewPaperRouter(), calendar, manager.Repository(), notifier, m)
	if err != nil {
		return err
	}

	wsCfg := market.DefaultWSFeedConfig()
	wsCfg.URL = cfg.Market.WSURL
	wsCfg.Symbol = cfg.Instrument.Symbol
	feed, err := market.NewWSFeed(wsCfg)
	if err != nil {
		return err
	}
	defer feed.Close()

	api := httpapi.New(cfg.HTTP.Addr, eng, m, manager)
	apiErr := make(chan error, 1)
	go func() { apiErr <- api.Start(ctx) }()

	alerts.LogErr(ctx, notifier, fmt.Sprintf("meanrev %s live on %s", version, cfg.Instrument.Symbol))

	runErr := eng.Run(ctx, feed)
	stop()

	if err := <-apiErr; err != nil {
		log.Error().Err(err).Msg("http api error")
	}
	return runErr
}
