package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/revertlabs/meanrev/internal/backtest"
	"github.com/revertlabs/meanrev/internal/config"
	"github.com/revertlabs/meanrev/internal/infrastructure/db"
	"github.com/revertlabs/meanrev/internal/market"
	"github.com/revertlabs/meanrev/internal/risk"
)

// riskLimits converts the config risk section into breaker limits.
func riskLimits(cfg *config.Config) risk.Limits {
	return risk.Limits{
		MaxDailyLoss:         cfg.Risk.MaxDailyLoss,
		MaxConsecutiveLosses: cfg.Risk.MaxConsecutiveLosses,
		MaxDrawdown:          cfg.Risk.MaxDrawdown,
		MaxPositionDuration:  cfg.Risk.MaxPositionDuration.Std(),
		MaxTradesPerDay:      cfg.Risk.MaxTradesPerDay,
		MaxPositionSize:      cfg.Risk.MaxPositionSize,
		Cooldown:             cfg.Risk.Cooldown.Std(),
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		// Missing file falls back to defaults so replay commands work out
		// of the box; any other load failure is fatal.
		if !cmd.Flags().Changed("config") {
			log.Debug().Err(err).Msg("no config file, using defaults")
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// addReplayFlags registers the bar-source flags shared by the replay
// commands.
func addReplayFlags(cmd *cobra.Command) {
	cmd.Flags().Int("days", 30, "Simulated trading days when no history range is given")
	cmd.Flags().Int64("seed", 1, "Simulator random seed")
	cmd.Flags().String("from", "", "History start (RFC3339); requires market.history_url")
	cmd.Flags().String("to", "", "History end (RFC3339)")
	cmd.Flags().Int("lookback", 0, "Override strategy lookback")
	cmd.Flags().Float64("entry-z", 0, "Override entry Z-Score threshold")
	cmd.Flags().Float64("exit-z", 0, "Override exit Z-Score threshold")
}

// strategyFromFlags builds the backtest config from file config plus flag
// overrides.
func strategyFromFlags(cmd *cobra.Command, cfg *config.Config) backtest.Config {
	bc := backtest.Config{
		Lookback:   cfg.Strategy.Lookback,
		EntryZ:     cfg.Strategy.EntryZ,
		ExitZ:      cfg.Strategy.ExitZ,
		Multiplier: cfg.Instrument.Multiplier,
		Slippage:   cfg.Instrument.Slippage,
	}
	if v, _ := cmd.Flags().GetInt("lookback"); v > 0 {
		bc.Lookback = v
	}
	if v, _ := cmd.Flags().GetFloat64("entry-z"); v > 0 {
		bc.EntryZ = v
	}
	if v, _ := cmd.Flags().GetFloat64("exit-z"); v > 0 {
		bc.ExitZ = v
	}
	return bc
}

// loadBars fetches historical bars when a range is given, falling through a
// Redis cache when configured; otherwise it generates a simulated series.
func loadBars(ctx context.Context, cmd *cobra.Command, cfg *config.Config) ([]market.Bar, error) {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")

	if fromStr == "" {
		days, _ := cmd.Flags().GetInt("days")
		seed, _ := cmd.Flags().GetInt64("seed")

		simCfg := market.DefaultSimulatorConfig()
		simCfg.Days = days
		simCfg.Seed = seed
		bars := market.GenerateBars(simCfg)
		log.Info().Int("bars", len(bars)).Int("days", days).Int64("seed", seed).
			Msg("generated simulated bars")
		return bars, nil
	}

	if cfg.Market.HistoryURL == "" {
		return nil, fmt.Errorf("--from requires market.history_url in the config")
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return nil, fmt.Errorf("invalid --from: %w", err)
	}
	to := time.Now().UTC()
	if toStr != "" {
		if to, err = time.Parse(time.RFC3339, toStr); err != nil {
			return nil, fmt.Errorf("invalid --to: %w", err)
		}
	}

	var cache *market.BarCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, fetching without cache")
		} else {
			cache = market.NewBarCache(client, "", cfg.Redis.TTL.Std())
		}
	}

	if cache != nil {
		if bars, ok := cache.Get(ctx, cfg.Instrument.Symbol, from, to); ok {
			log.Info().Int("bars", len(bars)).Msg("loaded bars from cache")
			return bars, nil
		}
	}

	client, err := market.NewHistoryClient(market.HistoryClientConfig{BaseURL: cfg.Market.HistoryURL})
	if err != nil {
		return nil, err
	}
	bars, err := client.Bars(ctx, cfg.Instrument.Symbol, from, to)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Put(ctx, cfg.Instrument.Symbol, from, to, bars)
	}
	log.Info().Int("bars", len(bars)).Msg("fetched historical bars")
	return bars, nil
}

// openDB builds the persistence manager from config. Disabled unless a DSN
// is configured.
func openDB(ctx context.Context, cfg *config.Config) (*db.Manager, error) {
	manager, err := db.NewManager(db.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime.Std(),
		QueryTimeout:    30 * time.Second,
		Enabled:         cfg.Database.DSN != "",
	})
	if err != nil {
		return nil, err
	}
	if err := manager.EnsureSchema(ctx); err != nil {
		manager.Close()
		return nil, err
	}
	return manager, nil
}
