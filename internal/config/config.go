// Package config loads and validates the YAML configuration file. All
// validation happens up front at load time; components downstream assume a
// valid config and never re-check.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can use Go duration syntax
// ("2h", "30m") instead of raw nanosecond counts.
type Duration time.Duration

// UnmarshalYAML parses Go duration syntax; bare numbers are rejected.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in Go syntax.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level configuration shape.
type Config struct {
	Strategy   StrategyConfig   `yaml:"strategy"`
	Risk       RiskConfig       `yaml:"risk"`
	Instrument InstrumentConfig `yaml:"instrument"`
	Hours      HoursConfig      `yaml:"hours"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	HTTP       HTTPConfig       `yaml:"http"`
	Market     MarketConfig     `yaml:"market"`
}

// StrategyConfig holds the Z-Score strategy parameters.
type StrategyConfig struct {
	Lookback int     `yaml:"lookback"`
	EntryZ   float64 `yaml:"entry_z"`
	ExitZ    float64 `yaml:"exit_z"`
}

// RiskConfig holds the circuit-breaker limits. Durations use Go syntax
// ("2h", "30m").
type RiskConfig struct {
	MaxDailyLoss         float64  `yaml:"max_daily_loss"`
	MaxConsecutiveLosses int      `yaml:"max_consecutive_losses"`
	MaxDrawdown          float64  `yaml:"max_drawdown"`
	MaxPositionDuration  Duration `yaml:"max_position_duration"`
	MaxTradesPerDay      int      `yaml:"max_trades_per_day"`
	MaxPositionSize      int      `yaml:"max_position_size"`
	Cooldown             Duration `yaml:"cooldown"`
}

// InstrumentConfig describes the traded contract.
type InstrumentConfig struct {
	Symbol     string  `yaml:"symbol"`
	Multiplier float64 `yaml:"multiplier"`
	TickSize   float64 `yaml:"tick_size"`
	Slippage   float64 `yaml:"slippage"`
}

// HoursConfig bounds the trading session in exchange-local wall time.
type HoursConfig struct {
	Timezone string `yaml:"timezone"`
	Open     string `yaml:"open"`
	Close    string `yaml:"close"`
}

// DatabaseConfig holds the Postgres connection parameters.
type DatabaseConfig struct {
	DSN             string   `yaml:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds the bar-cache connection parameters.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// AlertsConfig selects and parameterizes the notifier.
type AlertsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig holds bot credentials. The token is usually supplied via
// ${TELEGRAM_BOT_TOKEN} expansion rather than stored in the file.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

// HTTPConfig holds the status server bind address.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MarketConfig holds the data-feed endpoints.
type MarketConfig struct {
	WSURL      string `yaml:"ws_url"`
	HistoryURL string `yaml:"history_url"`
}

// Default returns a runnable configuration for one MES contract.
func Default() *Config {
	return &Config{
		Strategy: StrategyConfig{
			Lookback: 20,
			EntryZ:   2.0,
			ExitZ:    0.5,
		},
		Risk: RiskConfig{
			MaxDailyLoss:         500,
			MaxConsecutiveLosses: 3,
			MaxDrawdown:          1000,
			MaxPositionDuration:  Duration(2 * time.Hour),
			MaxTradesPerDay:      10,
			MaxPositionSize:      2,
			Cooldown:             Duration(30 * time.Minute),
		},
		Instrument: InstrumentConfig{
			Symbol:     "MES",
			Multiplier: 5.0,
			TickSize:   0.25,
			Slippage:   0.25,
		},
		Hours: HoursConfig{
			Timezone: "America/New_York",
			Open:     "09:30",
			Close:    "16:00",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration(30 * time.Minute),
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  Duration(15 * time.Minute),
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load reads the YAML file at path, expands ${ENV_VAR} references, overlays
// it onto the defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field the core depends on. Invalid configuration is
// fatal at startup, never patched at runtime.
func (c *Config) Validate() error {
	if c.Strategy.Lookback < 2 {
		return fmt.Errorf("strategy.lookback must be >= 2, got %d", c.Strategy.Lookback)
	}
	if c.Strategy.ExitZ <= 0 {
		return fmt.Errorf("strategy.exit_z must be > 0, got %v", c.Strategy.ExitZ)
	}
	if c.Strategy.EntryZ <= c.Strategy.ExitZ {
		return fmt.Errorf("strategy.entry_z (%v) must exceed strategy.exit_z (%v)",
			c.Strategy.EntryZ, c.Strategy.ExitZ)
	}

	if c.Risk.MaxDailyLoss <= 0 {
		return fmt.Errorf("risk.max_daily_loss must be > 0, got %v", c.Risk.MaxDailyLoss)
	}
	if c.Risk.MaxConsecutiveLosses <= 0 {
		return fmt.Errorf("risk.max_consecutive_losses must be > 0, got %d", c.Risk.MaxConsecutiveLosses)
	}
	if c.Risk.MaxDrawdown <= 0 {
		return fmt.Errorf("risk.max_drawdown must be > 0, got %v", c.Risk.MaxDrawdown)
	}
	if c.Risk.MaxPositionDuration <= 0 {
		return fmt.Errorf("risk.max_position_duration must be > 0, got %v", c.Risk.MaxPositionDuration)
	}
	if c.Risk.MaxTradesPerDay <= 0 {
		return fmt.Errorf("risk.max_trades_per_day must be > 0, got %d", c.Risk.MaxTradesPerDay)
	}
	if c.Risk.MaxPositionSize <= 0 {
		return fmt.Errorf("risk.max_position_size must be > 0, got %d", c.Risk.MaxPositionSize)
	}
	if c.Risk.Cooldown <= 0 {
		return fmt.Errorf("risk.cooldown must be > 0, got %v", c.Risk.Cooldown)
	}

	if c.Instrument.Symbol == "" {
		return fmt.Errorf("instrument.symbol is required")
	}
	if c.Instrument.Multiplier <= 0 {
		return fmt.Errorf("instrument.multiplier must be > 0, got %v", c.Instrument.Multiplier)
	}
	if c.Instrument.Slippage < 0 {
		return fmt.Errorf("instrument.slippage must be >= 0, got %v", c.Instrument.Slippage)
	}

	if c.Hours.Timezone != "" {
		if _, err := time.LoadLocation(c.Hours.Timezone); err != nil {
			return fmt.Errorf("hours.timezone: %w", err)
		}
	}
	for name, v := range map[string]string{"hours.open": c.Hours.Open, "hours.close": c.Hours.Close} {
		if v == "" {
			continue
		}
		if _, err := time.Parse("15:04", v); err != nil {
			return fmt.Errorf("%s must be HH:MM, got %q", name, v)
		}
	}

	if c.Alerts.Telegram.Enabled {
		if c.Alerts.Telegram.Token == "" || c.Alerts.Telegram.ChatID == "" {
			return fmt.Errorf("alerts.telegram requires token and chat_id when enabled")
		}
	}

	return nil
}
