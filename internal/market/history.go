package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// HistoryClientConfig configures the historical bar fetcher.
type HistoryClientConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RPS            float64       `yaml:"rps"`
	Burst          int           `yaml:"burst"`
}

// DefaultHistoryClientConfig returns polite polling defaults.
func DefaultHistoryClientConfig() HistoryClientConfig {
	return HistoryClientConfig{
		RequestTimeout: 15 * time.Second,
		RPS:            2,
		Burst:          4,
	}
}

// HistoryClient fetches historical bars over REST, throttled by a token
// bucket and guarded by a circuit breaker so a degraded data provider is
// backed off rather than hammered.
type HistoryClient struct {
	config  HistoryClientConfig
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewHistoryClient builds the rate-limited, breaker-guarded client.
func NewHistoryClient(config HistoryClientConfig) (*HistoryClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("history client base URL is required")
	}
	defaults := DefaultHistoryClientConfig()
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.RPS <= 0 {
		config.RPS = defaults.RPS
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}

	settings := gobreaker.Settings{Name: "bar-history"}
	settings.Interval = 60 * time.Second
	settings.Timeout = 60 * time.Second
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
			Msg("History provider breaker state changed")
	}

	return &HistoryClient{
		config:  config,
		http:    &http.Client{Timeout: config.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(config.RPS), config.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}, nil
}

// Bars fetches time-ordered bars for symbol in [from, to).
func (c *HistoryClient) Bars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, symbol, from, to)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch bars for %s: %w", symbol, err)
	}
	return result.([]Bar), nil
}

func (c *HistoryClient) fetch(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/v1/bars?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bar history returned HTTP %d", resp.StatusCode)
	}

	var payload struct {
		Bars []wsBarMessage `json:"bars"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode bar history: %w", err)
	}

	bars := make([]Bar, 0, len(payload.Bars))
	for _, m := range payload.Bars {
		bar := Bar{
			Timestamp: time.UnixMilli(m.Timestamp).UTC(),
			Open:      m.Open,
			High:      m.High,
			Low:       m.Low,
			Close:     m.Close,
			Volume:    m.Volume,
		}
		if err := bar.Validate(); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Dropping invalid history bar")
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
