package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSFeedConfig configures the streaming bar feed.
type WSFeedConfig struct {
	URL            string        `yaml:"url"`
	Symbol         string        `yaml:"symbol"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	MaxReconnects  int           `yaml:"max_reconnects"`
}

// DefaultWSFeedConfig returns conservative streaming defaults.
func DefaultWSFeedConfig() WSFeedConfig {
	return WSFeedConfig{
		DialTimeout:    10 * time.Second,
		ReadTimeout:    90 * time.Second,
		ReconnectDelay: 5 * time.Second,
		MaxReconnects:  5,
	}
}

// wsBarMessage is the wire shape of one streamed bar.
type wsBarMessage struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"ts"` // unix milliseconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// WSFeed streams bars from a websocket endpoint, reconnecting with a fixed
// delay until MaxReconnects consecutive failures. Bars for other symbols
// are dropped; malformed frames are logged and skipped so one bad message
// cannot stall the live loop.
type WSFeed struct {
	config WSFeedConfig
	dialer *websocket.Dialer
	conn   *websocket.Conn
}

// NewWSFeed builds a websocket bar feed.
func NewWSFeed(config WSFeedConfig) (*WSFeed, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("websocket feed URL is required")
	}
	if config.Symbol == "" {
		return nil, fmt.Errorf("websocket feed symbol is required")
	}
	return &WSFeed{
		config: config,
		dialer: &websocket.Dialer{HandshakeTimeout: config.DialTimeout},
	}, nil
}

func (f *WSFeed) connect(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.config.URL, err)
	}

	sub := map[string]string{"op": "subscribe", "symbol": f.config.Symbol}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe %s: %w", f.config.Symbol, err)
	}

	f.conn = conn
	log.Info().Str("url", f.config.URL).Str("symbol", f.config.Symbol).Msg("Bar stream connected")
	return nil
}

// Next blocks until the next valid bar for the configured symbol arrives.
func (f *WSFeed) Next(ctx context.Context) (Bar, error) {
	reconnects := 0
	for {
		if err := ctx.Err(); err != nil {
			return Bar{}, err
		}

		if f.conn == nil {
			if err := f.connect(ctx); err != nil {
				reconnects++
				if reconnects > f.config.MaxReconnects {
					return Bar{}, fmt.Errorf("bar stream gave up after %d reconnects: %w", reconnects-1, err)
				}
				log.Warn().Err(err).Int("attempt", reconnects).Msg("Bar stream reconnecting")
				select {
				case <-ctx.Done():
					return Bar{}, ctx.Err()
				case <-time.After(f.config.ReconnectDelay):
				}
				continue
			}
			reconnects = 0
		}

		f.conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
		_, payload, err := f.conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("Bar stream read failed, dropping connection")
			f.conn.Close()
			f.conn = nil
			continue
		}

		var msg wsBarMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Warn().Err(err).Msg("Skipping malformed bar frame")
			continue
		}
		if msg.Symbol != f.config.Symbol {
			continue
		}

		bar := Bar{
			Timestamp: time.UnixMilli(msg.Timestamp).UTC(),
			Open:      msg.Open,
			High:      msg.High,
			Low:       msg.Low,
			Close:     msg.Close,
			Volume:    msg.Volume,
		}
		if err := bar.Validate(); err != nil {
			log.Warn().Err(err).Msg("Skipping invalid bar")
			continue
		}
		return bar, nil
	}
}

// Close tears down the connection.
func (f *WSFeed) Close() error {
	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	f.conn = nil
	return err
}
