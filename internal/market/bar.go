// Package market defines the bar data model and the sources that produce
// ordered bar streams: historical slices, a synthetic generator, a websocket
// feed, and a rate-limited REST poller. The decision core reads only the
// close price; the rest of the bar rides along for consumers that want it.
package market

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV interval. Immutable once recorded.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Validate rejects bars whose close is non-finite. Bars must also carry a
// timestamp so replay slices can be ordered.
func (b Bar) Validate() error {
	if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
		return fmt.Errorf("bar at %s has non-finite close %v", b.Timestamp, b.Close)
	}
	if b.Timestamp.IsZero() {
		return fmt.Errorf("bar is missing a timestamp")
	}
	return nil
}

// Feed yields time-ordered bars. Next blocks until a bar is available, the
// feed is exhausted (io.EOF semantics via ErrFeedClosed), or the context is
// cancelled. Gap-filling is the producer's problem, never the consumer's.
type Feed interface {
	Next(ctx context.Context) (Bar, error)
}

// ErrFeedClosed signals orderly end of a bar stream.
var ErrFeedClosed = fmt.Errorf("market feed closed")

// SliceFeed replays an in-memory bar slice, used by backtests and tests.
type SliceFeed struct {
	bars []Bar
	idx  int
}

// NewSliceFeed wraps bars in a Feed.
func NewSliceFeed(bars []Bar) *SliceFeed {
	return &SliceFeed{bars: bars}
}

// Next returns the next bar or ErrFeedClosed once exhausted.
func (f *SliceFeed) Next(ctx context.Context) (Bar, error) {
	if err := ctx.Err(); err != nil {
		return Bar{}, err
	}
	if f.idx >= len(f.bars) {
		return Bar{}, ErrFeedClosed
	}
	bar := f.bars[f.idx]
	f.idx++
	return bar, nil
}
