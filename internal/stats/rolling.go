// Package stats provides numerically stable rolling-window statistics for
// price series. The naive variance formula (sum of squares minus square of
// mean) loses all precision once prices carry a large constant offset; the
// rolling window here uses the shifted-data algorithm instead, centering the
// running sums on a reference value taken from the window itself.
package stats

import (
	"errors"
	"fmt"
	"math"
)

// ErrNotFinite is returned when an update carries a NaN or infinite price.
// The window is left untouched so a bad tick cannot poison the statistics.
var ErrNotFinite = errors.New("price is not finite")

// Reading is a point-in-time view of the rolling window.
//
// Value is the Z-Score of the most recent sample against the window's mean
// and standard deviation. When the window has zero variance Value is 0 by
// definition, never NaN or Inf. Mean and StdDev are meaningful only when
// Ready is true.
type Reading struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Value  float64 `json:"value"`
	Ready  bool    `json:"ready"`
}

// Rolling maintains a fixed-capacity FIFO window of close prices and the
// shifted running sums needed to derive mean and sample variance in O(1)
// per update. Not safe for concurrent use; one writer per instance.
type Rolling struct {
	prices   []float64
	head     int
	count    int
	lookback int

	ref   float64 // reference value the sums are centered on
	sum   float64 // sum of (x - ref)
	sumSq float64 // sum of (x - ref)^2
}

// NewRolling creates a rolling window over the given lookback period.
func NewRolling(lookback int) (*Rolling, error) {
	if lookback < 2 {
		return nil, fmt.Errorf("lookback must be >= 2, got %d", lookback)
	}
	return &Rolling{
		prices:   make([]float64, lookback),
		lookback: lookback,
	}, nil
}

// Lookback returns the window capacity.
func (r *Rolling) Lookback() int { return r.lookback }

// Count returns the number of samples currently held.
func (r *Rolling) Count() int { return r.count }

// Ready reports whether the window is full.
func (r *Rolling) Ready() bool { return r.count == r.lookback }

// Update inserts a new price, evicting the oldest sample if the window is
// full, and returns the resulting reading. Non-finite prices are rejected
// without mutating the window.
func (r *Rolling) Update(price float64) (Reading, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return r.Reading(), fmt.Errorf("%w: %v", ErrNotFinite, price)
	}

	if r.count == 0 {
		r.ref = price
	}

	if r.count == r.lookback {
		r.evictOldest()
	}

	idx := (r.head + r.count) % r.lookback
	r.prices[idx] = price
	r.count++

	dx := price - r.ref
	r.sum += dx
	r.sumSq += dx * dx

	return r.Reading(), nil
}

// evictOldest removes the front sample and, if that sample was the reference
// value, re-centers the running sums on the new front. Without re-centering
// the sums drift as the window slides away from the original reference.
func (r *Rolling) evictOldest() {
	old := r.prices[r.head]
	dx := old - r.ref
	r.sum -= dx
	r.sumSq -= dx * dx
	r.head = (r.head + 1) % r.lookback
	r.count--

	if old == r.ref && r.count > 0 {
		newRef := r.prices[r.head]
		shift := r.ref - newRef
		n := float64(r.count)

		// sum'   = sum((x-oldRef) + shift)   = sum + n*shift
		// sumSq' = sum(((x-oldRef)+shift)^2) = sumSq + 2*shift*sum + n*shift^2
		r.sumSq += 2*shift*r.sum + n*shift*shift
		r.sum += n * shift
		r.ref = newRef
	}
}

// Mean returns the current window mean. Defined for any non-empty window.
func (r *Rolling) Mean() float64 {
	if r.count == 0 {
		return 0
	}
	return r.ref + r.sum/float64(r.count)
}

// StdDev returns the sample standard deviation of the window. Tiny negative
// variances from floating-point rounding clamp to zero.
func (r *Rolling) StdDev() float64 {
	if r.count < 2 {
		return 0
	}
	n := float64(r.count)
	variance := (r.sumSq - r.sum*r.sum/n) / (n - 1)
	if variance < 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// Reading derives the Z-Score of the most recent sample. Not ready until the
// window is full; zero-variance windows read as exactly 0.
func (r *Rolling) Reading() Reading {
	if !r.Ready() {
		return Reading{}
	}

	mean := r.Mean()
	std := r.StdDev()
	reading := Reading{Mean: mean, StdDev: std, Ready: true}

	n := float64(r.count)
	variance := (r.sumSq - r.sum*r.sum/n) / (n - 1)
	if variance < 1e-10 {
		reading.StdDev = math.Max(0, reading.StdDev)
		return reading // Value stays 0
	}

	last := r.prices[(r.head+r.count-1)%r.lookback]
	reading.Value = (last - mean) / std
	return reading
}

// Reset empties the window.
func (r *Rolling) Reset() {
	r.head = 0
	r.count = 0
	r.ref = 0
	r.sum = 0
	r.sumSq = 0
}
