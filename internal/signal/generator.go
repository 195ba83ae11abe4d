// Package signal turns rolling Z-Score readings into position-changing
// trading signals with hysteresis: entries require |z| to exceed the entry
// threshold, exits require |z| to fall back inside the (smaller) exit
// threshold, and the band between the two emits nothing. That asymmetry is
// what prevents signal chatter around either threshold.
package signal

import (
	"fmt"
	"time"

	"github.com/revertlabs/meanrev/internal/stats"
)

// Side is the side of the most recent entry signal. It tracks what the
// generator signalled, not what the execution layer filled.
type Side int

const (
	Flat Side = iota
	Long
	Short
)

func (s Side) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Kind is the signal type.
type Kind string

const (
	EnterLong  Kind = "ENTER_LONG"
	EnterShort Kind = "ENTER_SHORT"
	Exit       Kind = "EXIT"
)

// Signal is a position-changing event. At most one is produced per bar.
type Signal struct {
	Kind      Kind      `json:"kind"`
	ZScore    float64   `json:"zscore"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Thresholds holds the validated entry/exit Z-Score levels.
type Thresholds struct {
	Entry float64
	Exit  float64
}

// NewThresholds validates entry > exit > 0. Invalid thresholds are a
// configuration fault and are rejected up front, never clamped.
func NewThresholds(entry, exit float64) (Thresholds, error) {
	if exit <= 0 {
		return Thresholds{}, fmt.Errorf("exit threshold must be > 0, got %v", exit)
	}
	if entry <= exit {
		return Thresholds{}, fmt.Errorf("entry threshold (%v) must exceed exit threshold (%v)", entry, exit)
	}
	return Thresholds{Entry: entry, Exit: exit}, nil
}

// Generator owns one rolling window and one tracked side. Single writer per
// instance; callers serialize updates per instrument.
type Generator struct {
	window     *stats.Rolling
	thresholds Thresholds
	side       Side
	last       stats.Reading
}

// NewGenerator builds a generator over the given lookback and thresholds.
func NewGenerator(lookback int, entry, exit float64) (*Generator, error) {
	th, err := NewThresholds(entry, exit)
	if err != nil {
		return nil, err
	}
	window, err := stats.NewRolling(lookback)
	if err != nil {
		return nil, err
	}
	return &Generator{window: window, thresholds: th}, nil
}

// Update feeds a close price into the rolling window and caches the reading
// for the subsequent Signal call. A rejected sample leaves all state as-is.
func (g *Generator) Update(price float64) (stats.Reading, error) {
	reading, err := g.window.Update(price)
	if err != nil {
		return reading, err
	}
	g.last = reading
	return reading, nil
}

// Signal evaluates the cached reading against the thresholds and returns at
// most one signal, advancing the tracked side. Transition precedence:
// entries before exits, short checked before long, and no re-entry on the
// side already held.
func (g *Generator) Signal(now time.Time) *Signal {
	if !g.last.Ready {
		return nil
	}
	z := g.last.Value

	switch {
	case z >= g.thresholds.Entry && g.side != Short:
		g.side = Short
		return &Signal{
			Kind:      EnterShort,
			ZScore:    z,
			Reason:    fmt.Sprintf("Z-Score (%.2f) >= +%.2f", z, g.thresholds.Entry),
			Timestamp: now,
		}
	case z <= -g.thresholds.Entry && g.side != Long:
		g.side = Long
		return &Signal{
			Kind:      EnterLong,
			ZScore:    z,
			Reason:    fmt.Sprintf("Z-Score (%.2f) <= -%.2f", z, g.thresholds.Entry),
			Timestamp: now,
		}
	case z >= -g.thresholds.Exit && z <= g.thresholds.Exit && g.side != Flat:
		g.side = Flat
		return &Signal{
			Kind:      Exit,
			ZScore:    z,
			Reason:    fmt.Sprintf("Z-Score (%.2f) returned to mean", z),
			Timestamp: now,
		}
	default:
		return nil
	}
}

// Side returns the side of the last entry signal.
func (g *Generator) Side() Side { return g.side }

// Ready reports whether the rolling window is warmed up.
func (g *Generator) Ready() bool { return g.window.Ready() }

// Reading returns the most recent rolling statistics.
func (g *Generator) Reading() stats.Reading { return g.last }

// Thresholds returns the configured thresholds.
func (g *Generator) Thresholds() Thresholds { return g.thresholds }
