// Package risk implements the trading circuit breaker: six independent limit
// checks that can halt trading, with automatic recovery after a cooldown.
// Risk breaches are expected control-flow outcomes, never errors.
package risk

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Limits configures the circuit breaker. All values must be positive.
type Limits struct {
	MaxDailyLoss         float64       `yaml:"max_daily_loss"`
	MaxConsecutiveLosses int           `yaml:"max_consecutive_losses"`
	MaxDrawdown          float64       `yaml:"max_drawdown"`
	MaxPositionDuration  time.Duration `yaml:"max_position_duration"`
	MaxTradesPerDay      int           `yaml:"max_trades_per_day"`
	MaxPositionSize      int           `yaml:"max_position_size"`
	Cooldown             time.Duration `yaml:"cooldown"`
}

// Validate rejects non-positive limits. A breaker with a zero limit would
// either never fire or fire on the first bar, so both are config faults.
func (l Limits) Validate() error {
	if l.MaxDailyLoss <= 0 {
		return fmt.Errorf("max_daily_loss must be > 0, got %v", l.MaxDailyLoss)
	}
	if l.MaxConsecutiveLosses <= 0 {
		return fmt.Errorf("max_consecutive_losses must be > 0, got %d", l.MaxConsecutiveLosses)
	}
	if l.MaxDrawdown <= 0 {
		return fmt.Errorf("max_drawdown must be > 0, got %v", l.MaxDrawdown)
	}
	if l.MaxPositionDuration <= 0 {
		return fmt.Errorf("max_position_duration must be > 0, got %v", l.MaxPositionDuration)
	}
	if l.MaxTradesPerDay <= 0 {
		return fmt.Errorf("max_trades_per_day must be > 0, got %d", l.MaxTradesPerDay)
	}
	if l.MaxPositionSize <= 0 {
		return fmt.Errorf("max_position_size must be > 0, got %d", l.MaxPositionSize)
	}
	if l.Cooldown <= 0 {
		return fmt.Errorf("cooldown must be > 0, got %v", l.Cooldown)
	}
	return nil
}

// State is a snapshot of the breaker. Once Triggered is set, TriggerReason
// is fixed until a reset; later breaches must not overwrite it.
type State struct {
	Triggered     bool      `json:"triggered"`
	TriggerTime   time.Time `json:"trigger_time,omitempty"`
	TriggerReason string    `json:"trigger_reason,omitempty"`
	PeakEquity    float64   `json:"peak_equity"`
	CurrentEquity float64   `json:"current_equity"`
}

// Status is the reporting view exposed over the status API.
type Status struct {
	State
	CanTrade          bool          `json:"can_trade"`
	Drawdown          float64       `json:"drawdown"`
	CooldownRemaining time.Duration `json:"cooldown_remaining"`
}

// Clock abstracts time for deterministic cooldown tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// CircuitBreaker halts trading once any limit is breached and re-permits it
// after the cooldown elapses. Not safe for concurrent mutation; the live
// loop is the single writer.
type CircuitBreaker struct {
	limits Limits
	state  State
	onTrip func(reason string)
	clock  Clock
}

// NewCircuitBreaker validates the limits and builds a breaker.
func NewCircuitBreaker(limits Limits) (*CircuitBreaker, error) {
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid risk limits: %w", err)
	}
	return &CircuitBreaker{limits: limits, clock: realClock{}}, nil
}

// SetClock swaps the time source (tests only).
func (cb *CircuitBreaker) SetClock(clock Clock) { cb.clock = clock }

// OnTrip registers a callback invoked once per trigger, before CanTrade
// starts returning false. Typical use: flatten all open positions.
func (cb *CircuitBreaker) OnTrip(fn func(reason string)) { cb.onTrip = fn }

// CheckDailyLoss breaches when realized PnL reaches the daily loss limit.
func (cb *CircuitBreaker) CheckDailyLoss(stats DailyStats) bool {
	if stats.RealizedPnL <= -cb.limits.MaxDailyLoss {
		cb.trigger(fmt.Sprintf("daily loss limit reached ($%.2f <= -$%.2f)",
			stats.RealizedPnL, cb.limits.MaxDailyLoss))
		return true
	}
	return false
}

// CheckConsecutiveLosses breaches when the loss streak hits the limit.
func (cb *CircuitBreaker) CheckConsecutiveLosses(stats DailyStats) bool {
	if stats.ConsecutiveLosses >= cb.limits.MaxConsecutiveLosses {
		cb.trigger(fmt.Sprintf("too many consecutive losses (%d >= %d)",
			stats.ConsecutiveLosses, cb.limits.MaxConsecutiveLosses))
		return true
	}
	return false
}

// CheckDrawdown updates peak equity and breaches when peak-to-current
// drawdown reaches the limit.
func (cb *CircuitBreaker) CheckDrawdown(equity float64) bool {
	cb.state.CurrentEquity = equity
	if equity > cb.state.PeakEquity {
		cb.state.PeakEquity = equity
	}

	drawdown := cb.state.PeakEquity - equity
	if drawdown >= cb.limits.MaxDrawdown {
		cb.trigger(fmt.Sprintf("drawdown limit reached ($%.2f >= $%.2f)",
			drawdown, cb.limits.MaxDrawdown))
		return true
	}
	return false
}

// CheckPositionDuration breaches when a position has been held too long.
func (cb *CircuitBreaker) CheckPositionDuration(entryTime, now time.Time) bool {
	held := now.Sub(entryTime)
	if held >= cb.limits.MaxPositionDuration {
		cb.trigger(fmt.Sprintf("position held too long (%v >= %v)",
			held.Round(time.Second), cb.limits.MaxPositionDuration))
		return true
	}
	return false
}

// CheckTradeCount breaches when the day's trade count exceeds the limit.
func (cb *CircuitBreaker) CheckTradeCount(count int) bool {
	if count > cb.limits.MaxTradesPerDay {
		cb.trigger(fmt.Sprintf("trade count limit exceeded (%d > %d)",
			count, cb.limits.MaxTradesPerDay))
		return true
	}
	return false
}

// CheckPositionSize breaches when the absolute position size exceeds the
// limit. Quantity is signed: positive long, negative short.
func (cb *CircuitBreaker) CheckPositionSize(qty int) bool {
	size := qty
	if size < 0 {
		size = -size
	}
	if size > cb.limits.MaxPositionSize {
		cb.trigger(fmt.Sprintf("position size limit exceeded (%d > %d)",
			size, cb.limits.MaxPositionSize))
		return true
	}
	return false
}

// trigger latches the breaker. First trigger wins: while already triggered,
// further breaches leave the recorded reason and time untouched.
func (cb *CircuitBreaker) trigger(reason string) {
	if cb.state.Triggered {
		return
	}

	cb.state.Triggered = true
	cb.state.TriggerTime = cb.clock.Now()
	cb.state.TriggerReason = reason

	log.Error().Str("reason", reason).Msg("Circuit breaker triggered")

	if cb.onTrip != nil {
		cb.onTrip(reason)
	}
}

// CanTrade reports whether trading is permitted. Once the cooldown has
// elapsed it resets the trigger and returns true with no external action
// required.
func (cb *CircuitBreaker) CanTrade() bool {
	if !cb.state.Triggered {
		return true
	}
	if cb.clock.Now().Sub(cb.state.TriggerTime) >= cb.limits.Cooldown {
		log.Info().Msg("Circuit breaker cooldown expired, trading re-enabled")
		cb.Reset()
		return true
	}
	return false
}

// Reset clears the trigger fields only. Peak and current equity survive:
// reset means permission to trade again, not amnesia about the account.
func (cb *CircuitBreaker) Reset() {
	cb.state.Triggered = false
	cb.state.TriggerTime = time.Time{}
	cb.state.TriggerReason = ""
}

// ResetDay clears the trigger and re-bases equity tracking on the current
// equity. Called at new-trading-day initialization.
func (cb *CircuitBreaker) ResetDay() {
	cb.Reset()
	cb.state.PeakEquity = cb.state.CurrentEquity
}

// State returns a copy of the breaker state.
func (cb *CircuitBreaker) State() State { return cb.state }

// Status builds the reporting snapshot.
func (cb *CircuitBreaker) Status() Status {
	st := Status{
		State:    cb.state,
		Drawdown: cb.state.PeakEquity - cb.state.CurrentEquity,
	}
	if cb.state.Triggered {
		remaining := cb.limits.Cooldown - cb.clock.Now().Sub(cb.state.TriggerTime)
		if remaining > 0 {
			st.CooldownRemaining = remaining
		}
	}
	st.CanTrade = !cb.state.Triggered || st.CooldownRemaining == 0
	return st
}
