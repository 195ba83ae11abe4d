package execution

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrRoutingHalted is returned when the gate refuses new orders.
var ErrRoutingHalted = fmt.Errorf("order routing halted")

// GatedRouter wraps a router with a tradeability gate, typically the risk
// circuit breaker's CanTrade. Orders are rejected while the gate is closed;
// the underlying router is never called.
type GatedRouter struct {
	inner OrderRouter
	gate  func() bool
}

// NewGatedRouter builds a router that consults gate before every placement.
func NewGatedRouter(inner OrderRouter, gate func() bool) (*GatedRouter, error) {
	if inner == nil {
		return nil, fmt.Errorf("gated router requires an inner router")
	}
	if gate == nil {
		return nil, fmt.Errorf("gated router requires a gate")
	}
	return &GatedRouter{inner: inner, gate: gate}, nil
}

// Place forwards to the inner router when the gate is open.
func (r *GatedRouter) Place(ctx context.Context, symbol string, quantity int, action Action, price float64) (Order, error) {
	if !r.gate() {
		log.Warn().
			Str("symbol", symbol).
			Str("action", string(action)).
			Int("quantity", quantity).
			Msg("order rejected while routing halted")
		return Order{}, ErrRoutingHalted
	}
	return r.inner.Place(ctx, symbol, quantity, action, price)
}
