// Package execution routes orders produced by the live engine. The core
// never blocks on fills; routers return an order identifier immediately and
// fill accounting flows back through market data.
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Action is the order direction.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// Order is one routed order.
type Order struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Action    Action    `json:"action"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderRouter accepts orders for execution.
type OrderRouter interface {
	Place(ctx context.Context, symbol string, quantity int, action Action, price float64) (Order, error)
}

// PaperRouter simulates immediate fills at the quoted price. Safe for
// concurrent use.
type PaperRouter struct {
	mu     sync.Mutex
	orders []Order
}

// NewPaperRouter creates an in-memory paper-trading router.
func NewPaperRouter() *PaperRouter {
	return &PaperRouter{}
}

// Place records the order and returns it with a generated ID.
func (r *PaperRouter) Place(ctx context.Context, symbol string, quantity int, action Action, price float64) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	if quantity <= 0 {
		return Order{}, fmt.Errorf("order quantity must be > 0, got %d", quantity)
	}
	if action != Buy && action != Sell {
		return Order{}, fmt.Errorf("unknown order action %q", action)
	}

	order := Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Action:    action,
		Quantity:  quantity,
		Price:     price,
		Timestamp: time.Now().UTC(),
	}

	r.mu.Lock()
	r.orders = append(r.orders, order)
	r.mu.Unlock()

	log.Info().
		Str("order_id", order.ID).
		Str("symbol", symbol).
		Str("action", string(action)).
		Int("quantity", quantity).
		Float64("price", price).
		Msg("paper order filled")

	return order, nil
}

// Orders returns a copy of all routed orders, oldest first.
func (r *PaperRouter) Orders() []Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, len(r.orders))
	copy(out, r.orders)
	return out
}
