package execution

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaperRouterPlace(t *testing.T) {
	router := NewPaperRouter()

	order, err := router.Place(context.Background(), "MES", 1, Buy, 5001.25)
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "MES", order.Symbol)
	assert.Equal(t, Buy, order.Action)
	assert.Equal(t, 1, order.Quantity)
	assert.Equal(t, 5001.25, order.Price)
	assert.False(t, order.Timestamp.IsZero())

	orders := router.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}

func TestPaperRouterRejectsBadOrders(t *testing.T) {
	router := NewPaperRouter()

	_, err := router.Place(context.Background(), "MES", 0, Buy, 5000)
	assert.Error(t, err)

	_, err = router.Place(context.Background(), "MES", 1, Action("HOLD"), 5000)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = router.Place(ctx, "MES", 1, Sell, 5000)
	assert.Error(t, err)

	assert.Empty(t, router.Orders())
}

func TestGatedRouterBlocksWhenClosed(t *testing.T) {
	inner := NewPaperRouter()
	open := true
	router, err := NewGatedRouter(inner, func() bool { return open })
	require.NoError(t, err)

	order, err := router.Place(context.Background(), "MES", 1, Buy, 5000)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)

	open = false
	_, err = router.Place(context.Background(), "MES", 1, Sell, 5000)
	assert.ErrorIs(t, err, ErrRoutingHalted)
	assert.Len(t, inner.Orders(), 1)

	open = true
	_, err = router.Place(context.Background(), "MES", 1, Sell, 5000)
	assert.NoError(t, err)
	assert.Len(t, inner.Orders(), 2)
}

func TestGatedRouterRequiresDependencies(t *testing.T) {
	_, err := NewGatedRouter(nil, func() bool { return true })
	assert.Error(t, err)

	_, err = NewGatedRouter(NewPaperRouter(), nil)
	assert.Error(t, err)
}

func TestPaperRouterUniqueIDs(t *testing.T) {
	router := NewPaperRouter()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := router.Place(context.Background(), "MES", 1, Sell, 5000)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	orders := router.Orders()
	require.Len(t, orders, 20)
	seen := make(map[string]bool, len(orders))
	for _, o := range orders {
		assert.False(t, seen[o.ID], "duplicate order id %s", o.ID)
		seen[o.ID] = true
	}
}
