package query

import (
	"context"
	"testing"

	"github.com/example/ec-reservation/internal/apperr"
	"github.com/example/ec-reservation/internal/command"
	"github.com/example/ec-reservation/internal/domain/order"
	"github.com/example/ec-reservation/internal/domain/product"
	"github.com/example/ec-reservation/internal/infrastructure/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestQueryHandler() (*Handler, *command.Handler) {
	s := store.NewMemoryStore()
	return NewHandler(s, zap.NewNop()), command.NewHandler(s, zap.NewNop())
}

func seedProduct(t *testing.T, cmds *command.Handler, name, price string, qty int) *product.Product {
	t.Helper()
	p, err := cmds.CreateProduct(context.Background(), command.CreateProduct{
		Name: name, Price: decimal.RequireFromString(price), InitialQuantity: qty,
	})
	require.NoError(t, err)
	return p
}

// ============================================
// Cart Query Tests
// ============================================

func TestHandler_GetCart_EmptyWhenMissing(t *testing.T) {
	h, _ := newTestQueryHandler()

	view, err := h.GetCart(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "user-1", view.UserID)
	assert.Empty(t, view.Items)
	assert.True(t, view.Total.IsZero())
}

func TestHandler_GetCart_PricesLines(t *testing.T) {
	h, cmds := newTestQueryHandler()
	ctx := context.Background()
	p1 := seedProduct(t, cmds, "Keyboard", "100.50", 10)
	p2 := seedProduct(t, cmds, "Mouse", "50.25", 10)
	_, err := cmds.AddItemToCart(ctx, command.AddItemToCart{UserID: "user-1", ProductID: p1.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = cmds.AddItemToCart(ctx, command.AddItemToCart{UserID: "user-1", ProductID: p2.ID, Quantity: 3})
	require.NoError(t, err)

	view, err := h.GetCart(ctx, "user-1")

	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "Keyboard", view.Items[0].ProductName)
	assert.True(t, view.Items[0].LineTotal.Equal(decimal.RequireFromString("201.00")))
	assert.True(t, view.Total.Equal(decimal.RequireFromString("351.75")))
}

// ============================================
// Order Query Tests
// ============================================

func TestHandler_GetOrder(t *testing.T) {
	h, cmds := newTestQueryHandler()
	ctx := context.Background()
	p := seedProduct(t, cmds, "Keyboard", "10.00", 10)
	_, err := cmds.AddItemToCart(ctx, command.AddItemToCart{UserID: "user-1", ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	created, err := cmds.CreateOrder(ctx, command.CreateOrder{UserID: "user-1"})
	require.NoError(t, err)

	o, err := h.GetOrder(ctx, created.ID)

	require.NoError(t, err)
	assert.Equal(t, order.StatusNew, o.Status)
	assert.Len(t, o.Items, 1)
}

func TestHandler_GetOrder_NotFound(t *testing.T) {
	h, _ := newTestQueryHandler()

	o, err := h.GetOrder(context.Background(), "order-404")

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Nil(t, o)
}

func TestHandler_ListOrders(t *testing.T) {
	h, cmds := newTestQueryHandler()
	ctx := context.Background()
	p := seedProduct(t, cmds, "Keyboard", "10.00", 10)
	for i := 0; i < 2; i++ {
		_, err := cmds.AddItemToCart(ctx, command.AddItemToCart{UserID: "user-1", ProductID: p.ID, Quantity: 1})
		require.NoError(t, err)
		_, err = cmds.CreateOrder(ctx, command.CreateOrder{UserID: "user-1"})
		require.NoError(t, err)
	}

	orders, err := h.ListOrders(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	none, err := h.ListOrders(ctx, "user-2")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

// ============================================
// Stock Query Tests
// ============================================

func TestHandler_GetStockItem(t *testing.T) {
	h, cmds := newTestQueryHandler()
	ctx := context.Background()
	p := seedProduct(t, cmds, "Keyboard", "10.00", 10)
	_, err := cmds.AddItemToCart(ctx, command.AddItemToCart{UserID: "user-1", ProductID: p.ID, Quantity: 4})
	require.NoError(t, err)

	si, err := h.GetStockItem(ctx, p.ID)

	require.NoError(t, err)
	assert.Equal(t, 4, si.ReservedQuantity)
	assert.Equal(t, 6, si.AvailableQuantity)

	_, err = h.GetStockItem(ctx, "prod-404")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
