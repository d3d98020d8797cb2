package consumer

import (
	"context"
	"os"
	"testing"

	"github.com/example/ec-reservation/internal/domain/cart"
	"github.com/example/ec-reservation/internal/domain/inventory"
	"github.com/example/ec-reservation/internal/domain/order"
	"github.com/example/ec-reservation/internal/event"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestProjector_HandlesEveryKind(t *testing.T) {
	handlers := NewProjector(nil).Handlers()

	for _, kind := range event.Kinds() {
		assert.Contains(t, handlers, kind)
	}
}

func TestProjector_CartAndOrderFlow(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()
	ctx := context.Background()
	p := NewProjector(client)
	r, err := NewRouter(p.Handlers(), nil, zap.NewNop())
	require.NoError(t, err)

	userID := "user-" + uuid.NewString()
	productID := "prod-" + uuid.NewString()
	route := func(evt event.Event) { require.NoError(t, r.Route(ctx, mustPayload(t, evt))) }

	route(cart.NewItemAddedToCart(userID, productID, "Keyboard", 2))
	route(cart.NewItemAddedToCart(userID, productID, "Keyboard", 3))
	assert.Equal(t, "5", client.HGet(ctx, cartKey(userID), productID).Val())

	o := &order.Order{ID: "order-" + uuid.NewString(), UserID: userID, Status: order.StatusNew}
	route(order.NewOrderCreated(o))
	assert.Zero(t, client.Exists(ctx, cartKey(userID)).Val())
	assert.Equal(t, []string{o.ID}, client.LRange(ctx, ordersKey(userID), 0, -1).Val())

	o.Status = order.StatusPaid
	route(order.NewOrderStatusChanged(o, order.StatusNew))
	assert.Equal(t, "Paid", client.HGet(ctx, orderStatusKey, o.ID).Val())

	route(inventory.NewStockQuantityAdded(&inventory.StockItem{ID: "s", ProductID: productID}, 7))
	activity := client.HGetAll(ctx, activityKey(productID)).Val()
	assert.Equal(t, "5", activity["reserved"])
	assert.Equal(t, "7", activity["replenished"])

	client.Del(ctx, ordersKey(userID), activityKey(productID))
	client.HDel(ctx, orderStatusKey, o.ID)
}
