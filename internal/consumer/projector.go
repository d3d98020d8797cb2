package consumer

import (
	"context"
	"fmt"

	"github.com/example/ec-reservation/internal/domain/cart"
	"github.com/example/ec-reservation/internal/domain/inventory"
	"github.com/example/ec-reservation/internal/domain/order"
	"github.com/example/ec-reservation/internal/domain/product"
	"github.com/example/ec-reservation/internal/event"
	"github.com/redis/go-redis/v9"
)

// Projector maintains Redis read models from the event stream:
//
//	cart:{userId}              hash productId -> quantity
//	orders:{userId}            list of order ids, newest first
//	order-status               hash orderId -> status
//	products                   set of product ids
//	product-activity:{productId} hash reserved|released|replenished|withdrawn -> units
type Projector struct {
	rdb redis.Cmdable
}

func NewProjector(rdb redis.Cmdable) *Projector {
	return &Projector{rdb: rdb}
}

func cartKey(userID string) string        { return "cart:" + userID }
func ordersKey(userID string) string      { return "orders:" + userID }
func activityKey(productID string) string { return "product-activity:" + productID }

const (
	orderStatusKey = "order-status"
	productsKey    = "products"
)

// Handlers returns the projector's routing table.
func (p *Projector) Handlers() map[event.Kind]Handler {
	return map[event.Kind]Handler{
		event.KindItemAddedToCart:      p.itemAdded,
		event.KindItemRemovedFromCart:  p.itemRemoved,
		event.KindCartCleared:          p.cartCleared,
		event.KindOrderCreated:         p.orderCreated,
		event.KindOrderStatusChanged:   p.orderStatusChanged,
		event.KindProductCreated:       p.productCreated,
		event.KindStockQuantityAdded:   p.stockAdded,
		event.KindStockQuantityRemoved: p.stockRemoved,
	}
}

func (p *Projector) itemAdded(ctx context.Context, evt event.Event) error {
	e, ok := evt.(cart.ItemAddedToCart)
	if !ok {
		return unexpected(evt)
	}
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, cartKey(e.UserID), e.ProductID, int64(e.Quantity))
		pipe.HIncrBy(ctx, activityKey(e.ProductID), "reserved", int64(e.Quantity))
		return nil
	})
	return err
}

func (p *Projector) itemRemoved(ctx context.Context, evt event.Event) error {
	e, ok := evt.(cart.ItemRemovedFromCart)
	if !ok {
		return unexpected(evt)
	}
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, cartKey(e.UserID), e.ProductID)
		pipe.HIncrBy(ctx, activityKey(e.ProductID), "released", int64(e.Quantity))
		return nil
	})
	return err
}

func (p *Projector) cartCleared(ctx context.Context, evt event.Event) error {
	e, ok := evt.(cart.CartCleared)
	if !ok {
		return unexpected(evt)
	}
	return p.rdb.Del(ctx, cartKey(e.UserID)).Err()
}

// orderCreated empties the projected cart; its lines now belong to the order.
func (p *Projector) orderCreated(ctx context.Context, evt event.Event) error {
	e, ok := evt.(order.OrderCreated)
	if !ok {
		return unexpected(evt)
	}
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, ordersKey(e.UserID), e.OrderID)
		pipe.HSet(ctx, orderStatusKey, e.OrderID, string(order.StatusNew))
		pipe.Del(ctx, cartKey(e.UserID))
		return nil
	})
	return err
}

func (p *Projector) orderStatusChanged(ctx context.Context, evt event.Event) error {
	e, ok := evt.(order.OrderStatusChanged)
	if !ok {
		return unexpected(evt)
	}
	return p.rdb.HSet(ctx, orderStatusKey, e.OrderID, string(e.ToStatus)).Err()
}

func (p *Projector) productCreated(ctx context.Context, evt event.Event) error {
	e, ok := evt.(product.ProductCreated)
	if !ok {
		return unexpected(evt)
	}
	return p.rdb.SAdd(ctx, productsKey, e.ProductID).Err()
}

func (p *Projector) stockAdded(ctx context.Context, evt event.Event) error {
	e, ok := evt.(inventory.StockQuantityAdded)
	if !ok {
		return unexpected(evt)
	}
	return p.rdb.HIncrBy(ctx, activityKey(e.ProductID), "replenished", int64(e.QuantityAdded)).Err()
}

func (p *Projector) stockRemoved(ctx context.Context, evt event.Event) error {
	e, ok := evt.(inventory.StockQuantityRemoved)
	if !ok {
		return unexpected(evt)
	}
	return p.rdb.HIncrBy(ctx, activityKey(e.ProductID), "withdrawn", int64(e.QuantityRemoved)).Err()
}

func unexpected(evt event.Event) error {
	return fmt.Errorf("unexpected payload %T for %s", evt, evt.Meta().EventType)
}
