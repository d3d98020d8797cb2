package command

import (
	"context"

	"github.com/example/ec-reservation/internal/apperr"
	"github.com/example/ec-reservation/internal/domain/order"
	"github.com/example/ec-reservation/internal/infrastructure/store"
	"github.com/example/ec-reservation/internal/outbox"
	"go.opentelemetry.io/otel/attribute"
)

// CreateOrder turns the cart into an order priced at current product prices.
// The cart's reservations stay held against the order; only the cart lines are removed.
func (h *Handler) CreateOrder(ctx context.Context, cmd CreateOrder) (*order.Order, error) {
	var created *order.Order
	attrs := []attribute.KeyValue{attribute.String("user.id", cmd.UserID)}
	err := h.run(ctx, "CreateOrder", attrs, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetCart(ctx, cmd.UserID)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.BadRequest("Cart is empty.")
		}
		if err != nil {
			return err
		}
		if c.IsEmpty() {
			return apperr.BadRequest("Cart is empty.")
		}

		quantities := make(map[string]int, len(c.Items))
		for _, it := range c.Items {
			quantities[it.ProductID] += it.Quantity
		}
		ids := sortedKeys(quantities)
		for _, productID := range ids {
			if _, err := tx.GetStockItem(ctx, productID); err != nil {
				return err
			}
		}
		products, err := tx.GetProducts(ctx, ids)
		if err != nil {
			return err
		}

		lines := make([]order.Line, 0, len(c.Items))
		for _, it := range c.Items {
			p, ok := products[it.ProductID]
			if !ok {
				return apperr.NotFound("Product with ID %s not found.", it.ProductID)
			}
			lines = append(lines, order.Line{ProductID: it.ProductID, Quantity: it.Quantity, Price: p.Price})
		}

		o, err := order.New(cmd.UserID, lines, cmd.ShippingDetails)
		if err != nil {
			return err
		}
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}
		c.Clear()
		if err := tx.SaveCart(ctx, c); err != nil {
			return err
		}
		if err := outbox.StoreEvent(ctx, tx, order.NewOrderCreated(o), outbox.QueueOrder); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (h *Handler) PayForOrder(ctx context.Context, cmd PayForOrder) (*order.Order, error) {
	return h.changeStatus(ctx, "PayForOrder", cmd.OrderID, (*order.Order).Pay, nil)
}

// ShipOrder moves a paid order to Sent and takes its reserved units out of the warehouse.
func (h *Handler) ShipOrder(ctx context.Context, cmd ShipOrder) (*order.Order, error) {
	return h.changeStatus(ctx, "ShipOrder", cmd.OrderID, (*order.Order).Ship, commitAll)
}

func (h *Handler) CompleteOrder(ctx context.Context, cmd CompleteOrder) (*order.Order, error) {
	return h.changeStatus(ctx, "CompleteOrder", cmd.OrderID, (*order.Order).Complete, nil)
}

// CancelOrder returns the order's reserved units to available stock.
func (h *Handler) CancelOrder(ctx context.Context, cmd CancelOrder) (*order.Order, error) {
	return h.changeStatus(ctx, "CancelOrder", cmd.OrderID, (*order.Order).Cancel, releaseAll)
}

type ledgerUpdate func(ctx context.Context, tx store.Tx, quantities map[string]int) error

func (h *Handler) changeStatus(
	ctx context.Context,
	name, orderID string,
	transition func(*order.Order) (order.Status, error),
	ledger ledgerUpdate,
) (*order.Order, error) {
	var updated *order.Order
	attrs := []attribute.KeyValue{attribute.String("order.id", orderID)}
	err := h.run(ctx, name, attrs, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from, err := transition(o)
		if err != nil {
			return err
		}
		if ledger != nil {
			quantities := make(map[string]int, len(o.Items))
			for _, it := range o.Items {
				quantities[it.ProductID] += it.Quantity
			}
			if err := ledger(ctx, tx, quantities); err != nil {
				return err
			}
		}
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}
		if err := outbox.StoreEvent(ctx, tx, order.NewOrderStatusChanged(o, from), outbox.QueueOrder); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
