package command

import (
	"context"

	"github.com/example/ec-reservation/internal/apperr"
	"github.com/example/ec-reservation/internal/domain/cart"
	"github.com/example/ec-reservation/internal/domain/inventory"
	"github.com/example/ec-reservation/internal/infrastructure/store"
	"github.com/example/ec-reservation/internal/outbox"
	"go.opentelemetry.io/otel/attribute"
)

// AddItemToCart reserves stock for the user's cart line, creating the cart on first use.
func (h *Handler) AddItemToCart(ctx context.Context, cmd AddItemToCart) (*cart.CartItem, error) {
	var added cart.CartItem
	attrs := []attribute.KeyValue{
		attribute.String("user.id", cmd.UserID),
		attribute.String("product.id", cmd.ProductID),
		attribute.Int("quantity", cmd.Quantity),
	}
	err := h.run(ctx, "AddItemToCart", attrs, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetProduct(ctx, cmd.ProductID)
		if err != nil {
			return err
		}
		c, err := loadOrCreateCart(ctx, tx, cmd.UserID)
		if err != nil {
			return err
		}
		si, err := tx.GetStockItem(ctx, cmd.ProductID)
		if err != nil {
			return err
		}
		if cmd.Quantity <= 0 {
			return apperr.InvalidArgument("Quantity for product %s must be greater than zero.", cmd.ProductID)
		}

		if _, err := c.AddItem(p.ID, p.Name, cmd.Quantity); err != nil {
			return err
		}
		if err := si.Reserve(cmd.Quantity); err != nil {
			return err
		}
		added, _ = c.Item(p.ID)

		if err := tx.SaveStockItem(ctx, si); err != nil {
			return err
		}
		if err := tx.SaveCart(ctx, c); err != nil {
			return err
		}
		evt := cart.NewItemAddedToCart(cmd.UserID, p.ID, p.Name, cmd.Quantity)
		return outbox.StoreEvent(ctx, tx, evt, outbox.QueueCart)
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// RemoveItemFromCart drops the line and releases its whole quantity back to available.
func (h *Handler) RemoveItemFromCart(ctx context.Context, cmd RemoveItemFromCart) error {
	attrs := []attribute.KeyValue{
		attribute.String("user.id", cmd.UserID),
		attribute.String("product.id", cmd.ProductID),
	}
	return h.run(ctx, "RemoveItemFromCart", attrs, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetCart(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		line, ok := c.Item(cmd.ProductID)
		if !ok {
			return apperr.NotFound("Product with ID %s not found in cart.", cmd.ProductID)
		}
		si, err := tx.GetStockItem(ctx, cmd.ProductID)
		if err != nil {
			return err
		}
		if err := si.Validate(); err != nil {
			return err
		}
		if line.Quantity > si.ReservedQuantity {
			return apperr.Conflict(
				"Cart line for product %s holds %d units but only %d are reserved.",
				cmd.ProductID, line.Quantity, si.ReservedQuantity)
		}
		if err := si.Release(line.Quantity); err != nil {
			return err
		}
		if _, err := c.RemoveItem(cmd.ProductID); err != nil {
			return err
		}

		if err := tx.SaveStockItem(ctx, si); err != nil {
			return err
		}
		if err := tx.SaveCart(ctx, c); err != nil {
			return err
		}
		return outbox.StoreEvent(ctx, tx, cart.NewItemRemovedFromCart(cmd.UserID, line), outbox.QueueCart)
	})
}

// ClearCart releases every line's reservation and empties the cart. A missing
// stock item for any line aborts the whole clear.
func (h *Handler) ClearCart(ctx context.Context, cmd ClearCart) error {
	attrs := []attribute.KeyValue{attribute.String("user.id", cmd.UserID)}
	return h.run(ctx, "ClearCart", attrs, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetCart(ctx, cmd.UserID)
		if err != nil {
			return err
		}

		quantities := make(map[string]int, len(c.Items))
		for _, it := range c.Items {
			quantities[it.ProductID] += it.Quantity
		}
		if err := releaseAll(ctx, tx, quantities); err != nil {
			return err
		}

		c.Clear()
		if err := tx.SaveCart(ctx, c); err != nil {
			return err
		}
		return outbox.StoreEvent(ctx, tx, cart.NewCartCleared(cmd.UserID), outbox.QueueCart)
	})
}

func loadOrCreateCart(ctx context.Context, tx store.Tx, userID string) (*cart.Cart, error) {
	c, err := tx.GetCart(ctx, userID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return cart.New(userID), nil
	}
	return c, err
}

// releaseAll returns reserved units to available for each product, locking in product order.
func releaseAll(ctx context.Context, tx store.Tx, quantities map[string]int) error {
	return updateLedgers(ctx, tx, quantities, (*inventory.StockItem).Release)
}

// commitAll removes reserved units from the warehouse for each product.
func commitAll(ctx context.Context, tx store.Tx, quantities map[string]int) error {
	return updateLedgers(ctx, tx, quantities, (*inventory.StockItem).Commit)
}

func updateLedgers(ctx context.Context, tx store.Tx, quantities map[string]int, op func(*inventory.StockItem, int) error) error {
	items := make([]*inventory.StockItem, 0, len(quantities))
	for _, productID := range sortedKeys(quantities) {
		si, err := tx.GetStockItem(ctx, productID)
		if err != nil {
			return err
		}
		if err := op(si, quantities[productID]); err != nil {
			return err
		}
		items = append(items, si)
	}
	for _, si := range items {
		if err := tx.SaveStockItem(ctx, si); err != nil {
			return err
		}
	}
	return nil
}
