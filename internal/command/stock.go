package command

import (
	"context"

	"github.com/example/ec-reservation/internal/domain/inventory"
	"github.com/example/ec-reservation/internal/domain/product"
	"github.com/example/ec-reservation/internal/event"
	"github.com/example/ec-reservation/internal/infrastructure/store"
	"github.com/example/ec-reservation/internal/outbox"
	"go.opentelemetry.io/otel/attribute"
)

// CreateProduct registers a product together with its stock ledger.
func (h *Handler) CreateProduct(ctx context.Context, cmd CreateProduct) (*product.Product, error) {
	var created *product.Product
	attrs := []attribute.KeyValue{attribute.Int("quantity", cmd.InitialQuantity)}
	err := h.run(ctx, "CreateProduct", attrs, func(ctx context.Context, tx store.Tx) error {
		p, err := product.New(cmd.Name, cmd.Price)
		if err != nil {
			return err
		}
		si, err := inventory.NewStockItem(p.ID, cmd.InitialQuantity)
		if err != nil {
			return err
		}
		if err := tx.SaveProduct(ctx, p); err != nil {
			return err
		}
		if err := tx.SaveStockItem(ctx, si); err != nil {
			return err
		}
		if err := outbox.StoreEvent(ctx, tx, product.NewProductCreated(p), outbox.QueueProduct); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateProductPrice changes the price used by orders created from now on.
func (h *Handler) UpdateProductPrice(ctx context.Context, cmd UpdateProductPrice) (*product.Product, error) {
	var updated *product.Product
	attrs := []attribute.KeyValue{attribute.String("product.id", cmd.ProductID)}
	err := h.run(ctx, "UpdateProductPrice", attrs, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetProduct(ctx, cmd.ProductID)
		if err != nil {
			return err
		}
		if err := p.SetPrice(cmd.Price); err != nil {
			return err
		}
		if err := tx.SaveProduct(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (h *Handler) AddQuantityToStock(ctx context.Context, cmd AddQuantityToStock) (*inventory.StockItem, error) {
	return h.adjustStock(ctx, "AddQuantityToStock", cmd.ProductID, func(si *inventory.StockItem) (event.Event, error) {
		if err := si.Replenish(cmd.Quantity); err != nil {
			return nil, err
		}
		return inventory.NewStockQuantityAdded(si, cmd.Quantity), nil
	})
}

func (h *Handler) RemoveQuantityFromStock(ctx context.Context, cmd RemoveQuantityFromStock) (*inventory.StockItem, error) {
	return h.adjustStock(ctx, "RemoveQuantityFromStock", cmd.ProductID, func(si *inventory.StockItem) (event.Event, error) {
		if err := si.Withdraw(cmd.Quantity); err != nil {
			return nil, err
		}
		return inventory.NewStockQuantityRemoved(si, cmd.Quantity), nil
	})
}

func (h *Handler) adjustStock(
	ctx context.Context,
	name, productID string,
	adjust func(si *inventory.StockItem) (event.Event, error),
) (*inventory.StockItem, error) {
	var updated *inventory.StockItem
	attrs := []attribute.KeyValue{attribute.String("product.id", productID)}
	err := h.run(ctx, name, attrs, func(ctx context.Context, tx store.Tx) error {
		si, err := tx.GetStockItem(ctx, productID)
		if err != nil {
			return err
		}
		evt, err := adjust(si)
		if err != nil {
			return err
		}
		if err := tx.SaveStockItem(ctx, si); err != nil {
			return err
		}
		if err := outbox.StoreEvent(ctx, tx, evt, outbox.QueueStock); err != nil {
			return err
		}
		updated = si
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
