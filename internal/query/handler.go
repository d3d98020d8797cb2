package query

import (
	"context"

	"github.com/example/ec-reservation/internal/apperr"
	"github.com/example/ec-reservation/internal/domain/inventory"
	"github.com/example/ec-reservation/internal/domain/order"
	"github.com/example/ec-reservation/internal/infrastructure/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	reader store.Reader
	logger *zap.Logger
}

func NewHandler(reader store.Reader, logger *zap.Logger) *Handler {
	return &Handler{reader: reader, logger: logger.Named("query")}
}

// GetCart returns an empty cart when the user has none yet.
func (h *Handler) GetCart(ctx context.Context, userID string) (*CartView, error) {
	c, err := h.reader.FindCart(ctx, userID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return &CartView{UserID: userID, Items: []CartLineView{}, Total: decimal.Zero}, nil
	}
	if err != nil {
		h.logger.Warn("get cart failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	view := &CartView{ID: c.ID, UserID: c.UserID, Items: make([]CartLineView, 0, len(c.Items)), Total: decimal.Zero}
	for _, it := range c.Items {
		line := CartLineView{ProductID: it.ProductID, ProductName: it.ProductName, Quantity: it.Quantity}
		p, err := h.reader.FindProduct(ctx, it.ProductID)
		switch {
		case err == nil:
			line.UnitPrice = p.Price
			line.LineTotal = p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
			view.Total = view.Total.Add(line.LineTotal)
		case apperr.KindOf(err) != apperr.KindNotFound:
			return nil, err
		}
		view.Items = append(view.Items, line)
	}
	return view, nil
}

func (h *Handler) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := h.reader.FindOrder(ctx, orderID)
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		h.logger.Warn("get order failed", zap.String("order_id", orderID), zap.Error(err))
	}
	return o, err
}

// ListOrders returns the user's orders, newest first.
func (h *Handler) ListOrders(ctx context.Context, userID string) ([]*order.Order, error) {
	orders, err := h.reader.ListOrders(ctx, userID)
	if err != nil {
		h.logger.Warn("list orders failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	if orders == nil {
		orders = []*order.Order{}
	}
	return orders, nil
}

func (h *Handler) GetStockItem(ctx context.Context, productID string) (*inventory.StockItem, error) {
	si, err := h.reader.FindStockItem(ctx, productID)
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		h.logger.Warn("get stock item failed", zap.String("product_id", productID), zap.Error(err))
	}
	return si, err
}
