package command

import (
	"github.com/example/ec-reservation/internal/domain/order"
	"github.com/shopspring/decimal"
)

// Product / Stock Commands
type CreateProduct struct {
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	InitialQuantity int             `json:"initial_quantity"`
}

type UpdateProductPrice struct {
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
}

type AddQuantityToStock struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type RemoveQuantityFromStock struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart Commands
type AddItemToCart struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type RemoveItemFromCart struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
}

type ClearCart struct {
	UserID string `json:"user_id"`
}

// Order Commands
type CreateOrder struct {
	UserID          string                `json:"user_id"`
	ShippingDetails order.ShippingDetails `json:"shipping_details"`
}

type PayForOrder struct {
	OrderID string `json:"order_id"`
}

type ShipOrder struct {
	OrderID string `json:"order_id"`
}

type CompleteOrder struct {
	OrderID string `json:"order_id"`
}

type CancelOrder struct {
	OrderID string `json:"order_id"`
}
