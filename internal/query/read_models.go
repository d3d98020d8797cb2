package query

import "github.com/shopspring/decimal"

type CartLineView struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// CartView prices the cart at current product prices.
type CartView struct {
	ID     string          `json:"id,omitempty"`
	UserID string          `json:"user_id"`
	Items  []CartLineView  `json:"items"`
	Total  decimal.Decimal `json:"total"`
}
