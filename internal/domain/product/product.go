package product

import (
	"strings"
	"time"

	"github.com/example/ec-reservation/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

func New(name string, price decimal.Decimal) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.InvalidArgument("Product name is required.")
	}
	p := &Product{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.SetPrice(price); err != nil {
		return nil, err
	}
	return p, nil
}

// PriceScale is the number of decimal places a price may carry; the store keeps NUMERIC(18,2).
const PriceScale = 2

// SetPrice rejects non-positive prices and prices finer than PriceScale rather than rounding them.
func (p *Product) SetPrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return apperr.InvalidArgument("Price for product %s must be greater than zero.", p.ID)
	}
	if !price.Equal(price.Round(PriceScale)) {
		return apperr.InvalidArgument("Price %s for product %s has more than %d decimal places.", price, p.ID, PriceScale)
	}
	p.Price = price
	return nil
}
