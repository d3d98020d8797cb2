package store

import (
	"context"

	"github.com/example/ec-reservation/internal/apperr"
	"github.com/example/ec-reservation/internal/domain/cart"
	"github.com/example/ec-reservation/internal/domain/inventory"
	"github.com/example/ec-reservation/internal/domain/order"
	"github.com/example/ec-reservation/internal/domain/product"
	"github.com/example/ec-reservation/internal/outbox"
)

// Tx is the set of reads and writes available inside one unit of work.
// Getters return copies; nothing is visible outside the transaction until commit.
// Getters fail with apperr.NotFound when the row is absent.
type Tx interface {
	GetProduct(ctx context.Context, id string) (*product.Product, error)
	// GetProducts skips ids that do not exist.
	GetProducts(ctx context.Context, ids []string) (map[string]*product.Product, error)
	SaveProduct(ctx context.Context, p *product.Product) error

	// GetStockItem locks the ledger row for the rest of the transaction.
	GetStockItem(ctx context.Context, productID string) (*inventory.StockItem, error)
	SaveStockItem(ctx context.Context, s *inventory.StockItem) error

	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	// SaveCart replaces the cart's lines with c.Items.
	SaveCart(ctx context.Context, c *cart.Cart) error

	GetOrder(ctx context.Context, id string) (*order.Order, error)
	SaveOrder(ctx context.Context, o *order.Order) error

	outbox.Appender
}

// UnitOfWork runs fn in a single transaction. fn returning an error, or ctx
// being cancelled before commit, rolls everything back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Reader serves non-locking lookups for the query side.
type Reader interface {
	FindCart(ctx context.Context, userID string) (*cart.Cart, error)
	FindOrder(ctx context.Context, id string) (*order.Order, error)
	ListOrders(ctx context.Context, userID string) ([]*order.Order, error)
	FindStockItem(ctx context.Context, productID string) (*inventory.StockItem, error)
	FindProduct(ctx context.Context, id string) (*product.Product, error)
}

func notFoundProduct(id string) error {
	return apperr.NotFound("Product with ID %s not found.", id)
}

func notFoundStockItem(productID string) error {
	return apperr.NotFound("Stock item for product %s not found.", productID)
}

func notFoundCart(userID string) error {
	return apperr.NotFound("Cart for user %s not found.", userID)
}

func notFoundOrder(id string) error {
	return apperr.NotFound("Order with ID %s not found.", id)
}

func notFoundMessage(id string) error {
	return apperr.NotFound("Outbox message with ID %s not found.", id)
}
