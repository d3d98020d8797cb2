package inventory

import (
	"github.com/example/ec-reservation/internal/apperr"
	"github.com/google/uuid"
)

// StockItem is the warehouse ledger row for one product.
// AvailableQuantity + ReservedQuantity == TotalQuantity at all times.
type StockItem struct {
	ID                string `json:"id"`
	ProductID         string `json:"product_id"`
	TotalQuantity     int    `json:"total_quantity"`
	ReservedQuantity  int    `json:"reserved_quantity"`
	AvailableQuantity int    `json:"available_quantity"`
}

// NewStockItem creates a ledger with everything available.
func NewStockItem(productID string, quantity int) (*StockItem, error) {
	if quantity < 0 {
		return nil, apperr.InvalidArgument("Initial quantity for product %s must not be negative.", productID)
	}
	s := &StockItem{
		ID:                uuid.New().String(),
		ProductID:         productID,
		TotalQuantity:     quantity,
		AvailableQuantity: quantity,
	}
	return s, s.Validate()
}

// Validate reports CorruptState when the sum identity or non-negativity is broken.
func (s *StockItem) Validate() error {
	if s.TotalQuantity < 0 || s.ReservedQuantity < 0 || s.AvailableQuantity < 0 {
		return apperr.CorruptState(
			"Stock item %s has negative quantities (total=%d, reserved=%d, available=%d).",
			s.ID, s.TotalQuantity, s.ReservedQuantity, s.AvailableQuantity)
	}
	if s.AvailableQuantity+s.ReservedQuantity != s.TotalQuantity {
		return apperr.CorruptState(
			"Stock item %s is inconsistent: available %d + reserved %d != total %d.",
			s.ID, s.AvailableQuantity, s.ReservedQuantity, s.TotalQuantity)
	}
	return nil
}

// Reserve moves qty from available to reserved.
func (s *StockItem) Reserve(qty int) error {
	if qty <= 0 {
		return apperr.InvalidArgument("Quantity for product %s must be greater than zero.", s.ProductID)
	}
	if s.AvailableQuantity < qty {
		return apperr.InsufficientStock(
			"Not enough stock for product %s. Requested %d, available %d.",
			s.ProductID, qty, s.AvailableQuantity)
	}
	return s.apply(func(n *StockItem) {
		n.ReservedQuantity += qty
		n.AvailableQuantity -= qty
	})
}

// Release moves qty from reserved back to available.
func (s *StockItem) Release(qty int) error {
	if qty <= 0 {
		return apperr.InvalidArgument("Quantity for product %s must be greater than zero.", s.ProductID)
	}
	if qty > s.ReservedQuantity {
		return apperr.Conflict(
			"Cannot release %d units of product %s: only %d reserved.",
			qty, s.ProductID, s.ReservedQuantity)
	}
	return s.apply(func(n *StockItem) {
		n.ReservedQuantity -= qty
		n.AvailableQuantity += qty
	})
}

// Commit removes reserved units from the warehouse entirely, as when an order ships.
func (s *StockItem) Commit(qty int) error {
	if qty <= 0 {
		return apperr.InvalidArgument("Quantity for product %s must be greater than zero.", s.ProductID)
	}
	if qty > s.ReservedQuantity {
		return apperr.Conflict(
			"Cannot commit %d units of product %s: only %d reserved.",
			qty, s.ProductID, s.ReservedQuantity)
	}
	return s.apply(func(n *StockItem) {
		n.ReservedQuantity -= qty
		n.TotalQuantity -= qty
	})
}

// Replenish adds physically received units.
func (s *StockItem) Replenish(qty int) error {
	if qty <= 0 {
		return apperr.InvalidArgument("Quantity for product %s must be greater than zero.", s.ProductID)
	}
	return s.apply(func(n *StockItem) {
		n.TotalQuantity += qty
		n.AvailableQuantity += qty
	})
}

// Withdraw removes unreserved units from the warehouse.
func (s *StockItem) Withdraw(qty int) error {
	if qty <= 0 {
		return apperr.InvalidArgument("Quantity for product %s must be greater than zero.", s.ProductID)
	}
	if s.AvailableQuantity < qty {
		return apperr.InsufficientStock(
			"Cannot remove %d units of product %s: only %d available.",
			qty, s.ProductID, s.AvailableQuantity)
	}
	return s.apply(func(n *StockItem) {
		n.TotalQuantity -= qty
		n.AvailableQuantity -= qty
	})
}

// apply mutates a copy and only adopts it when the invariant still holds.
func (s *StockItem) apply(mutate func(n *StockItem)) error {
	if err := s.Validate(); err != nil {
		return err
	}
	next := *s
	mutate(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	*s = next
	return nil
}
