package cart

import (
	"time"

	"github.com/example/ec-reservation/internal/apperr"
	"github.com/google/uuid"
)

type CartItem struct {
	ID          string `json:"id"`
	CartID      string `json:"cart_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

// Cart holds one user's line items; there is at most one line per product.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
}

func New(userID string) *Cart {
	return &Cart{
		ID:        uuid.New().String(),
		UserID:    userID,
		Items:     []CartItem{},
		CreatedAt: time.Now().UTC(),
	}
}

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Item returns the line for productID.
func (c *Cart) Item(productID string) (CartItem, bool) {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return CartItem{}, false
}

// AddItem increments an existing line or appends a new one with the product name snapshotted.
func (c *Cart) AddItem(productID, productName string, qty int) (CartItem, error) {
	if qty <= 0 {
		return CartItem{}, apperr.InvalidArgument("Quantity for product %s must be greater than zero.", productID)
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += qty
			return c.Items[i], nil
		}
	}
	item := CartItem{
		ID:          uuid.New().String(),
		CartID:      c.ID,
		ProductID:   productID,
		ProductName: productName,
		Quantity:    qty,
	}
	c.Items = append(c.Items, item)
	return item, nil
}

// RemoveItem deletes the line for productID and returns it.
func (c *Cart) RemoveItem(productID string) (CartItem, error) {
	for i, it := range c.Items {
		if it.ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return it, nil
		}
	}
	return CartItem{}, apperr.NotFound("Product with ID %s not found in cart.", productID)
}

func (c *Cart) Clear() {
	c.Items = []CartItem{}
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = append([]CartItem(nil), c.Items...)
	return &cp
}
